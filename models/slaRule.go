package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/reviews_backend/config"
	"gorm.io/gorm/clause"
)

// SLARule is administrator-managed configuration: at most one rule per
// (from, to) pair. The workflow engine only reads it.
type SLARule struct {
	ID            int          `gorm:"primary_key" json:"id"`
	FromStatus    ReviewStatus `gorm:"size:20;not null;uniqueIndex:idx_sla_transition" json:"from_status"`
	ToStatus      ReviewStatus `gorm:"size:20;not null;uniqueIndex:idx_sla_transition" json:"to_status"`
	DurationHours int          `gorm:"not null" json:"duration_hours"`
	CreatedAt     time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSLARule struct {
	FromStatus    ReviewStatus `json:"from_status" binding:"required"`
	ToStatus      ReviewStatus `json:"to_status" binding:"required"`
	DurationHours int          `json:"duration_hours" binding:"required,gt=0"`
}

func UpsertSLARule(ctx context.Context, input *NewSLARule) (*SLARule, error) {
	rule := SLARule{
		FromStatus:    input.FromStatus,
		ToStatus:      input.ToStatus,
		DurationHours: input.DurationHours,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "from_status"}, {Name: "to_status"}},
		DoUpdates: clause.AssignmentColumns([]string{"duration_hours", "updated_at"}),
	}).Create(&rule).Error
	if err != nil {
		return nil, err
	}

	var saved SLARule
	err = db.WithContext(ctx).
		Where("from_status = ? AND to_status = ?", input.FromStatus, input.ToStatus).
		First(&saved).Error
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func ListSLARules(ctx context.Context) ([]SLARule, error) {
	db := config.GetDB()
	var rules []SLARule
	err := db.WithContext(ctx).Order("from_status, to_status").Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}
