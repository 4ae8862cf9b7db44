package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/reviews_backend/config"
)

// StatusHistory is append-only: one row per committed transition, oldest
// first. Replaying the rows for a review reconstructs its current status.
type StatusHistory struct {
	ID        int           `gorm:"primary_key" json:"id"`
	ReviewId  int           `gorm:"index;not null" json:"review_id"`
	OldStatus *ReviewStatus `gorm:"size:20" json:"old_status"`
	NewStatus ReviewStatus  `gorm:"size:20;not null" json:"new_status"`
	ActorId   int           `gorm:"not null" json:"actor_id"`
	CreatedAt time.Time     `gorm:"autoCreateTime;index" json:"created_at"`
}

func GetStatusHistory(ctx context.Context, reviewId int) ([]StatusHistory, error) {
	db := config.GetDB()
	var entries []StatusHistory
	err := db.WithContext(ctx).
		Where("review_id = ?", reviewId).
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
