package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/reviews_backend/config"
	"github.com/mmdatafocus/reviews_backend/utils"
	"gorm.io/gorm"
)

// Activity rows feed the audit/UI feed. They are best-effort companions to
// the authoritative status write; a missing row is a logged anomaly, not a
// correctness violation.
type Activity struct {
	ID          int            `gorm:"primary_key" json:"id"`
	ReviewId    int            `gorm:"index;not null" json:"review_id"`
	Action      ActivityAction `gorm:"size:20;not null" json:"action"`
	Description string         `gorm:"type:text;not null" json:"description"`
	ActorId     int            `gorm:"index" json:"actor_id"`
	ActorName   string         `gorm:"size:100" json:"actor_name"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func createActivity(tx *gorm.DB, reviewId int, action ActivityAction, description string) error {
	ctx := tx.Statement.Context

	var activity Activity
	activity.ReviewId = reviewId
	activity.Action = action
	activity.Description = description

	// Actor info comes from the request context; system jobs leave it empty.
	if userId, ok := utils.GetUserIdFromContext(ctx); ok {
		activity.ActorId = userId
	}
	if userName, ok := utils.GetUserNameFromContext(ctx); ok {
		activity.ActorName = userName
	}

	return tx.Create(&activity).Error
}

// CreateSystemActivity records an action performed by a background job
// (e.g. a reconciliation correction) rather than a request actor.
func CreateSystemActivity(ctx context.Context, reviewId int, action ActivityAction, description string) error {
	db := config.GetDB()
	activity := Activity{
		ReviewId:    reviewId,
		Action:      action,
		Description: description,
		ActorName:   "system",
	}
	return db.WithContext(ctx).Create(&activity).Error
}
