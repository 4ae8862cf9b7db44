package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mmdatafocus/reviews_backend/config"
	"github.com/mmdatafocus/reviews_backend/utils"
	"gorm.io/gorm"
)

var ErrProjectAlreadyLinked = errors.New("tracker project is already linked to another review")

type Review struct {
	ID                int             `gorm:"primary_key" json:"id"`
	Title             string          `gorm:"size:255;not null" json:"title" binding:"required"`
	Description       string          `gorm:"type:text" json:"description"`
	Status            ReviewStatus    `gorm:"type:enum('Draft','Submitted','InReview','NeedsWork','Approved','Archived');default:Draft" json:"status"`
	OwnerId           int             `gorm:"index;not null" json:"owner_id"`
	LeadId            *int            `gorm:"index" json:"lead_id"`
	ExternalProjectId *string         `gorm:"size:100;uniqueIndex" json:"external_project_id"`
	SlaDeadline       *time.Time      `json:"sla_deadline"`
	Histories         []StatusHistory `gorm:"foreignKey:ReviewId" json:"histories"`
	Activities        []Activity      `gorm:"foreignKey:ReviewId" json:"activities"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewReview struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	LeadId      *int   `json:"lead_id"`
}

func CreateReview(ctx context.Context, input *NewReview) (*Review, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok {
		return nil, errors.New("user id is required")
	}

	review := Review{
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		Status:      ReviewStatusDraft,
		OwnerId:     userId,
		LeadId:      input.LeadId,
	}

	db := config.GetDB()
	tx := db.Begin()

	if err := tx.WithContext(ctx).Create(&review).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	// Creation history row has no old status.
	history := StatusHistory{
		ReviewId:  review.ID,
		OldStatus: nil,
		NewStatus: ReviewStatusDraft,
		ActorId:   userId,
	}
	if err := tx.WithContext(ctx).Create(&history).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := createActivity(tx.WithContext(ctx), review.ID, ActivityActionCreate, "Review created as Draft."); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return GetReview(ctx, review.ID)
}

func GetReview(ctx context.Context, id int) (*Review, error) {
	return utils.FetchModel[Review](ctx, id, "Histories", "Activities")
}

func ListReviews(ctx context.Context) ([]*Review, error) {
	return utils.FetchAllModels[Review](ctx)
}

// ListLinkedReviews returns every review that mirrors its status into a
// tracker project. This is the reconciliation sweep's input set.
func ListLinkedReviews(ctx context.Context) ([]Review, error) {
	db := config.GetDB()
	var reviews []Review
	err := db.WithContext(ctx).Where("external_project_id IS NOT NULL").Find(&reviews).Error
	if err != nil {
		return nil, err
	}
	return reviews, nil
}

// LinkTrackerProject attaches an external project id to a review. A tracker
// project can back at most one review.
func LinkTrackerProject(ctx context.Context, id int, projectId string) (*Review, error) {
	projectId = strings.TrimSpace(projectId)
	if projectId == "" {
		return nil, errors.New("project id is required")
	}

	review, err := utils.FetchModel[Review](ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()

	var count int64
	err = db.WithContext(ctx).Model(&Review{}).
		Where("external_project_id = ? AND id <> ?", projectId, id).
		Count(&count).Error
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrProjectAlreadyLinked
	}

	err = db.WithContext(ctx).Model(review).Updates(map[string]interface{}{
		"ExternalProjectId": projectId,
	}).Error
	if err != nil {
		return nil, err
	}

	if err := createActivity(db.WithContext(ctx), review.ID, ActivityActionLink, "Linked to tracker project "+projectId+"."); err != nil {
		logger := config.GetLogger()
		config.LogWarn(logger, "review.go", "LinkTrackerProject", "createActivity", review.ID, err)
	}

	return GetReview(ctx, id)
}

func UnlinkTrackerProject(ctx context.Context, id int) (*Review, error) {
	review, err := utils.FetchModel[Review](ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(review).Update("external_project_id", gorm.Expr("NULL")).Error
	if err != nil {
		return nil, err
	}

	if err := createActivity(db.WithContext(ctx), review.ID, ActivityActionUnlink, "Unlinked from tracker project."); err != nil {
		logger := config.GetLogger()
		config.LogWarn(logger, "review.go", "UnlinkTrackerProject", "createActivity", review.ID, err)
	}

	return GetReview(ctx, id)
}
