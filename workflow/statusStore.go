package workflow

import (
	"context"
	"fmt"

	"github.com/mmdatafocus/reviews_backend/config"
	"github.com/mmdatafocus/reviews_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// StatusStore persists committed transitions. The status column is the
// authoritative write; the history and activity rows are secondary. When a
// secondary write fails after the primary succeeded, the store logs the
// anomaly and still reports success — the store does not assume the
// underlying database can make all three writes atomic.
type StatusStore struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewStatusStore(db *gorm.DB, logger *logrus.Logger) *StatusStore {
	return &StatusStore{db: db, logger: logger}
}

// Apply writes the transition. A NoOp transition performs no writes and
// returns the review as-is.
func (s *StatusStore) Apply(ctx context.Context, transition *Transition, rules []models.SLARule) (*models.Review, error) {
	if transition.NoOp {
		return models.GetReview(ctx, transition.ReviewId)
	}

	deadline := ComputeDeadline(transition.OldStatus, transition.NewStatus, transition.Timestamp, rules)

	// Primary, authoritative write. Failure here fails the whole request.
	err := s.db.WithContext(ctx).Model(&models.Review{}).
		Where("id = ?", transition.ReviewId).
		Updates(map[string]interface{}{
			"status":       transition.NewStatus,
			"sla_deadline": deadline,
			"updated_at":   transition.Timestamp,
		}).Error
	if err != nil {
		return nil, err
	}

	// Secondary writes: logged on failure, never rolled back.
	oldStatus := transition.OldStatus
	history := models.StatusHistory{
		ReviewId:  transition.ReviewId,
		OldStatus: &oldStatus,
		NewStatus: transition.NewStatus,
		ActorId:   transition.Actor.ID,
		CreatedAt: transition.Timestamp,
	}
	if err := s.db.WithContext(ctx).Create(&history).Error; err != nil {
		config.LogWarn(s.logger, "statusStore.go", "Apply", "append status history", transition.ReviewId, err)
	}

	activity := models.Activity{
		ReviewId:    transition.ReviewId,
		Action:      models.ActivityActionStatusChange,
		Description: fmt.Sprintf("Status changed from %s to %s.", transition.OldStatus, transition.NewStatus),
		ActorId:     transition.Actor.ID,
		ActorName:   transition.Actor.Name,
	}
	if err := s.db.WithContext(ctx).Create(&activity).Error; err != nil {
		config.LogWarn(s.logger, "statusStore.go", "Apply", "append activity", transition.ReviewId, err)
	}

	return models.GetReview(ctx, transition.ReviewId)
}
