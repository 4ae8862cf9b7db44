package trackersync

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/reviews_backend/config"
	"github.com/mmdatafocus/reviews_backend/models"
	"github.com/mmdatafocus/reviews_backend/notify"
	"github.com/sirupsen/logrus"
)

// ReconciliationResult is the per-review outcome of one sweep. Results are
// produced fresh every run and returned to the caller; they are not persisted.
type ReconciliationResult struct {
	ReviewId          int                 `json:"review_id"`
	ExternalProjectId string              `json:"external_project_id"`
	ExternalStatus    string              `json:"external_status"`
	InternalStatus    models.ReviewStatus `json:"internal_status"`
	IsValid           bool                `json:"is_valid"`
	Message           string              `json:"message"`
}

type projectFetcher interface {
	GetProject(ctx context.Context, projectId string) (*trackerProject, error)
}

type fieldReverter interface {
	RevertToSafeDefault(ctx context.Context, projectId string) error
}

// Reconciler sweeps every review with a linked tracker project, compares the
// tracker's state against the internal one, and repairs drift. Every step
// derives from current state, so the sweep is idempotent and safe to re-run
// at any time, including concurrently with itself.
type Reconciler struct {
	tracker  projectFetcher
	reverter fieldReverter
	notifier notify.Notifier
	logger   *logrus.Logger

	concurrency int
	itemTimeout time.Duration

	// Overridable collaborators so the sweep logic is testable without a DB.
	listReviews    func(ctx context.Context) ([]models.Review, error)
	ownerEmail     func(ctx context.Context, ownerId int) (string, error)
	adminEmails    func(ctx context.Context) ([]string, error)
	recordActivity func(ctx context.Context, reviewId int, description string) error
}

func NewReconciler(client *Client, adapter *Adapter, notifier notify.Notifier, logger *logrus.Logger) *Reconciler {
	concurrency := 5
	if v := strings.TrimSpace(os.Getenv("RECONCILE_CONCURRENCY")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			concurrency = n
		}
	}

	return &Reconciler{
		tracker:     client,
		reverter:    adapter,
		notifier:    notifier,
		logger:      logger,
		concurrency: concurrency,
		itemTimeout: 15 * time.Second,
		listReviews: models.ListLinkedReviews,
		ownerEmail: func(ctx context.Context, ownerId int) (string, error) {
			owner, err := models.GetUser(ctx, ownerId)
			if err != nil {
				return "", err
			}
			return owner.Email, nil
		},
		adminEmails: models.ListAdminEmails,
		recordActivity: func(ctx context.Context, reviewId int, description string) error {
			return models.CreateSystemActivity(ctx, reviewId, models.ActivityActionReconcile, description)
		},
	}
}

// ReconcileAll runs one sweep and returns every result plus the number of
// reviews that were corrected. A redis lock keeps overlapping sweeps from
// doubling the tracker load, but it is an optimization only: the sweep is
// correct without it, so lock trouble never blocks the run.
func (r *Reconciler) ReconcileAll(ctx context.Context) ([]ReconciliationResult, int, error) {
	if redisLock := config.GetRedisLock(); redisLock != nil {
		lock, err := redisLock.Obtain(ctx, "lock:reconcile-sweep", 5*time.Minute, nil)
		if err == redislock.ErrNotObtained {
			r.logger.WithFields(logrus.Fields{
				"module": "reconcile.go",
			}).Warn("another reconcile sweep holds the lock; proceeding anyway")
		} else if err != nil {
			r.logger.WithFields(logrus.Fields{
				"module": "reconcile.go",
			}).Warn("error obtaining reconcile lock; proceeding without it: " + err.Error())
		} else {
			defer func() {
				if releaseErr := lock.Release(ctx); releaseErr != nil {
					config.LogWarn(r.logger, "reconcile.go", "ReconcileAll", "release redis lock", nil, releaseErr)
				}
			}()
		}
	}

	reviews, err := r.listReviews(ctx)
	if err != nil {
		return nil, 0, err
	}

	results := make([]ReconciliationResult, len(reviews))

	// Scatter-gather with bounded fan-out: one tracker read per review,
	// nothing shared between tasks but the result slot.
	sem := make(chan struct{}, r.concurrency)
	var wg sync.WaitGroup
	for i := range reviews {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			itemCtx, cancel := context.WithTimeout(ctx, r.itemTimeout)
			defer cancel()

			defer func() {
				// A panicking task must not take its siblings down.
				if rec := recover(); rec != nil {
					review := reviews[i]
					results[i] = ReconciliationResult{
						ReviewId:          review.ID,
						ExternalProjectId: derefString(review.ExternalProjectId),
						InternalStatus:    review.Status,
						IsValid:           true,
						Message:           fmt.Sprintf("reconcile task failed: %v; drift not evaluated", rec),
					}
				}
			}()

			results[i] = r.reconcileOne(itemCtx, reviews[i])
		}(i)
	}
	wg.Wait()

	corrected := 0
	for _, result := range results {
		if !result.IsValid {
			corrected++
		}
	}
	return results, corrected, nil
}

func (r *Reconciler) reconcileOne(ctx context.Context, review models.Review) ReconciliationResult {
	projectId := derefString(review.ExternalProjectId)
	result := ReconciliationResult{
		ReviewId:          review.ID,
		ExternalProjectId: projectId,
		InternalStatus:    review.Status,
	}

	project, err := r.tracker.GetProject(ctx, projectId)
	if err != nil {
		// Cannot prove drift without data. Treat the review as valid rather
		// than issuing corrective writes against a tracker outage.
		result.IsValid = true
		result.Message = fmt.Sprintf("tracker fetch failed: %v; drift not evaluated", err)
		config.LogWarn(r.logger, "reconcile.go", "reconcileOne", "fetch tracker project", review.ID, err)
		return result
	}

	result.ExternalStatus = project.Status.Key

	// The one drift rule: the tracker says the project is live while the
	// review never reached Approved.
	if !strings.EqualFold(project.Status.Key, LiveStatusKey) || review.Status == models.ReviewStatusApproved {
		result.IsValid = true
		result.Message = "statuses consistent"
		return result
	}

	result.IsValid = false
	result.Message = fmt.Sprintf("tracker project is %q but review is %s; reverted to %s",
		project.Status.Key, review.Status, SafeDefaultValue)

	if err := r.reverter.RevertToSafeDefault(ctx, projectId); err != nil {
		result.Message = fmt.Sprintf("drift detected (tracker %q, review %s) but revert failed: %v",
			project.Status.Key, review.Status, err)
		config.LogWarn(r.logger, "reconcile.go", "reconcileOne", "revert tracker status", review.ID, err)
	}

	r.notifyDrift(ctx, review, project.Status.Key)

	if err := r.recordActivity(ctx, review.ID, result.Message); err != nil {
		config.LogWarn(r.logger, "reconcile.go", "reconcileOne", "record reconcile activity", review.ID, err)
	}

	return result
}

func (r *Reconciler) notifyDrift(ctx context.Context, review models.Review, externalStatus string) {
	recipients := make([]string, 0, 4)

	email, err := r.ownerEmail(ctx, review.OwnerId)
	if err != nil {
		config.LogWarn(r.logger, "reconcile.go", "notifyDrift", "lookup owner email", review.OwnerId, err)
	} else if email != "" {
		recipients = append(recipients, email)
	}

	admins, err := r.adminEmails(ctx)
	if err != nil {
		config.LogWarn(r.logger, "reconcile.go", "notifyDrift", "lookup admin emails", nil, err)
	} else {
		for _, admin := range admins {
			if admin != "" && admin != email {
				recipients = append(recipients, admin)
			}
		}
	}

	if len(recipients) == 0 {
		return
	}

	subject := fmt.Sprintf("Review #%d: tracker status reverted", review.ID)
	body := fmt.Sprintf(
		"Tracker project %s reported status %q while review #%d (%s) is %s. "+
			"The tracker field was reverted to %q. %s",
		derefString(review.ExternalProjectId), externalStatus, review.ID, review.Title,
		review.Status, SafeDefaultValue, reviewLink(review.ID))

	if err := r.notifier.Notify(ctx, recipients, subject, body); err != nil {
		config.LogWarn(r.logger, "reconcile.go", "notifyDrift", "send notification", review.ID, err)
	}
}

func reviewLink(reviewId int) string {
	base := strings.TrimRight(strings.TrimSpace(os.Getenv("APP_BASE_URL")), "/")
	if base == "" {
		return fmt.Sprintf("/reviews/%d", reviewId)
	}
	return fmt.Sprintf("%s/reviews/%d", base, reviewId)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
