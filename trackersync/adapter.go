package trackersync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mmdatafocus/reviews_backend/models"
)

// LiveStatusKey is the tracker project status that means "in production".
// It is the only external state the drift policy cross-checks.
const LiveStatusKey = "live"

// SafeDefaultValue is what the mirrored field is reverted to when drift is
// detected: pending until the internal workflow says otherwise.
const SafeDefaultValue = "pending"

// statusVocabulary collapses the internal lifecycle into the tracker's
// smaller vocabulary. Several internal statuses share one external value.
var statusVocabulary = map[models.ReviewStatus]string{
	models.ReviewStatusDraft:     "pending",
	models.ReviewStatusSubmitted: "pending",
	models.ReviewStatusInReview:  "in_review",
	models.ReviewStatusNeedsWork: "in_review",
	models.ReviewStatusApproved:  "approved",
	models.ReviewStatusArchived:  "archived",
}

// ExternalValueFor maps an internal status to the tracker vocabulary.
func ExternalValueFor(status models.ReviewStatus) (string, bool) {
	v, ok := statusVocabulary[status]
	return v, ok
}

func statusFieldKey() string {
	if v := strings.TrimSpace(os.Getenv("TRACKER_STATUS_FIELD")); v != "" {
		return v
	}
	return "review_status"
}

// Adapter mirrors internal statuses into a tracker custom field. The tracker
// has no atomic "set value" call — create and update are distinct calls that
// fail when used against the wrong current state — so the adapter always
// fetches first and picks the right verb. That makes PushStatus safe to call
// regardless of how far a previous attempt got.
type Adapter struct {
	client *Client
}

func NewAdapter(client *Client) *Adapter {
	return &Adapter{client: client}
}

func (a *Adapter) PushStatus(ctx context.Context, projectId string, status models.ReviewStatus) error {
	value, ok := ExternalValueFor(status)
	if !ok {
		return fmt.Errorf("no tracker vocabulary for status %q", status)
	}
	return a.pushValue(ctx, projectId, value)
}

// RevertToSafeDefault forces the mirrored field back to the safe default.
// Used by the reconciliation job when the tracker ran ahead of the workflow.
func (a *Adapter) RevertToSafeDefault(ctx context.Context, projectId string) error {
	return a.pushValue(ctx, projectId, SafeDefaultValue)
}

func (a *Adapter) pushValue(ctx context.Context, projectId string, value string) error {
	field := statusFieldKey()

	existing, err := a.client.ListFieldValues(ctx, projectId, field)
	switch {
	case err == nil && len(existing) > 0:
		_, err = a.client.UpdateFieldValue(ctx, existing[0].ID, value)
		return err
	case err == nil || errors.Is(err, ErrNotFound):
		// No value yet (empty list or 404): create one.
		_, err = a.client.CreateFieldValue(ctx, projectId, field, value)
		return err
	default:
		// Fetch failed for some other reason. Don't guess which verb is
		// right; surface the error and let the next sweep retry.
		return err
	}
}
