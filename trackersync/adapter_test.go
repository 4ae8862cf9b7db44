package trackersync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/mmdatafocus/reviews_backend/models"
)

// fakeTracker is an in-memory stand-in for the tracker API. It enforces the
// same split verbs as the real one: POST only creates, PUT only updates.
type fakeTracker struct {
	mu      sync.Mutex
	values  map[string]trackerFieldValue // valueId -> value
	byProj  map[string]string            // projectId|field -> valueId
	nextId  int
	creates int
	updates int
	listErr int // if non-zero, respond to list with this status
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{
		values: map[string]trackerFieldValue{},
		byProj: map[string]string{},
	}
}

func (f *fakeTracker) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/projects/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		// api v1 projects {id} field-values
		if len(parts) != 5 || parts[4] != "field-values" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		projectId := parts[3]

		f.mu.Lock()
		defer f.mu.Unlock()

		switch r.Method {
		case http.MethodGet:
			if f.listErr != 0 {
				w.WriteHeader(f.listErr)
				return
			}
			field := r.URL.Query().Get("field")
			list := trackerFieldValueList{Data: []trackerFieldValue{}}
			if id, ok := f.byProj[projectId+"|"+field]; ok {
				list.Data = append(list.Data, f.values[id])
			}
			_ = json.NewEncoder(w).Encode(list)
		case http.MethodPost:
			var payload map[string]string
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			key := projectId + "|" + payload["field"]
			if _, exists := f.byProj[key]; exists {
				// Real trackers reject duplicate creates.
				w.WriteHeader(http.StatusConflict)
				return
			}
			f.nextId++
			f.creates++
			created := trackerFieldValue{
				ID:    fmt.Sprintf("val-%d", f.nextId),
				Field: payload["field"],
				Value: payload["value"],
			}
			f.values[created.ID] = created
			f.byProj[key] = created.ID
			_ = json.NewEncoder(w).Encode(created)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/api/v1/field-values/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		valueId := strings.TrimPrefix(r.URL.Path, "/api/v1/field-values/")

		f.mu.Lock()
		defer f.mu.Unlock()

		existing, ok := f.values[valueId]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var payload map[string]string
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		existing.Value = payload["value"]
		f.values[valueId] = existing
		f.updates++
		_ = json.NewEncoder(w).Encode(existing)
	})

	return mux
}

func (f *fakeTracker) valueFor(projectId, field string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byProj[projectId+"|"+field]
	if !ok {
		return "", false
	}
	return f.values[id].Value, true
}

func newTestAdapter(t *testing.T, tracker *fakeTracker) *Adapter {
	t.Helper()
	srv := httptest.NewServer(tracker.handler())
	t.Cleanup(srv.Close)

	t.Setenv("TRACKER_API_BASE_URL", srv.URL)
	// Keep the limiter out of the way for tests.
	t.Setenv("TRACKER_RATE_LIMIT_PER_MIN", "6000000")

	client, err := NewClient("test-key")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return NewAdapter(client)
}

func TestPushStatus_CreateThenUpdate(t *testing.T) {
	tracker := newFakeTracker()
	adapter := newTestAdapter(t, tracker)
	ctx := context.Background()

	// First push has no remote value yet, so it must create.
	if err := adapter.PushStatus(ctx, "proj-1", models.ReviewStatusInReview); err != nil {
		t.Fatalf("first push: %v", err)
	}
	if got, _ := tracker.valueFor("proj-1", "review_status"); got != "in_review" {
		t.Fatalf("want in_review, got %q", got)
	}

	// Pushing again must update in place, never create a second value.
	if err := adapter.PushStatus(ctx, "proj-1", models.ReviewStatusApproved); err != nil {
		t.Fatalf("second push: %v", err)
	}
	if got, _ := tracker.valueFor("proj-1", "review_status"); got != "approved" {
		t.Fatalf("want approved, got %q", got)
	}

	if tracker.creates != 1 || tracker.updates != 1 {
		t.Fatalf("want 1 create and 1 update, got creates=%d updates=%d", tracker.creates, tracker.updates)
	}
	if len(tracker.values) != 1 {
		t.Fatalf("a project must hold exactly one value for the field, got %d", len(tracker.values))
	}
}

func TestPushStatus_RepeatedPushIsIdempotent(t *testing.T) {
	tracker := newFakeTracker()
	adapter := newTestAdapter(t, tracker)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := adapter.PushStatus(ctx, "proj-1", models.ReviewStatusApproved); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}

	if got, _ := tracker.valueFor("proj-1", "review_status"); got != "approved" {
		t.Fatalf("want approved, got %q", got)
	}
	if len(tracker.values) != 1 {
		t.Fatalf("retries must not multiply remote values, got %d", len(tracker.values))
	}
}

func TestPushStatus_NotFoundListFallsBackToCreate(t *testing.T) {
	tracker := newFakeTracker()
	adapter := newTestAdapter(t, tracker)

	// Some trackers 404 the list endpoint when the project has no values yet.
	tracker.listErr = http.StatusNotFound
	err := adapter.PushStatus(context.Background(), "proj-1", models.ReviewStatusDraft)
	if err != nil {
		t.Fatalf("push with 404 list: %v", err)
	}
	tracker.listErr = 0
	if got, _ := tracker.valueFor("proj-1", "review_status"); got != "pending" {
		t.Fatalf("want pending, got %q", got)
	}
}

func TestPushStatus_FetchFailureSurfaces(t *testing.T) {
	tracker := newFakeTracker()
	adapter := newTestAdapter(t, tracker)

	tracker.listErr = http.StatusInternalServerError
	err := adapter.PushStatus(context.Background(), "proj-1", models.ReviewStatusApproved)
	if err == nil {
		t.Fatal("a non-404 list failure must surface, not guess a verb")
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("a 500 must not be classified as not-found: %v", err)
	}
	if tracker.creates != 0 || tracker.updates != 0 {
		t.Fatalf("no write should happen after a failed fetch")
	}
}

func TestRevertToSafeDefault(t *testing.T) {
	tracker := newFakeTracker()
	adapter := newTestAdapter(t, tracker)
	ctx := context.Background()

	if err := adapter.PushStatus(ctx, "proj-1", models.ReviewStatusApproved); err != nil {
		t.Fatalf("seed push: %v", err)
	}
	if err := adapter.RevertToSafeDefault(ctx, "proj-1"); err != nil {
		t.Fatalf("revert: %v", err)
	}
	if got, _ := tracker.valueFor("proj-1", "review_status"); got != SafeDefaultValue {
		t.Fatalf("want %q, got %q", SafeDefaultValue, got)
	}
}

func TestStatusVocabulary_CoversEveryStatus(t *testing.T) {
	for _, status := range []models.ReviewStatus{
		models.ReviewStatusDraft,
		models.ReviewStatusSubmitted,
		models.ReviewStatusInReview,
		models.ReviewStatusNeedsWork,
		models.ReviewStatusApproved,
		models.ReviewStatusArchived,
	} {
		if _, ok := ExternalValueFor(status); !ok {
			t.Fatalf("status %s has no tracker vocabulary", status)
		}
	}
	if _, ok := ExternalValueFor(models.ReviewStatus("Bogus")); ok {
		t.Fatal("unknown status must not map to a tracker value")
	}
}
