package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/mmdatafocus/reviews_backend/models"
)

// NOTE: These tests are intentionally DB-free. AttemptTransition is a pure
// function over (review, requested, actor); storage behavior is covered
// separately.

const ownerId = 7

func reviewIn(status models.ReviewStatus) *models.Review {
	return &models.Review{
		ID:          1,
		Title:       "Quarterly numbers",
		Description: "Check the Q2 rollup before publishing.",
		Status:      status,
		OwnerId:     ownerId,
	}
}

func owner(role models.UserRole) Actor {
	return Actor{ID: ownerId, Name: "Owner", Role: role}
}

func stranger(role models.UserRole) Actor {
	return Actor{ID: ownerId + 1, Name: "Someone Else", Role: role}
}

func TestAttemptTransition_SameStatusIsNoOp(t *testing.T) {
	for _, status := range []models.ReviewStatus{
		models.ReviewStatusDraft,
		models.ReviewStatusSubmitted,
		models.ReviewStatusInReview,
		models.ReviewStatusNeedsWork,
		models.ReviewStatusApproved,
		models.ReviewStatusArchived,
	} {
		// Even an anonymous-looking member may "repeat" the current status.
		tr, err := AttemptTransition(reviewIn(status), status, stranger(models.UserRoleMember), time.Now())
		if err != nil {
			t.Fatalf("status=%s: expected no-op, got error %v", status, err)
		}
		if !tr.NoOp {
			t.Fatalf("status=%s: expected NoOp=true", status)
		}
		if tr.OldStatus != status || tr.NewStatus != status {
			t.Fatalf("status=%s: no-op must not change statuses, got %s -> %s", status, tr.OldStatus, tr.NewStatus)
		}
	}
}

func TestAttemptTransition_UnknownStatusRejected(t *testing.T) {
	_, err := AttemptTransition(reviewIn(models.ReviewStatusDraft), models.ReviewStatus("Published"), owner(models.UserRoleAdmin), time.Now())
	if !errors.Is(err, ErrBadStatus) {
		t.Fatalf("expected ErrBadStatus, got %v", err)
	}
}

func TestAttemptTransition_RoleMatrix(t *testing.T) {
	cases := []struct {
		name    string
		from    models.ReviewStatus
		to      models.ReviewStatus
		actor   Actor
		wantErr error
	}{
		{"owner submits draft", models.ReviewStatusDraft, models.ReviewStatusSubmitted, owner(models.UserRoleMember), nil},
		{"admin cannot submit someone else's draft", models.ReviewStatusDraft, models.ReviewStatusSubmitted, stranger(models.UserRoleAdmin), ErrForbidden},
		{"stranger cannot submit draft", models.ReviewStatusDraft, models.ReviewStatusSubmitted, stranger(models.UserRoleMember), ErrForbidden},

		{"owner archives draft", models.ReviewStatusDraft, models.ReviewStatusArchived, owner(models.UserRoleMember), nil},
		{"admin archives someone else's draft", models.ReviewStatusDraft, models.ReviewStatusArchived, stranger(models.UserRoleAdmin), nil},
		{"lead cannot archive someone else's draft", models.ReviewStatusDraft, models.ReviewStatusArchived, stranger(models.UserRoleLead), ErrForbidden},

		{"admin starts review", models.ReviewStatusSubmitted, models.ReviewStatusInReview, stranger(models.UserRoleAdmin), nil},
		{"owner cannot start own review", models.ReviewStatusSubmitted, models.ReviewStatusInReview, owner(models.UserRoleMember), ErrForbidden},
		{"lead cannot start review", models.ReviewStatusSubmitted, models.ReviewStatusInReview, stranger(models.UserRoleLead), ErrForbidden},

		{"owner withdraws submission", models.ReviewStatusSubmitted, models.ReviewStatusDraft, owner(models.UserRoleMember), nil},

		{"admin approves from in review", models.ReviewStatusInReview, models.ReviewStatusApproved, stranger(models.UserRoleAdmin), nil},
		{"owner cannot approve own review", models.ReviewStatusInReview, models.ReviewStatusApproved, owner(models.UserRoleMember), ErrForbidden},
		{"admin sends back for rework", models.ReviewStatusInReview, models.ReviewStatusNeedsWork, stranger(models.UserRoleAdmin), nil},

		{"owner resubmits after rework", models.ReviewStatusNeedsWork, models.ReviewStatusSubmitted, owner(models.UserRoleMember), nil},
		{"admin approves straight from rework", models.ReviewStatusNeedsWork, models.ReviewStatusApproved, stranger(models.UserRoleAdmin), nil},

		{"admin reopens approved review", models.ReviewStatusApproved, models.ReviewStatusInReview, stranger(models.UserRoleAdmin), nil},
		{"owner cannot reopen approved review", models.ReviewStatusApproved, models.ReviewStatusInReview, owner(models.UserRoleMember), ErrForbidden},
		{"owner cannot archive approved review", models.ReviewStatusApproved, models.ReviewStatusArchived, owner(models.UserRoleMember), ErrForbidden},

		{"admin restores archived review", models.ReviewStatusArchived, models.ReviewStatusDraft, stranger(models.UserRoleAdmin), nil},
		{"owner cannot restore archived review", models.ReviewStatusArchived, models.ReviewStatusDraft, owner(models.UserRoleMember), ErrForbidden},

		{"draft cannot jump to approved", models.ReviewStatusDraft, models.ReviewStatusApproved, stranger(models.UserRoleAdmin), ErrIllegalTransition},
		{"submitted cannot jump to approved", models.ReviewStatusSubmitted, models.ReviewStatusApproved, stranger(models.UserRoleAdmin), ErrIllegalTransition},
		{"approved cannot go back to draft", models.ReviewStatusApproved, models.ReviewStatusDraft, stranger(models.UserRoleAdmin), ErrIllegalTransition},
		{"in review cannot be archived", models.ReviewStatusInReview, models.ReviewStatusArchived, stranger(models.UserRoleAdmin), ErrIllegalTransition},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr, err := AttemptTransition(reviewIn(tc.from), tc.to, tc.actor, time.Now())
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("want %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tr.NoOp {
				t.Fatalf("real transition must not be a no-op")
			}
			if tr.OldStatus != tc.from || tr.NewStatus != tc.to {
				t.Fatalf("want %s -> %s, got %s -> %s", tc.from, tc.to, tr.OldStatus, tr.NewStatus)
			}
		})
	}
}

func TestAttemptTransition_MemberNeverReachesApproved(t *testing.T) {
	for _, from := range []models.ReviewStatus{
		models.ReviewStatusDraft,
		models.ReviewStatusSubmitted,
		models.ReviewStatusInReview,
		models.ReviewStatusNeedsWork,
		models.ReviewStatusArchived,
	} {
		for _, actor := range []Actor{owner(models.UserRoleMember), stranger(models.UserRoleMember), owner(models.UserRoleLead)} {
			_, err := AttemptTransition(reviewIn(from), models.ReviewStatusApproved, actor, time.Now())
			if err == nil {
				t.Fatalf("from=%s actor=%+v: non-admin must never reach Approved", from, actor)
			}
		}
	}
}

func TestAttemptTransition_IncompleteDraftBlocked(t *testing.T) {
	review := reviewIn(models.ReviewStatusDraft)
	review.Description = "   "

	_, err := AttemptTransition(review, models.ReviewStatusSubmitted, owner(models.UserRoleMember), time.Now())
	if !errors.Is(err, ErrIncompleteReview) {
		t.Fatalf("expected ErrIncompleteReview, got %v", err)
	}

	// Completeness only gates leaving Draft. The same blank description must
	// not block transitions later in the lifecycle.
	review = reviewIn(models.ReviewStatusSubmitted)
	review.Description = ""
	if _, err := AttemptTransition(review, models.ReviewStatusInReview, stranger(models.UserRoleAdmin), time.Now()); err != nil {
		t.Fatalf("completeness check must not apply outside Draft: %v", err)
	}
}
