package workflow

import (
	"errors"
	"strings"
	"time"

	"github.com/mmdatafocus/reviews_backend/models"
)

var (
	ErrBadStatus         = errors.New("unknown review status")
	ErrIllegalTransition = errors.New("transition is not allowed by the status catalog")
	ErrForbidden         = errors.New("actor is not allowed to perform this transition")
	ErrIncompleteReview  = errors.New("title and description are required before leaving Draft")
)

// Actor is the authenticated principal evaluated against the catalog's role
// requirements. Identity resolution happens elsewhere; the guard only reads.
type Actor struct {
	ID   int
	Name string
	Role models.UserRole
}

// Transition is the value object a successful guard check produces.
// NoOp transitions carry no state change and must cause no writes.
type Transition struct {
	ReviewId  int
	OldStatus models.ReviewStatus
	NewStatus models.ReviewStatus
	Actor     Actor
	Timestamp time.Time
	NoOp      bool
}

// AttemptTransition validates a requested status change without performing
// any write. Checks run in a fixed order: idempotence, catalog, role,
// completeness. The role check is authoritative here even though storage may
// have its own coarse policy, because that policy knows nothing about
// transition-specific rules.
func AttemptTransition(review *models.Review, requested models.ReviewStatus, actor Actor, now time.Time) (*Transition, error) {
	if !requested.IsValid() {
		return nil, ErrBadStatus
	}

	if requested == review.Status {
		return &Transition{
			ReviewId:  review.ID,
			OldStatus: review.Status,
			NewStatus: requested,
			Actor:     actor,
			Timestamp: now,
			NoOp:      true,
		}, nil
	}

	requirement, ok := IsLegalTransition(review.Status, requested)
	if !ok {
		return nil, ErrIllegalTransition
	}

	if !satisfiesRequirement(requirement, actor, review) {
		return nil, ErrForbidden
	}

	if review.Status == models.ReviewStatusDraft {
		if strings.TrimSpace(review.Title) == "" || strings.TrimSpace(review.Description) == "" {
			return nil, ErrIncompleteReview
		}
	}

	return &Transition{
		ReviewId:  review.ID,
		OldStatus: review.Status,
		NewStatus: requested,
		Actor:     actor,
		Timestamp: now,
	}, nil
}

func satisfiesRequirement(requirement RoleRequirement, actor Actor, review *models.Review) bool {
	isOwner := actor.ID == review.OwnerId
	isAdmin := actor.Role == models.UserRoleAdmin

	switch requirement {
	case RequireOwner:
		return isOwner
	case RequireOwnerOrAdmin:
		return isOwner || isAdmin
	case RequireAdminOnly:
		return isAdmin
	default:
		return false
	}
}
