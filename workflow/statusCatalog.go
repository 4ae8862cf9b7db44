package workflow

import (
	"github.com/mmdatafocus/reviews_backend/models"
)

// RoleRequirement is the gate attached to a legal transition.
type RoleRequirement string

const (
	RequireOwner        RoleRequirement = "Owner"
	RequireOwnerOrAdmin RoleRequirement = "OwnerOrAdmin"
	RequireAdminOnly    RoleRequirement = "AdminOnly"
)

type transitionKey struct {
	From models.ReviewStatus
	To   models.ReviewStatus
}

// allowedTransitions is the whole state machine in one table. Anything not
// listed here (other than a self-transition) is illegal for every actor.
var allowedTransitions = map[transitionKey]RoleRequirement{
	{models.ReviewStatusDraft, models.ReviewStatusSubmitted}: RequireOwner,
	{models.ReviewStatusDraft, models.ReviewStatusArchived}:  RequireOwnerOrAdmin,

	{models.ReviewStatusSubmitted, models.ReviewStatusDraft}:    RequireOwnerOrAdmin,
	{models.ReviewStatusSubmitted, models.ReviewStatusInReview}: RequireAdminOnly,
	{models.ReviewStatusSubmitted, models.ReviewStatusArchived}: RequireOwnerOrAdmin,

	{models.ReviewStatusInReview, models.ReviewStatusNeedsWork}: RequireAdminOnly,
	{models.ReviewStatusInReview, models.ReviewStatusApproved}:  RequireAdminOnly,

	{models.ReviewStatusNeedsWork, models.ReviewStatusSubmitted}: RequireOwner,
	{models.ReviewStatusNeedsWork, models.ReviewStatusApproved}:  RequireAdminOnly,
	{models.ReviewStatusNeedsWork, models.ReviewStatusArchived}:  RequireOwnerOrAdmin,

	// Re-open path: an approved review goes back under review, never to Draft.
	{models.ReviewStatusApproved, models.ReviewStatusInReview}: RequireAdminOnly,
	{models.ReviewStatusApproved, models.ReviewStatusArchived}: RequireAdminOnly,

	{models.ReviewStatusArchived, models.ReviewStatusDraft}: RequireAdminOnly,
}

// IsLegalTransition returns the role requirement for (from, to), or false
// when the catalog has no such edge. Self-transitions are not part of the
// table; the guard treats them as no-ops before consulting the catalog.
func IsLegalTransition(from, to models.ReviewStatus) (RoleRequirement, bool) {
	req, ok := allowedTransitions[transitionKey{From: from, To: to}]
	return req, ok
}
