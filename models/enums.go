package models

import (
	"encoding/json"
	"fmt"
)

type ReviewStatus string

const (
	ReviewStatusDraft     ReviewStatus = "Draft"
	ReviewStatusSubmitted ReviewStatus = "Submitted"
	ReviewStatusInReview  ReviewStatus = "InReview"
	ReviewStatusNeedsWork ReviewStatus = "NeedsWork"
	ReviewStatusApproved  ReviewStatus = "Approved"
	ReviewStatusArchived  ReviewStatus = "Archived"
)

var reviewStatusByName = map[string]ReviewStatus{
	"Draft":     ReviewStatusDraft,
	"Submitted": ReviewStatusSubmitted,
	"InReview":  ReviewStatusInReview,
	"NeedsWork": ReviewStatusNeedsWork,
	"Approved":  ReviewStatusApproved,
	"Archived":  ReviewStatusArchived,
}

// ParseReviewStatus rejects anything outside the closed status set.
// Free-form strings must never reach the catalog or the database.
func ParseReviewStatus(s string) (ReviewStatus, error) {
	status, ok := reviewStatusByName[s]
	if !ok {
		return "", fmt.Errorf("invalid review status %q", s)
	}
	return status, nil
}

func (s ReviewStatus) IsValid() bool {
	_, ok := reviewStatusByName[string(s)]
	return ok
}

func (s *ReviewStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("review status must be string")
	}
	parsed, err := ParseReviewStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

type UserRole string

const (
	UserRoleMember UserRole = "Member"
	UserRoleLead   UserRole = "Lead"
	UserRoleAdmin  UserRole = "Admin"
)

func ParseUserRole(s string) (UserRole, error) {
	switch s {
	case "Member":
		return UserRoleMember, nil
	case "Lead":
		return UserRoleLead, nil
	case "Admin":
		return UserRoleAdmin, nil
	default:
		return "", fmt.Errorf("invalid user role %q", s)
	}
}

type ActivityAction string

const (
	ActivityActionCreate       ActivityAction = "Create"
	ActivityActionStatusChange ActivityAction = "StatusChange"
	ActivityActionLink         ActivityAction = "Link"
	ActivityActionUnlink       ActivityAction = "Unlink"
	ActivityActionReconcile    ActivityAction = "Reconcile"
)
