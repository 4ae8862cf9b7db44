package models

import (
	"encoding/json"
	"testing"
)

func TestParseReviewStatus_ClosedSet(t *testing.T) {
	for _, name := range []string{"Draft", "Submitted", "InReview", "NeedsWork", "Approved", "Archived"} {
		status, err := ParseReviewStatus(name)
		if err != nil {
			t.Fatalf("%s should parse: %v", name, err)
		}
		if string(status) != name {
			t.Fatalf("want %s, got %s", name, status)
		}
	}

	// Case matters; near-misses and free-form strings are all rejected.
	for _, bad := range []string{"draft", "APPROVED", "Published", "In Review", ""} {
		if _, err := ParseReviewStatus(bad); err == nil {
			t.Fatalf("%q must not parse", bad)
		}
	}
}

func TestReviewStatus_StrictJSON(t *testing.T) {
	var status ReviewStatus
	if err := json.Unmarshal([]byte(`"Submitted"`), &status); err != nil {
		t.Fatalf("valid status failed to unmarshal: %v", err)
	}
	if status != ReviewStatusSubmitted {
		t.Fatalf("want Submitted, got %s", status)
	}

	if err := json.Unmarshal([]byte(`"published"`), &status); err == nil {
		t.Fatal("unknown status must fail to unmarshal")
	}
	if err := json.Unmarshal([]byte(`3`), &status); err == nil {
		t.Fatal("non-string status must fail to unmarshal")
	}
}
