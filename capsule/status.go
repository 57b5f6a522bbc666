package capsule

import "fmt"

// Status represents the lifecycle state of a capsule.
// The lifecycle is strictly forward: draft -> published -> archived,
// with draft -> archived permitted. There are no reverse transitions.
type Status string

const (
	// StatusDraft is the initial state of a newly created capsule.
	StatusDraft Status = "draft"

	// StatusPublished marks a capsule as released for consumption.
	StatusPublished Status = "published"

	// StatusArchived marks a capsule as retired. Archived capsules remain
	// readable but reject further content and score mutation.
	StatusArchived Status = "archived"
)

// IsValid returns true if the status is valid.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusArchived:
		return true
	default:
		return false
	}
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// CanTransition reports whether the lifecycle permits moving from s to next.
// Setting the same status is not a transition and returns false.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusDraft:
		return next == StatusPublished || next == StatusArchived
	case StatusPublished:
		return next == StatusArchived
	default:
		return false
	}
}

// ParseStatus parses a string into a Status value.
// Returns an error if the string is not a valid status.
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid capsule status: %s", s)
	}
	return status, nil
}

// AllStatuses returns all valid statuses in lifecycle order.
func AllStatuses() []Status {
	return []Status{StatusDraft, StatusPublished, StatusArchived}
}
