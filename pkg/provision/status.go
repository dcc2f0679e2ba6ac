package provision

import (
	"slices"

	"github.com/agentstation/keysync/pkg/errors"
)

// Status is the lifecycle state of a master key.
type Status string

// Master key statuses.
const (
	StatusProposed   Status = "proposed"
	StatusActive     Status = "active"
	StatusDeprecated Status = "deprecated"
)

// String returns the string representation of a status.
func (s Status) String() string {
	return string(s)
}

// Statuses returns every status in lifecycle order.
func Statuses() []Status {
	return []Status{StatusProposed, StatusActive, StatusDeprecated}
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	return slices.Contains(Statuses(), s)
}

// Rank is the position of s in the lifecycle. Unknown statuses rank -1.
func (s Status) Rank() int {
	return slices.Index(Statuses(), s)
}

// transitions is the closed table of legal status changes.
var transitions = map[Status]Status{
	StatusProposed: StatusActive,
	StatusActive:   StatusDeprecated,
}

// CanTransition reports whether from → to is a legal change.
func CanTransition(from, to Status) bool {
	next, ok := transitions[from]
	return ok && next == to
}

// ParseStatus parses a status name.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.IsValid() {
		return "", &errors.ValidationError{
			Field:   "status",
			Value:   s,
			Message: "must be one of proposed, active, deprecated",
		}
	}
	return st, nil
}
