package domain

import (
	"fmt"
	"strings"
)

// PublishingState is the lifecycle stage of a single version.
type PublishingState int

const (
	StateDraft PublishingState = iota + 1
	StateApproved
	StatePublished
	StateArchived
)

// AllStates lists every state in lifecycle order.
var AllStates = []PublishingState{StateDraft, StateApproved, StatePublished, StateArchived}

func (s PublishingState) String() string {
	switch s {
	case StateDraft:
		return "DRAFT"
	case StateApproved:
		return "APPROVED"
	case StatePublished:
		return "PUBLISHED"
	case StateArchived:
		return "ARCHIVED"
	default:
		return fmt.Sprintf("PublishingState(%d)", int(s))
	}
}

func (s PublishingState) valid() bool {
	switch s {
	case StateDraft, StateApproved, StatePublished, StateArchived:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether moving from s to target is a legal lifecycle step.
// Draft -> Approved; Approved -> Published | Draft; Published -> Archived. Archived is terminal.
func (s PublishingState) CanTransitionTo(target PublishingState) bool {
	switch s {
	case StateDraft:
		return target == StateApproved
	case StateApproved:
		return target == StatePublished || target == StateDraft
	case StatePublished:
		return target == StateArchived
	case StateArchived:
		return false
	default:
		return false
	}
}

// ParsePublishingState accepts the wire names case-insensitively.
func ParsePublishingState(raw string) (PublishingState, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "DRAFT":
		return StateDraft, nil
	case "APPROVED":
		return StateApproved, nil
	case "PUBLISHED":
		return StatePublished, nil
	case "ARCHIVED":
		return StateArchived, nil
	default:
		return 0, fmt.Errorf("unknown publishing state %q", raw)
	}
}

func (s PublishingState) MarshalText() ([]byte, error) {
	if !s.valid() {
		return nil, fmt.Errorf("invalid publishing state %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *PublishingState) UnmarshalText(b []byte) error {
	parsed, err := ParsePublishingState(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
