package domain

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Version is an immutable snapshot of a document's content. Mutators return a new value.
type Version struct {
	number    int
	content   json.RawMessage
	author    string
	createdAt time.Time
	summary   string
	state     PublishingState
	active    bool
}

// NewVersion builds a Version, rejecting values that could never be valid history entries.
func NewVersion(number int, content json.RawMessage, author string, createdAt time.Time, changeSummary string, state PublishingState, active bool) (Version, error) {
	if number < 1 {
		return Version{}, invalidVersion("version number must be >= 1")
	}
	if len(bytes.TrimSpace(content)) == 0 {
		return Version{}, invalidVersion("content is required")
	}
	if strings.TrimSpace(author) == "" {
		return Version{}, invalidVersion("author is required")
	}
	if createdAt.IsZero() {
		return Version{}, invalidVersion("created_at is required")
	}
	if !state.valid() {
		return Version{}, invalidVersion("publishing state is required")
	}
	return Version{
		number:    number,
		content:   append(json.RawMessage(nil), content...),
		author:    strings.TrimSpace(author),
		createdAt: createdAt.UTC(),
		summary:   changeSummary,
		state:     state,
		active:    active,
	}, nil
}

func (v Version) Number() int              { return v.number }
func (v Version) Author() string           { return v.author }
func (v Version) CreatedAt() time.Time     { return v.createdAt }
func (v Version) ChangeSummary() string    { return v.summary }
func (v Version) State() PublishingState   { return v.state }
func (v Version) IsActive() bool           { return v.active }
func (v Version) CanBeActivated() bool     { return v.state == StatePublished }
func (v Version) Content() json.RawMessage { return append(json.RawMessage(nil), v.content...) }

// TransitionTo returns a copy of v in the target state.
func (v Version) TransitionTo(target PublishingState) (Version, error) {
	if !v.state.CanTransitionTo(target) {
		return Version{}, invalidStateTransition(v.number, v.state, target)
	}
	next := v
	next.state = target
	return next, nil
}

func (v Version) withActive(active bool) Version {
	next := v
	next.active = active
	return next
}

type versionJSON struct {
	VersionNumber   int             `json:"version_number"`
	Content         json.RawMessage `json:"content"`
	Author          string          `json:"author"`
	CreatedAt       time.Time       `json:"created_at"`
	ChangeSummary   string          `json:"change_summary"`
	PublishingState PublishingState `json:"publishing_state"`
	IsActive        bool            `json:"is_active"`
}

func (v Version) MarshalJSON() ([]byte, error) {
	return json.Marshal(versionJSON{
		VersionNumber:   v.number,
		Content:         v.content,
		Author:          v.author,
		CreatedAt:       v.createdAt,
		ChangeSummary:   v.summary,
		PublishingState: v.state,
		IsActive:        v.active,
	})
}

func (v *Version) UnmarshalJSON(data []byte) error {
	var raw versionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := NewVersion(raw.VersionNumber, raw.Content, raw.Author, raw.CreatedAt, raw.ChangeSummary, raw.PublishingState, raw.IsActive)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
