package domain

import "fmt"

// ChangeType classifies a single difference between two content trees.
type ChangeType string

const (
	ChangeAdded    ChangeType = "ADDED"
	ChangeModified ChangeType = "MODIFIED"
	ChangeRemoved  ChangeType = "REMOVED"
)

// IsBreaking reports whether consumers of the old content can be broken by this change.
// Only removals are breaking.
func (c ChangeType) IsBreaking() bool {
	switch c {
	case ChangeRemoved:
		return true
	case ChangeAdded, ChangeModified:
		return false
	default:
		panic(fmt.Sprintf("unknown change type %q", string(c)))
	}
}

// ChangeDetail is one difference at a path. OldValue is nil for additions and NewValue for removals.
type ChangeDetail struct {
	Type     ChangeType `json:"type"`
	Path     string     `json:"path"`
	OldValue any        `json:"old_value"`
	NewValue any        `json:"new_value"`
}

func (c ChangeDetail) IsBreaking() bool { return c.Type.IsBreaking() }

// ChangeSummary counts changes per type.
type ChangeSummary struct {
	Added    int `json:"added"`
	Modified int `json:"modified"`
	Removed  int `json:"removed"`
}

// VersionComparison is the immutable result of diffing two versions.
type VersionComparison struct {
	fromVersion int
	toVersion   int
	changes     []ChangeDetail
	breaking    bool
}

// NewVersionComparison derives the breaking flag from the changes.
func NewVersionComparison(from, to int, changes []ChangeDetail) VersionComparison {
	breaking := false
	for _, c := range changes {
		if c.IsBreaking() {
			breaking = true
			break
		}
	}
	return VersionComparison{
		fromVersion: from,
		toVersion:   to,
		changes:     append([]ChangeDetail(nil), changes...),
		breaking:    breaking,
	}
}

func (c VersionComparison) FromVersion() int         { return c.fromVersion }
func (c VersionComparison) ToVersion() int           { return c.toVersion }
func (c VersionComparison) HasBreakingChanges() bool { return c.breaking }
func (c VersionComparison) HasChanges() bool         { return len(c.changes) > 0 }
func (c VersionComparison) ChangeCount() int         { return len(c.changes) }

func (c VersionComparison) Changes() []ChangeDetail {
	return append([]ChangeDetail(nil), c.changes...)
}

func (c VersionComparison) ChangesByType(t ChangeType) []ChangeDetail {
	var out []ChangeDetail
	for _, ch := range c.changes {
		if ch.Type == t {
			out = append(out, ch)
		}
	}
	return out
}

func (c VersionComparison) Summary() ChangeSummary {
	var s ChangeSummary
	for _, ch := range c.changes {
		switch ch.Type {
		case ChangeAdded:
			s.Added++
		case ChangeModified:
			s.Modified++
		case ChangeRemoved:
			s.Removed++
		}
	}
	return s
}
