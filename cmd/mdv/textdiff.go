package main

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"mdversion/internal/domain"
)

// textChange renders a character diff for a modified string value as [-removed-]{+added+}.
func textChange(c domain.ChangeDetail) (string, bool) {
	if c.Type != domain.ChangeModified {
		return "", false
	}
	oldText, ok1 := c.OldValue.(string)
	newText, ok2 := c.NewValue.(string)
	if !ok1 || !ok2 {
		return "", false
	}
	return inlineDiff(oldText, newText), true
}

func inlineDiff(oldText, newText string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(oldText, newText, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var b strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			b.WriteString(d.Text)
		case diffmatchpatch.DiffDelete:
			b.WriteString("[-" + d.Text + "-]")
		case diffmatchpatch.DiffInsert:
			b.WriteString("{+" + d.Text + "+}")
		}
	}
	return b.String()
}
