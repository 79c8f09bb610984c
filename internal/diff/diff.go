// Package diff computes structural differences between two JSON documents.
package diff

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
	"strconv"

	"mdversion/internal/domain"
)

// Engine is stateless and safe for concurrent use.
type Engine struct{}

// Compare diffs the content of two versions of the same document.
func (Engine) Compare(from, to domain.Version) (domain.VersionComparison, error) {
	changes, err := Contents(from.Content(), to.Content())
	if err != nil {
		return domain.VersionComparison{}, err
	}
	return domain.NewVersionComparison(from.Number(), to.Number(), changes), nil
}

// Contents diffs two raw JSON values. Arrays are compared by position.
func Contents(from, to json.RawMessage) ([]domain.ChangeDetail, error) {
	a, err := decode(from)
	if err != nil {
		return nil, fmt.Errorf("decode from content: %w", err)
	}
	b, err := decode(to)
	if err != nil {
		return nil, fmt.Errorf("decode to content: %w", err)
	}
	w := walker{}
	w.compare("", a, b)
	return w.changes, nil
}

func decode(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

type kind int

const (
	kindScalar kind = iota
	kindObject
	kindArray
)

func kindOf(v any) kind {
	switch v.(type) {
	case map[string]any:
		return kindObject
	case []any:
		return kindArray
	default:
		return kindScalar
	}
}

type walker struct {
	changes []domain.ChangeDetail
}

func (w *walker) add(t domain.ChangeType, path string, old, next any) {
	w.changes = append(w.changes, domain.ChangeDetail{Type: t, Path: path, OldValue: old, NewValue: next})
}

func (w *walker) compare(path string, old, next any) {
	if kindOf(old) != kindOf(next) {
		w.add(domain.ChangeModified, path, old, next)
		return
	}
	switch o := old.(type) {
	case map[string]any:
		w.compareObjects(path, o, next.(map[string]any))
	case []any:
		w.compareArrays(path, o, next.([]any))
	default:
		if !scalarEqual(old, next) {
			w.add(domain.ChangeModified, path, old, next)
		}
	}
}

func (w *walker) compareObjects(path string, old, next map[string]any) {
	for _, k := range sortedKeys(old) {
		child := keyPath(path, k)
		nv, ok := next[k]
		if !ok {
			w.add(domain.ChangeRemoved, child, old[k], nil)
			continue
		}
		w.compare(child, old[k], nv)
	}
	for _, k := range sortedKeys(next) {
		if _, ok := old[k]; ok {
			continue
		}
		w.add(domain.ChangeAdded, keyPath(path, k), nil, next[k])
	}
}

func (w *walker) compareArrays(path string, old, next []any) {
	shared := min(len(old), len(next))
	for i := 0; i < shared; i++ {
		w.compare(indexPath(path, i), old[i], next[i])
	}
	for i := shared; i < len(next); i++ {
		w.add(domain.ChangeAdded, indexPath(path, i), nil, next[i])
	}
	for i := shared; i < len(old); i++ {
		w.add(domain.ChangeRemoved, indexPath(path, i), old[i], nil)
	}
}

func scalarEqual(a, b any) bool {
	switch av := a.(type) {
	case json.Number:
		bv, ok := b.(json.Number)
		if !ok {
			return false
		}
		if av == bv {
			return true
		}
		ar, aok := new(big.Rat).SetString(string(av))
		br, bok := new(big.Rat).SetString(string(bv))
		return aok && bok && ar.Cmp(br) == 0
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	default:
		return false
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func keyPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

func indexPath(parent string, i int) string {
	return parent + "[" + strconv.Itoa(i) + "]"
}
