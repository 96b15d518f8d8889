package catalog

import (
	"strings"
	"unicode"

	"github.com/dvloznov/spendbook/internal/domain"
)

// UnknownKey is the export key for a reference to a deleted entity.
const UnknownKey = "unknown"

// Index is an immutable id-keyed view of the catalog, built once per call
// by readers that resolve many references.
type Index struct {
	byID    map[string]*domain.Entity
	ordered []*domain.Entity
}

// NewIndex builds an index over entities.
func NewIndex(entities []*domain.Entity) *Index {
	ix := &Index{
		byID:    make(map[string]*domain.Entity, len(entities)),
		ordered: entities,
	}
	for _, e := range entities {
		ix.byID[e.ID] = e
	}
	return ix
}

// Get looks up an entity by id.
func (ix *Index) Get(id string) (*domain.Entity, bool) {
	e, ok := ix.byID[id]
	return e, ok
}

// Lookup resolves an optional reference.
func (ix *Index) Lookup(id *string) (*domain.Entity, bool) {
	if id == nil {
		return nil, false
	}
	return ix.Get(*id)
}

// All returns every entity in store order.
func (ix *Index) All() []*domain.Entity {
	return ix.ordered
}

// ByCategory returns the entities of one category in store order.
func (ix *Index) ByCategory(c domain.Category) []*domain.Entity {
	var out []*domain.Entity
	for _, e := range ix.ordered {
		if e.Category == c {
			out = append(out, e)
		}
	}
	return out
}

// Root returns the top ancestor of id. A root entity resolves to itself, and
// so does a child whose parent no longer exists.
func (ix *Index) Root(id string) (*domain.Entity, bool) {
	e, ok := ix.byID[id]
	if !ok {
		return nil, false
	}
	seen := map[string]bool{e.ID: true}
	for !e.IsRoot() {
		parent, ok := ix.byID[*e.ParentID]
		if !ok || seen[parent.ID] {
			break
		}
		seen[parent.ID] = true
		e = parent
	}
	return e, true
}

// Resolve matches a raw category value from the extraction service against
// the catalog: exact id first, then case-insensitive label.
func (ix *Index) Resolve(raw string) (*domain.Entity, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	if e, ok := ix.byID[raw]; ok {
		return e, true
	}
	want := normalizeLabel(raw)
	for _, e := range ix.ordered {
		if normalizeLabel(e.Label) == want {
			return e, true
		}
	}
	return nil, false
}

// Key returns the stable export key of a reference: camel-cased category,
// parent label (for nested entities) and label, e.g. expenseFoodGroceries.
// Nil references yield "" and dangling ones UnknownKey.
func (ix *Index) Key(id *string) string {
	if id == nil {
		return ""
	}
	e, ok := ix.byID[*id]
	if !ok {
		return UnknownKey
	}
	parts := []string{string(e.Category)}
	if !e.IsRoot() {
		if parent, ok := ix.byID[*e.ParentID]; ok {
			parts = append(parts, parent.Label)
		}
	}
	parts = append(parts, e.Label)
	return camelKey(parts...)
}

// normalizeLabel normalizes a label for case-insensitive comparison.
func normalizeLabel(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

func camelKey(parts ...string) string {
	var words []string
	for _, p := range parts {
		words = append(words, strings.FieldsFunc(p, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})...)
	}

	var b strings.Builder
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		if i > 0 {
			runes[0] = unicode.ToUpper(runes[0])
		}
		b.WriteString(string(runes))
	}
	return b.String()
}
