package vfm

import (
	"cmp"
	"slices"
	"strings"
	"time"
)

// Sort fields accepted in a sort key.
const (
	SortByName      = "name"
	SortBySize      = "size"
	SortByCreatedAt = "createdAt"
)

// DefaultSort is used when a caller passes an empty sort key.
const DefaultSort = "createdAt-desc"

// SortKey is a parsed "<field>-<direction>" string such as "name-asc".
type SortKey struct {
	Field string
	Desc  bool
}

// ParseSortKey splits s at its first '-'. Any direction other than "asc",
// including a missing one, sorts descending. The field is kept verbatim; a field this package does
// not know compares every pair as equal.
func ParseSortKey(s string) SortKey {
	if s == "" {
		s = DefaultSort
	}
	field, dir, _ := strings.Cut(s, "-")
	return SortKey{Field: field, Desc: dir != "asc"}
}

func (k SortKey) String() string {
	if k.Desc {
		return k.Field + "-desc"
	}
	return k.Field + "-asc"
}

// sortFields tells sortBy how to read the sortable fields of T. A nil
// accessor makes every value of that field zero.
type sortFields[T any] struct {
	name    func(T) string
	size    func(T) int64
	created func(T) time.Time
}

// sortBy sorts items in place, stably, by key.
func sortBy[T any](items []T, key SortKey, f sortFields[T]) {
	compare := func(a, b T) int { return 0 }

	switch key.Field {
	case SortByName:
		if f.name != nil {
			compare = func(a, b T) int {
				return strings.Compare(strings.ToLower(f.name(a)), strings.ToLower(f.name(b)))
			}
		}
	case SortBySize:
		if f.size != nil {
			compare = func(a, b T) int { return cmp.Compare(f.size(a), f.size(b)) }
		}
	case SortByCreatedAt:
		if f.created != nil {
			compare = func(a, b T) int { return f.created(a).Compare(f.created(b)) }
		}
	}

	slices.SortStableFunc(items, func(a, b T) int {
		if key.Desc {
			return compare(b, a)
		}
		return compare(a, b)
	})
}

// matchesSearch is the case-insensitive substring filter used by listings.
func matchesSearch(name, search string) bool {
	if search == "" {
		return true
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(search))
}
