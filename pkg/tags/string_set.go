package tags

import (
	"sort"
	"strings"
)

// StringSet is a set of tag values a [Requirement] is checked against.
type StringSet map[string]struct{}

func NewStringSet(values ...string) StringSet {
	result := make(StringSet, len(values))
	for _, value := range values {
		result[value] = struct{}{}
	}

	return result
}

func (s StringSet) Has(value string) bool {
	_, ok := s[value]
	return ok
}

// Any returns an arbitrary element of the set, if there is one.
func (s StringSet) Any() (string, bool) {
	for key := range s {
		return key, true
	}

	return "", false
}

// Sorted returns elements of the set in ascending order.
func (s StringSet) Sorted() []string {
	if s == nil {
		return nil
	}

	l := make([]string, 0, len(s))
	for key := range s {
		l = append(l, key)
	}
	sort.Strings(l)

	return l
}

func (s StringSet) JoinSorted(sep string) string {
	return strings.Join(s.Sorted(), sep)
}
