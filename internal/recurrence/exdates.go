package recurrence

import (
	"sort"
	"strings"
)

// ExDateSet is the set of occurrence date keys removed from a series. It is
// stored as a comma-separated list of YYYY-MM-DD keys.
type ExDateSet map[string]struct{}

// ParseExDates parses the stored representation. Blank entries are ignored and
// malformed entries are kept verbatim so a round trip never loses data.
func ParseExDates(raw *string) ExDateSet {
	set := make(ExDateSet)
	if raw == nil {
		return set
	}
	for _, part := range strings.Split(*raw, ",") {
		key := strings.TrimSpace(part)
		if key != "" {
			set[key] = struct{}{}
		}
	}
	return set
}

// Contains reports whether key is excluded.
func (s ExDateSet) Contains(key string) bool {
	_, ok := s[key]
	return ok
}

// Add excludes key and reports whether the set changed.
func (s ExDateSet) Add(key string) bool {
	if s.Contains(key) {
		return false
	}
	s[key] = struct{}{}
	return true
}

// Keys returns the keys in ascending order.
func (s ExDateSet) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Partition splits the set at splitKey: keys before it form past, the rest future.
// Date keys sort lexically in calendar order.
func (s ExDateSet) Partition(splitKey string) (past, future ExDateSet) {
	past, future = make(ExDateSet), make(ExDateSet)
	for k := range s {
		if k < splitKey {
			past[k] = struct{}{}
		} else {
			future[k] = struct{}{}
		}
	}
	return past, future
}

// String returns the canonical stored representation.
func (s ExDateSet) String() string {
	return strings.Join(s.Keys(), ",")
}

// Value returns the stored column value, nil for an empty set.
func (s ExDateSet) Value() *string {
	if len(s) == 0 {
		return nil
	}
	v := s.String()
	return &v
}
