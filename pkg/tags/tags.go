package tags

import (
	"fmt"
	"sort"
	"strings"
)

// Tags represent the key-value pairs attached to a machine.
// VM API stores tag values as strings, numbers or booleans; Tags carries their string form.
type Tags map[string]string

// FromValues builds [Tags] out of raw tag values as returned by the VM API.
// It returns nil if values is empty.
func FromValues(values map[string]any) Tags {
	if len(values) == 0 {
		return nil
	}

	result := make(Tags, len(values))
	for key, value := range values {
		switch v := value.(type) {
		case nil:
			result[key] = ""
		case string:
			result[key] = v
		default:
			result[key] = fmt.Sprint(v)
		}
	}

	return result
}

// Has checks if a given key is present in the tag set.
func (t Tags) Has(key string) bool {
	_, ok := t[key]
	return ok
}

// Get returns tag value of a given key.
// It returns an empty string if the key is not in the tag set.
func (t Tags) Get(key string) string {
	return t[key]
}

// Keys returns tag keys in sorted order.
func (t Tags) Keys() []string {
	if t == nil {
		return nil
	}

	keys := make([]string, 0, len(t))
	for key := range t {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return keys
}

// String returns `key=value` pairs separated by comma, ordered by key.
func (t Tags) String() string {
	var sb strings.Builder
	for i, key := range t.Keys() {
		if i != 0 {
			sb.WriteRune(',')
		}
		sb.WriteString(key)
		sb.WriteRune('=')
		sb.WriteString(t[key])
	}

	return sb.String()
}
