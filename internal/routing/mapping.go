package routing

import (
	"fmt"
	"sort"
	"strings"

	"message-router/internal/common/errors"
)

// MappingTable substitutes destination names for route keys. Keys without an
// entry map to themselves. The table is read-only after construction.
type MappingTable struct {
	mappings map[string]string
}

func NewMappingTable(mappings map[string]string) *MappingTable {
	copied := make(map[string]string, len(mappings))
	for k, v := range mappings {
		copied[k] = v
	}
	return &MappingTable{mappings: copied}
}

func (t *MappingTable) Resolve(key string) string {
	if destination, ok := t.mappings[key]; ok {
		return destination
	}
	return key
}

func (t *MappingTable) Len() int {
	return len(t.mappings)
}

// Keys returns the mapped route keys in sorted order
func (t *MappingTable) Keys() []string {
	keys := make([]string, 0, len(t.mappings))
	for k := range t.mappings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ParseMappings reads key=value pairs separated by newlines, a literal "\n",
// commas or semicolons. Whitespace around keys and values is ignored. A pair
// without "=" or with an empty side is rejected, as is a key given twice.
func ParseMappings(raw string) (map[string]string, error) {
	raw = strings.ReplaceAll(raw, `\n`, "\n")
	pairs := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '\n' || r == '\r' || r == ',' || r == ';'
	})

	mappings := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		key, value, found := strings.Cut(pair, "=")
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if !found || key == "" || value == "" {
			return nil, errors.ValidationError(fmt.Sprintf("invalid destination mapping %q, expected key=value", pair))
		}
		if existing, dup := mappings[key]; dup {
			return nil, errors.ValidationError(fmt.Sprintf("destination mapping for %q given twice (%s, %s)", key, existing, value))
		}
		mappings[key] = value
	}
	return mappings, nil
}
