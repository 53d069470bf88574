package models

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/farmsync/internal/common"
)

// FieldsFromPairs parses "name=value" lines typed at the shell. Values that
// look like numbers or booleans are stored as such; "null" clears a field
// when used in a patch. Wrap a value in double quotes to keep it a string.
func FieldsFromPairs(pairs []string) (Fields, error) {
	out := make(Fields, len(pairs))
	for _, p := range pairs {
		name, raw, ok := strings.Cut(p, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: %q must be name=value", common.ErrConstraint, p)
		}
		out[name] = parseValue(strings.TrimSpace(raw))
	}
	return out, nil
}

func parseValue(raw string) any {
	if len(raw) >= 2 && strings.HasPrefix(raw, `"`) && strings.HasSuffix(raw, `"`) {
		return raw[1 : len(raw)-1]
	}
	switch raw {
	case "null":
		return nil
	case "true":
		return true
	case "false":
		return false
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}
