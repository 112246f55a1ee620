package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// NormalizeID coerces an identifier of any historical representation to the
// canonical string form used by primary keys. Deployments that predate the
// UUID migration still hold integer identifiers in some columns and tokens,
// so every cross-type comparison must go through this helper (and through a
// ::text cast on the SQL side) instead of relying on implicit equality.
func NormalizeID(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(id)
	case int:
		return strconv.Itoa(id)
	case int32:
		return strconv.FormatInt(int64(id), 10)
	case int64:
		return strconv.FormatInt(id, 10)
	case uint64:
		return strconv.FormatUint(id, 10)
	case float64:
		// JSON numbers decode as float64; legacy integer IDs arrive whole.
		if id == float64(int64(id)) {
			return strconv.FormatInt(int64(id), 10)
		}
		return strconv.FormatFloat(id, 'f', -1, 64)
	case fmt.Stringer:
		return strings.TrimSpace(id.String())
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", id))
	}
}

// SameID reports whether two identifiers refer to the same entity after
// normalization. Two empty identifiers never match.
func SameID(a, b any) bool {
	na := NormalizeID(a)
	if na == "" {
		return false
	}
	return na == NormalizeID(b)
}
