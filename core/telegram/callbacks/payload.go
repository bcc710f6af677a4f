package callbacks

import (
	"strconv"
	"strings"
)

// SplitPayload splits p into exactly n fields. The last field keeps any further separators.
func SplitPayload(p string, n int) ([]string, error) {
	if p == "" || n <= 0 {
		return nil, strconv.ErrSyntax
	}
	parts := strings.SplitN(p, Sep, n)
	if len(parts) != n {
		return nil, strconv.ErrSyntax
	}
	return parts, nil
}

// JoinPayload builds a payload from fields.
func JoinPayload(fields ...string) string {
	return strings.Join(fields, Sep)
}
