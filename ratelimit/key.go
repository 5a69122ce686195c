package ratelimit

import (
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"
)

// Key derives a stable key from its parts. The same parts always yield the
// same key, across processes and restarts.
func Key(parts ...string) string {
	return strconv.FormatUint(xxh3.HashString(strings.Join(parts, "\x00")), 16)
}
