package lifecycle

import (
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

// ParseMemory converts a unit-suffixed memory string into bytes. Accepted
// suffixes are k/m/g (case-insensitive); a bare numeric string is bytes.
// Empty or unparsable input yields 0, which the engine treats as unlimited.
func ParseMemory(s string) int64 {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0
	}
	mult := int64(1)
	switch s[len(s)-1] {
	case 'k':
		mult = 1024
		s = s[:len(s)-1]
	case 'm':
		mult = 1024 * 1024
		s = s[:len(s)-1]
	case 'g':
		mult = 1024 * 1024 * 1024
		s = s[:len(s)-1]
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n * mult
}

// ParseCPU converts a fractional-core string ("0.5", "2") into engine
// nanocpu units. Empty or unparsable input yields 0 (unlimited).
func ParseCPU(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	cores, err := cast.ToFloat64E(s)
	if err != nil || cores <= 0 {
		return 0
	}
	return int64(cores * 1e9)
}

// cpuHint derives the integer concurrency hint advertised to the connector
// process from its fractional core limit. At least 1.
func cpuHint(s string) int {
	nano := ParseCPU(s)
	if nano <= 0 {
		return 1
	}
	hint := int((nano + 1e9 - 1) / 1e9)
	if hint < 1 {
		hint = 1
	}
	return hint
}

// SanitizeName maps a display name into the container-name alphabet
// [a-z0-9_.-], collapsing runs of separators and trimming them from both
// ends. The function is idempotent.
func SanitizeName(s string) string {
	var b strings.Builder
	lastSep := true // trims leading separators
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '.':
			b.WriteRune(r)
			lastSep = false
		default:
			if !lastSep {
				b.WriteByte('-')
				lastSep = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
