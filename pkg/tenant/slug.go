package tenant

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// slugify derives a tenant slug from its display name, collapsing anything
// that isn't lowercase-alphanumeric into a single hyphen and padding short
// results so the output always satisfies provisioner.IsValidSlug.
func slugify(name string) string {
	var b strings.Builder
	prevHyphen := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			prevHyphen = false
		default:
			if !prevHyphen && b.Len() > 0 {
				b.WriteByte('-')
				prevHyphen = true
			}
		}
	}
	s := strings.Trim(b.String(), "-")
	if len(s) > 30 {
		s = strings.Trim(s[:30], "-")
	}
	for len(s) < 3 {
		s += randHex(1)
	}
	return s
}

// withSuffix appends a short random suffix to s, trimming s first so the
// result still fits within the 30-character slug limit.
func withSuffix(s string) string {
	suffix := randHex(3)
	maxBase := 30 - len(suffix) - 1
	if len(s) > maxBase {
		s = s[:maxBase]
	}
	return s + "-" + suffix
}

func randHex(n int) string {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
