package secret

import "strings"

// Mask returns a representation of s that is safe to log.
// Short values are fully hidden; longer ones keep a small prefix and the
// final character so operators can tell two keys apart.
func Mask(s string) string {
	n := len(s)
	switch {
	case n == 0:
		return ""
	case n <= 5:
		return strings.Repeat("*", n)
	case n <= 20:
		return s[:1] + strings.Repeat("*", n-2) + s[n-1:]
	default:
		return s[:3] + strings.Repeat("*", n-4) + s[n-1:]
	}
}
