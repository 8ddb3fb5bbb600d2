package slugify

import "strings"

// Make converts a pack name into its selected_pack form: lowercase,
// spaces to hyphens, strip anything outside [a-z0-9-], collapse runs of
// hyphens and trim them from both ends.
func Make(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(s))
	prevHyphen := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prevHyphen = false
		case r == ' ' || r == '-':
			if !prevHyphen && b.Len() > 0 {
				b.WriteByte('-')
				prevHyphen = true
			}
		default:
			// dropped
		}
	}
	return strings.TrimRight(b.String(), "-")
}
