package leads

import "strings"

// NormalizePhone reduces a raw phone string to its dedup key: digits only,
// with a leading Polish country code dropped when the length shows it is
// one. It returns "" when no digits remain. The result is a key, not a
// validated number.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case strings.HasPrefix(digits, "48") && len(digits) == 11:
		return digits[2:]
	case strings.HasPrefix(digits, "0048") && len(digits) == 13:
		return digits[4:]
	}
	return digits
}
