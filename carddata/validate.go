package carddata

import "strings"

// NormalizeCardNumber strips all whitespace and uppercases the input. The
// result is what the chip VERIFY command and the OCR card-number matcher
// both operate on.
func NormalizeCardNumber(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r', '　':
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}

// IsCardNumberValid reports whether the normalized input is exactly 12
// alphanumeric characters, the format shared by residence cards and
// driver's licenses.
func IsCardNumberValid(s string) bool {
	n := NormalizeCardNumber(s)
	if len(n) != 12 {
		return false
	}
	for i := 0; i < len(n); i++ {
		c := n[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'A' && c <= 'Z':
		default:
			return false
		}
	}
	return true
}

// LastFourDigits reduces a candidate individual number to the suffix that
// may be retained. Separators and other non-digits are ignored; the return
// value never exceeds four characters regardless of input shape.
func LastFourDigits(s string) string {
	digits := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			digits = append(digits, s[i])
		}
	}
	if len(digits) > 4 {
		digits = digits[len(digits)-4:]
	}
	return string(digits)
}
