package models

import "strings"

const maxPhoneDigits = 11

// FormatPhone re-masks whatever is in the phone field after a keystroke.
// Non-digits are dropped and at most 11 digits are kept:
//
//	0-2 digits   11
//	3-6 digits   (11) 9876
//	7-10 digits  (11) 9876-5432
//	11 digits    (11) 98765-4321
//
// Formatting its own output returns the same string.
func FormatPhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	d := b.String()

	switch n := len(d); {
	case n <= 2:
		return d
	case n <= 6:
		return "(" + d[:2] + ") " + d[2:]
	case n <= 10:
		return "(" + d[:2] + ") " + d[2:6] + "-" + d[6:]
	default:
		return "(" + d[:2] + ") " + d[2:7] + "-" + d[7:maxPhoneDigits]
	}
}
