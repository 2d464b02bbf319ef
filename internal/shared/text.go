package shared

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// CleanText trims s and converts it to NFC so names typed with combining
// marks compare equal to their precomposed forms.
func CleanText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
