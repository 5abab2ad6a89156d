// Package normalize canonicalizes brand names, OEM part numbers and the
// brand synonym graph used by every matching step.
package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	brandDisallowedRe = regexp.MustCompile(`[^A-Za-z0-9 \-]`)
	brandSeparatorRe  = regexp.MustCompile(`[ \-]+`)
	oemDisallowedRe   = regexp.MustCompile(`[^A-Za-z0-9]`)
)

// Brand canonicalizes a free-text brand: ASCII letters are uppercased,
// everything outside [A-Za-z0-9 -] is removed, runs of spaces and hyphens
// collapse to one hyphen, and separators are trimmed from both ends.
func Brand(raw string) string {
	s := upperASCII(raw)
	s = brandDisallowedRe.ReplaceAllString(s, "")
	s = brandSeparatorRe.ReplaceAllString(s, "-")
	return strings.Trim(s, " -")
}

// OEM keeps only ASCII letters and digits, uppercased.
func OEM(raw string) string {
	return strings.ToUpper(oemDisallowedRe.ReplaceAllString(raw, ""))
}

// Key is the (oem, brand) matching key used for dedup and lookups.
func Key(oem, brand string) string {
	return OEM(oem) + "|" + Brand(brand)
}

// upperASCII uppercases a-z only; other runes are left for the filter.
func upperASCII(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' {
			return r - ('a' - 'A')
		}
		return r
	}, s)
}

// CleanName tidies a part description for storage. Compatibility forms are
// folded (NFKC) and whitespace, including NBSP, is collapsed.
func CleanName(s string) string {
	result := norm.NFKC.String(s)
	result = strings.NewReplacer("\u00a0", " ", "\u202f", " ").Replace(result)
	return strings.Join(strings.Fields(result), " ")
}
