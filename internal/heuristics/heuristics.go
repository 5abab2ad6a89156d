// Package heuristics guesses the brand of a part number when the supplier
// file carries none. Rules are evaluated in order and the first match wins.
package heuristics

import (
	"strings"

	"github.com/partstrade/trade-service/internal/normalize"
)

// DefaultBrand is returned when no rule matches.
const DefaultBrand = "CHERY"

// Rule is one predicate over a normalized OEM with the brands it implies.
type Rule struct {
	Name   string
	Match  func(oem string) bool
	Brands []string
}

// Rules is the ordered rule table. Reordering changes results.
var Rules = []Rule{
	{
		Name: "chery-exact",
		Match: exactIn(
			"473H1009010", "481H1005030", "481H1008111", "477F1012010",
			"E4G161006040", "SQR481FC", "SQR477F",
		),
		Brands: []string{"CHERY"},
	},
	{
		Name:   "shared-engine-prefix",
		Match:  prefixIn(3, "SMW", "SMD", "SMR", "SMF"),
		Brands: []string{"CHERY", "HAVAL"},
	},
	{
		Name:   "haima-prefix",
		Match:  prefixIn(4, "B25D", "B26D", "HA01", "HA00", "SA00"),
		Brands: []string{"HAIMA"},
	},
	{
		Name:   "chery-model-prefix",
		Match:  prefixIn(3, "T11", "A11", "B11", "S11", "M11", "J18", "Q22", "T21", "J42", "J69"),
		Brands: []string{"CHERY"},
	},
	{
		Name:   "faw-suffix",
		Match:  suffixIn(2, "K7", "K8", "KA", "D3", "X5"),
		Brands: []string{"FAW"},
	},
	{
		Name:   "lifan-prefix",
		Match:  prefixIn(2, "LF"),
		Brands: []string{"LIFAN"},
	},
	{
		Name:   "byd-prefix",
		Match:  prefixIn(3, "BYD", "F3R", "G3R"),
		Brands: []string{"BYD"},
	},
	{
		Name:   "great-wall-prefix",
		Match:  prefixIn(2, "GW"),
		Brands: []string{"GREAT-WALL"},
	},
	{
		Name:   "geely-digits",
		Match:  digitsLen(10, 10),
		Brands: []string{"GEELY"},
	},
	{
		Name:   "jac-digits",
		Match:  digitsLen(11, 12),
		Brands: []string{"JAC"},
	},
}

// Infer returns the candidate brands for an OEM. It never returns an empty
// slice; unmatched codes fall back to DefaultBrand.
func Infer(oem string) []string {
	if r, ok := Classify(oem); ok {
		return append([]string(nil), r.Brands...)
	}
	return []string{DefaultBrand}
}

// Classify returns the first rule matching oem.
func Classify(oem string) (Rule, bool) {
	code := normalize.OEM(oem)
	if code == "" {
		return Rule{}, false
	}
	for _, r := range Rules {
		if r.Match(code) {
			return r, true
		}
	}
	return Rule{}, false
}

func exactIn(codes ...string) func(string) bool {
	set := toSet(codes)
	return func(oem string) bool {
		_, ok := set[oem]
		return ok
	}
}

func prefixIn(n int, prefixes ...string) func(string) bool {
	set := toSet(prefixes)
	return func(oem string) bool {
		if len(oem) < n {
			return false
		}
		_, ok := set[oem[:n]]
		return ok
	}
}

func suffixIn(n int, suffixes ...string) func(string) bool {
	set := toSet(suffixes)
	return func(oem string) bool {
		if len(oem) <= n {
			return false
		}
		_, ok := set[oem[len(oem)-n:]]
		return ok
	}
}

func digitsLen(min, max int) func(string) bool {
	return func(oem string) bool {
		if len(oem) < min || len(oem) > max {
			return false
		}
		return strings.Trim(oem, "0123456789") == ""
	}
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
