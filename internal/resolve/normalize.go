// Package resolve maps tickers and company names to EDGAR CIK numbers,
// with normalized and approximate name matching over the SEC ticker
// directory.
package resolve

import (
	"regexp"
	"strings"

	"github.com/agext/levenshtein"
)

// legalSuffixes lists legal entity suffixes stripped during name
// normalization, longest forms first so "incorporated" wins over "inc".
var legalSuffixes = []string{
	"incorporated",
	"corporation",
	"partnership",
	"holdings",
	"limited",
	"company",
	"group",
	"corp",
	"llc",
	"ltd",
	"llp",
	"plc",
	"inc",
	"co",
	"lp",
}

var (
	punctRe      = regexp.MustCompile(`[^\w\s]`)
	multiSpaceRe = regexp.MustCompile(`\s{2,}`)
)

// NormalizeName standardizes a company name for matching: lowercase,
// legal suffixes stripped, punctuation removed, whitespace collapsed.
func NormalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ""
	}

	for changed := true; changed; {
		changed = false
		name = strings.TrimRight(name, ". ")
		for _, suffix := range legalSuffixes {
			if strings.HasSuffix(name, " "+suffix) {
				name = strings.TrimSuffix(name, " "+suffix)
				changed = true
				break
			}
		}
	}

	name = punctRe.ReplaceAllString(name, " ")
	name = multiSpaceRe.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// Similarity returns a normalized edit-distance ratio in [0,1] between
// two strings, case-insensitive. 1 means identical.
func Similarity(a, b string) float64 {
	return levenshtein.Similarity(strings.ToLower(a), strings.ToLower(b), nil)
}
