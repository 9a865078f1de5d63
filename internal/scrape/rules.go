package scrape

import (
	"regexp"
	"strings"
)

// Ruleset declares the heuristic extraction rules as data. The upstream
// markup carries no stable contract, so country pages are scanned by loose
// tag/class matching; keeping the patterns here lets them be retuned when the
// site drifts without touching the traversal code.
type Ruleset struct {
	// CountryPathPrefix identifies country links on the listing page.
	CountryPathPrefix string

	// RegionLabel and IncomeLabel match the leaf elements labeling the
	// region and income level on a detail page; the value is read from the
	// element that immediately follows the label.
	RegionLabel *regexp.Regexp
	IncomeLabel *regexp.Regexp

	// Selector/keyword pairs for the category scan. An element qualifies
	// when it matches the tag selector and its class attribute contains any
	// of the keywords, case-insensitively.
	SectionTags    string
	SectionClasses []string
	RowTags        string
	RowClasses     []string
	NameTags       string
	NameClasses    []string
	ValueTags      string
	ValueClasses   []string

	// Categories is the fixed set of indicator groupings scanned per page.
	Categories []string

	// YearPattern extracts the parenthesized four-digit year embedded in
	// value text. DefaultYear is assumed when no marker is present.
	YearPattern *regexp.Regexp
	DefaultYear int
}

var (
	countryCodeScrub   = regexp.MustCompile(`[^a-zA-Z0-9\-]`)
	indicatorCodeScrub = regexp.MustCompile(`[^a-zA-Z0-9]`)
)

// DefaultRuleset returns the rules tuned for the World Bank country pages.
func DefaultRuleset() Ruleset {
	return Ruleset{
		CountryPathPrefix: "/country/",
		RegionLabel:       regexp.MustCompile(`(?i)region`),
		IncomeLabel:       regexp.MustCompile(`(?i)income`),
		SectionTags:       "section, div",
		SectionClasses:    []string{"indicator", "data"},
		RowTags:           "tr, div",
		RowClasses:        []string{"indicator", "row"},
		NameTags:          "th, td, div",
		NameClasses:       []string{"name", "title"},
		ValueTags:         "td, div, span",
		ValueClasses:      []string{"value", "data"},
		Categories:        []string{"social", "economic", "environment", "institutions"},
		YearPattern:       regexp.MustCompile(`\((\d{4})\)`),
		DefaultYear:       2023,
	}
}

// CountryCode derives a country code from a listing link target: the final
// path segment, minus any query string, scrubbed to alphanumerics and hyphens.
func (r Ruleset) CountryCode(href string) string {
	segments := strings.Split(href, "/")
	last := segments[len(segments)-1]
	if idx := strings.Index(last, "?"); idx >= 0 {
		last = last[:idx]
	}
	return countryCodeScrub.ReplaceAllString(last, "")
}

// IndicatorCode slugs an indicator display name into its code: lowercase,
// with every non-alphanumeric character replaced by an underscore.
func IndicatorCode(name string) string {
	return strings.ToLower(indicatorCodeScrub.ReplaceAllString(name, "_"))
}

func classMatches(classAttr string, keywords []string) bool {
	for _, kw := range keywords {
		if containsLower(classAttr, kw) {
			return true
		}
	}
	return false
}

func containsLower(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
