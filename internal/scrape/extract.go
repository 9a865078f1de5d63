package scrape

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// Extractor turns fetched HTML into structured country data by applying a
// Ruleset. It holds no per-page state and is safe for reuse across pages.
type Extractor struct {
	baseURL *url.URL
	rules   Ruleset
	logger  *zap.Logger
}

// NewExtractor builds an extractor rooted at baseURL. Relative country links
// are resolved against it.
func NewExtractor(baseURL string, rules Ruleset, logger *zap.Logger) (*Extractor, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base url %q: %w", baseURL, err)
	}
	return &Extractor{baseURL: parsed, rules: rules, logger: logger}, nil
}

// ListURL returns the absolute URL of the country index page.
func (e *Extractor) ListURL() string {
	base := strings.TrimSuffix(e.baseURL.String(), "/")
	return base + strings.TrimSuffix(e.rules.CountryPathPrefix, "/")
}

// CountryList pulls the unique country links out of the index page. Links
// keep their first-seen order; a code claims its slot the first time it
// appears with a non-empty name.
func (e *Extractor) CountryList(body []byte) ([]CountryLink, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &ExtractionError{Country: "country list", Err: err}
	}

	var links []CountryLink
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if !strings.HasPrefix(href, e.rules.CountryPathPrefix) {
			return
		}
		code := e.rules.CountryCode(href)
		name := strings.TrimSpace(sel.Text())
		if name == "" || seen[code] {
			return
		}
		seen[code] = true
		links = append(links, CountryLink{
			URL:  e.absoluteURL(href),
			Code: code,
			Name: name,
		})
	})

	e.logger.Debug("Extracted country links", zap.Int("count", len(links)))
	return links, nil
}

// CountryDetail parses a country page into a CountryRecord. Every category
// from the ruleset gets an entry, empty when the page has no matching
// section, so the archived JSON keeps a stable shape.
func (e *Extractor) CountryDetail(body []byte, link CountryLink) (CountryRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return CountryRecord{}, &ExtractionError{Country: link.Name, Err: err}
	}

	record := CountryRecord{
		Name:       link.Name,
		Code:       link.Code,
		URL:        link.URL,
		Indicators: make(map[string][]IndicatorReading, len(e.rules.Categories)),
	}
	record.Region = e.labelSibling(doc, e.rules.RegionLabel)
	record.IncomeLevel = e.labelSibling(doc, e.rules.IncomeLabel)

	for _, category := range e.rules.Categories {
		record.Indicators[category] = e.categoryReadings(doc, category)
	}
	return record, nil
}

// labelSibling finds a leaf div whose text matches the label pattern and
// returns the text of its immediately following sibling.
func (e *Extractor) labelSibling(doc *goquery.Document, label *regexp.Regexp) string {
	var out string
	doc.Find("div").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if sel.Children().Length() > 0 {
			return true
		}
		if !label.MatchString(strings.TrimSpace(sel.Text())) {
			return true
		}
		out = strings.TrimSpace(sel.Next().Text())
		return false
	})
	return out
}

// categoryReadings scans indicator-looking sections that mention the category
// and collects one reading per row that carries both a name and a value cell.
func (e *Extractor) categoryReadings(doc *goquery.Document, category string) []IndicatorReading {
	readings := make([]IndicatorReading, 0)
	doc.Find(e.rules.SectionTags).Each(func(_ int, section *goquery.Selection) {
		if !classMatches(section.AttrOr("class", ""), e.rules.SectionClasses) {
			return
		}
		if !containsLower(section.Text(), category) {
			return
		}
		section.Find(e.rules.RowTags).Each(func(_ int, row *goquery.Selection) {
			if !classMatches(row.AttrOr("class", ""), e.rules.RowClasses) {
				return
			}
			if reading, ok := e.rowReading(row); ok {
				readings = append(readings, reading)
			}
		})
	})
	return readings
}

// rowReading extracts a single indicator from a row. Rows missing either
// cell are skipped; everything else becomes a reading, with the year parsed
// from a "(YYYY)" suffix or falling back to the ruleset default.
func (e *Extractor) rowReading(row *goquery.Selection) (IndicatorReading, bool) {
	nameCell := firstMatching(row.Find(e.rules.NameTags), e.rules.NameClasses)
	valueCell := firstMatching(row.Find(e.rules.ValueTags), e.rules.ValueClasses)
	if nameCell == nil || valueCell == nil {
		return IndicatorReading{}, false
	}

	name := strings.TrimSpace(nameCell.Text())
	valueText := strings.TrimSpace(valueCell.Text())

	year := e.rules.DefaultYear
	if m := e.rules.YearPattern.FindStringSubmatch(valueText); m != nil {
		parsed, err := strconv.Atoi(m[1])
		if err == nil {
			year = parsed
		}
	}

	return IndicatorReading{
		Name:  name,
		Code:  IndicatorCode(name),
		Value: strings.TrimSpace(strings.ReplaceAll(valueText, fmt.Sprintf("(%d)", year), "")),
		Year:  year,
	}, true
}

// firstMatching returns the first selection element whose class attribute
// contains one of the keywords, or nil when none do.
func firstMatching(sel *goquery.Selection, keywords []string) *goquery.Selection {
	var match *goquery.Selection
	sel.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if classMatches(s.AttrOr("class", ""), keywords) {
			match = s
			return false
		}
		return true
	})
	return match
}

// absoluteURL resolves an href against the extractor's base URL.
func (e *Extractor) absoluteURL(href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return e.baseURL.String() + href
	}
	return e.baseURL.ResolveReference(ref).String()
}
