// Package parser turns the raw multi-line text of a classification
// model response into a structured draft receipt. The text loosely
// follows a requested template but is not contractually well formed, so
// every field is recovered line by line and locked on its first
// successful match.
package parser

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"yeongsu/internal/core"
	"yeongsu/internal/taxonomy"
)

const (
	storeLabel = "가게명:"
	dateLabel  = "날짜:"
)

var (
	dateRe   = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	amountRe = regexp.MustCompile(`\(([^)]+)\)`)

	// Total label variants, tried in priority order. The first pattern
	// matching anywhere in a line wins and locks the total.
	totalRes = []*regexp.Regexp{
		regexp.MustCompile(`총\s*결제\s*금액\s*[:：]?\s*([\d,\s]+)`),
		regexp.MustCompile(`총결제금액\s*[:：]?\s*([\d,\s]+)`),
		regexp.MustCompile(`합계\s*[:：]?\s*([\d,\s]+)`),
		regexp.MustCompile(`총액\s*[:：]?\s*([\d,\s]+)`),
		regexp.MustCompile(`결제금액\s*[:：]?\s*([\d,\s]+)`),
		regexp.MustCompile(`총금액\s*[:：]?\s*([\d,\s]+)`),
	}

	amountCleaner = strings.NewReplacer(",", "", " ", "", "원", "")
)

type Parser struct {
	tax *taxonomy.Taxonomy
}

func New(tax *taxonomy.Taxonomy) *Parser {
	return &Parser{tax: tax}
}

// Parse scans the model response line by line, in original order. Each
// field keeps its first successful match; later lines never overwrite
// it. Items are accepted only when their category pair is an exact
// taxonomy member; fuzzy correction is deferred to persistence time.
// ocrText is the original unprocessed receipt text, used only as a
// fallback source for the total amount.
func (p *Parser) Parse(modelText, ocrText string) (core.Draft, error) {
	var (
		storeName string
		dateStr   string
		items     []core.Item
		total     int64
	)

	for _, raw := range strings.Split(modelText, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if storeName == "" && (strings.Contains(line, storeLabel) || !containsDigit(line)) {
			if name := parseStoreName(line); name != "" {
				storeName = name
				continue
			}
		}

		if dateStr == "" && (strings.Contains(line, dateLabel) || dateRe.MatchString(line)) {
			if d := parseDateLine(line); d != "" {
				dateStr = d
				continue
			}
		}

		if strings.Contains(line, ":") && strings.Contains(line, "(") && strings.Contains(line, ")") {
			if item, ok := p.parseItemLine(line); ok {
				items = append(items, item)
			}
		}

		if total == 0 {
			if v, ok := matchTotal(line); ok {
				total = v
				continue
			}
		}
	}

	if total == 0 {
		// The model response carried no total. Re-scan the raw OCR text
		// with the same label patterns.
		for _, line := range strings.Split(ocrText, "\n") {
			if v, ok := matchTotal(line); ok {
				total = v
				break
			}
		}
	}

	switch {
	case storeName == "":
		return core.Draft{}, &core.IncompleteExtractionError{Missing: core.MissingStore}
	case dateStr == "":
		return core.Draft{}, &core.IncompleteExtractionError{Missing: core.MissingDate}
	case len(items) == 0:
		return core.Draft{}, &core.IncompleteExtractionError{Missing: core.MissingItems}
	case total == 0:
		return core.Draft{}, &core.IncompleteExtractionError{Missing: core.MissingTotal}
	}

	date, err := core.ParseDate(dateStr)
	if err != nil {
		return core.Draft{}, &core.IncompleteExtractionError{Missing: core.MissingDate}
	}

	return core.Draft{
		StoreName: storeName,
		Date:      date,
		Items:     items,
		Total:     core.Money{Won: total},
	}, nil
}

// parseStoreName strips the store label and any embedded date fragment
// from the line.
func parseStoreName(line string) string {
	line = strings.ReplaceAll(line, storeLabel, "")
	line = dateRe.ReplaceAllString(line, "")
	return strings.TrimSpace(line)
}

// parseDateLine extracts a YYYY-MM-DD fragment, rejecting fragments
// that are not real calendar dates.
func parseDateLine(line string) string {
	m := dateRe.FindString(line)
	if m == "" {
		return ""
	}
	if _, err := core.ParseDate(m); err != nil {
		return ""
	}
	return m
}

// parseItemLine splits a name:category:subcategory triple followed by a
// parenthesized amount. The item is kept only if the pair is an exact
// taxonomy member.
func (p *Parser) parseItemLine(line string) (core.Item, bool) {
	parts := strings.Split(line, ":")
	if len(parts) < 3 {
		return core.Item{}, false
	}
	name := strings.TrimSpace(parts[0])
	category := strings.TrimSpace(parts[1])
	subcategory := strings.TrimSpace(strings.SplitN(parts[2], "(", 2)[0])

	m := amountRe.FindStringSubmatch(line)
	if m == nil {
		return core.Item{}, false
	}
	amount, err := parseAmount(m[1])
	if err != nil || amount <= 0 {
		return core.Item{}, false
	}

	if !p.tax.Validate(category, subcategory) {
		slog.Debug("Dropping item with invalid category pair",
			"item", name, "category", category, "subcategory", subcategory)
		return core.Item{}, false
	}

	return core.Item{
		Name:        name,
		Category:    category,
		Subcategory: subcategory,
		Amount:      core.Money{Won: amount},
	}, true
}

func matchTotal(line string) (int64, bool) {
	for _, re := range totalRes {
		m := re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		v, err := parseAmount(m[1])
		if err != nil || v <= 0 {
			continue
		}
		return v, true
	}
	return 0, false
}

// parseAmount strips thousand separators, spaces and the currency
// suffix, then parses the rest as an integer number of won.
func parseAmount(s string) (int64, error) {
	return strconv.ParseInt(amountCleaner.Replace(strings.TrimSpace(s)), 10, 64)
}

func containsDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
