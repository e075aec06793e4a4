package revenue

import (
	"regexp"
	"strconv"
	"strings"
)

// Shared extraction helpers for the Italian aggregator tiers. All of these
// sites publish figures in Italian number format with a "Fatturato" or
// "Ricavi" label somewhere nearby.

var (
	tagRe        = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe = regexp.MustCompile(`\s+`)

	// Labelled value inside <strong>, the most common markup on
	// ufficiocamerale-style pages: Fatturato: <strong>€&nbsp;5.045.628,00 </strong>(2024)
	strongLabelRe = regexp.MustCompile(`(?is)(?:Fatturato|Ricavi)[:\s]*<strong>\s*(?:€|&euro;)?\s*(?:&nbsp;)?\s*([\d.]+,\d{2})\s*</strong>`)

	// Plain labelled value: "Fatturato: € 1.234.567".
	plainLabelRe = regexp.MustCompile(`(?i)(?:fatturato|ricavi|revenue)[:\s]+€?\s*([\d]{1,3}(?:\.[\d]{3})+(?:,\d{2})?)`)

	// Generic sweep: amount within 80 chars of a revenue keyword. Requires
	// dot-separated thousands to avoid matching bare years or counts.
	sweepRe = regexp.MustCompile(`(?i)(?:fatturato|ricavi).{0,80}?([\d]{1,3}(?:\.[\d]{3})+(?:,\d{2})?)`)

	h1Re        = regexp.MustCompile(`(?is)<h1[^>]*>(.*?)</h1>`)
	titleRe     = regexp.MustCompile(`(?is)<title>(.*?)</title>`)
	yearParenRe = regexp.MustCompile(`(?i)(?:fatturato|ricavi|bilancio|esercizio)[^(]{0,60}\((\d{4})\)`)
	yearLabelRe = regexp.MustCompile(`(?i)(?:anno|esercizio|bilancio)[:\s]+(\d{4})`)
	yearProseRe = regexp.MustCompile(`(?i)nell'esercizio\s+(\d{4})`)
)

// negativeKeywords near a swept amount mean it is a balance-sheet line other
// than revenue and must be discarded.
var negativeKeywords = []string{
	"capitale sociale", "capitale soc", "cap. soc", "cap sociale",
	"patrimonio netto", "patr. netto", "patrimonio",
	"debiti", "debito",
	"attivo", "passivo",
	"immobilizzazioni", "immob",
	"crediti", "credito",
}

// stripTags removes markup and collapses whitespace.
func stripTags(html string) string {
	text := tagRe.ReplaceAllString(html, " ")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

// findCompanyName pulls the page's company name from the h1 or title.
func findCompanyName(html string) string {
	for _, re := range []*regexp.Regexp{h1Re, titleRe} {
		if m := re.FindStringSubmatch(html); m != nil {
			name := stripTags(m[1])
			// Atoka-style titles append ": profile | Atoka" after the name.
			if i := strings.IndexAny(name, ":|"); i > 5 {
				name = strings.TrimSpace(name[:i])
			}
			if len(name) > 5 {
				return name
			}
		}
	}
	return ""
}

// findYear extracts the fiscal year the figure refers to.
func findYear(html string) int {
	for _, re := range []*regexp.Regexp{yearProseRe, yearParenRe, yearLabelRe} {
		if m := re.FindStringSubmatch(html); m != nil {
			year, err := strconv.Atoi(m[1])
			if err == nil && year >= 1990 && year <= 2100 {
				return year
			}
		}
	}
	return 0
}

// extractLabelled tries the two labelled-value patterns, markup first.
func extractLabelled(html string) (string, bool) {
	if m := strongLabelRe.FindStringSubmatch(html); m != nil {
		return m[1], true
	}
	if m := plainLabelRe.FindStringSubmatch(html); m != nil {
		return m[1], true
	}
	return "", false
}

// sweepRevenue runs the generic sweep over tag-stripped text, rejecting
// matches whose surrounding context contains a negative keyword.
func sweepRevenue(text string) (value string, rejected bool) {
	loc := sweepRe.FindStringSubmatchIndex(text)
	if loc == nil {
		return "", false
	}

	value = text[loc[2]:loc[3]]
	start := loc[0] - 100
	if start < 0 {
		start = 0
	}
	end := loc[1] + 100
	if end > len(text) {
		end = len(text)
	}
	context := strings.ToLower(text[start:end])

	for _, neg := range negativeKeywords {
		if strings.Contains(context, neg) {
			return "", true
		}
	}
	return value, false
}
