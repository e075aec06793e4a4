package revenue

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/lead-qualifier/internal/model"
)

// DefaultSimilarityThreshold is the name-match acceptance threshold.
const DefaultSimilarityThreshold = 0.6

// legalSuffixes are entity-form tokens ignored during name comparison.
var legalSuffixes = map[string]struct{}{
	"srl": {}, "srls": {}, "spa": {}, "snc": {}, "sas": {}, "ss": {},
	"sapa": {}, "scarl": {}, "scrl": {}, "soc": {}, "societa": {}, "coop": {},
	"gmbh": {}, "ltd": {}, "llc": {}, "inc": {}, "sarl": {}, "sa": {}, "bv": {}, "ag": {},
}

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9]+`)

var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func stripDiacritics(s string) string {
	out, _, err := transform.String(deaccent, s)
	if err != nil {
		return s
	}
	return out
}

// normalizeName lowercases, strips diacritics and reduces everything
// non-alphanumeric to single spaces.
func normalizeName(name string) string {
	s := strings.ToLower(stripDiacritics(name))
	s = nonAlnumRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// wordSet tokenizes a normalized name, dropping legal-entity suffixes.
func wordSet(normalized string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(normalized) {
		if _, skip := legalSuffixes[w]; skip {
			continue
		}
		set[w] = struct{}{}
	}
	return set
}

// nameSimilarity is the Jaccard similarity of the two names' word sets.
func nameSimilarity(a, b string) float64 {
	setA := wordSet(normalizeName(a))
	setB := wordSet(normalizeName(b))
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

// vatInEvidence looks for the bare VAT number, the IT-prefixed form, or a
// labelled form in the evidence text.
func vatInEvidence(evidence, vat string) bool {
	vat = strings.TrimSpace(strings.TrimPrefix(strings.ToUpper(vat), "IT"))
	vat = strings.ReplaceAll(vat, " ", "")
	if vat == "" || evidence == "" {
		return false
	}

	quoted := regexp.QuoteMeta(vat)
	patterns := []string{
		`\b` + quoted + `\b`,
		`(?i)\bIT\s*` + quoted + `\b`,
		`(?i)(?:p\.?\s*iva|partita\s+iva|vat)[:\s]*` + quoted + `\b`,
	}
	for _, p := range patterns {
		if regexp.MustCompile(p).MatchString(evidence) {
			return true
		}
	}
	return false
}

// Validator checks whether a candidate's page actually describes the company
// being looked up.
type Validator struct {
	Threshold float64
}

// Validate reports whether the candidate passed an identity check, and the
// confidence it should carry. Identity-bound candidates keep their confidence
// untouched. A free-text candidate failing both the name and the tax-id check
// never keeps high confidence.
func (v *Validator) Validate(c *Candidate, targetName, targetVAT string) (bool, model.Confidence) {
	if c.IdentityBound {
		return true, c.Confidence
	}

	threshold := v.Threshold
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}

	nameOK := c.FoundName != "" && targetName != "" && nameSimilarity(targetName, c.FoundName) >= threshold
	vatOK := vatInEvidence(c.Evidence, targetVAT)
	if nameOK || vatOK {
		return true, c.Confidence
	}

	conf := c.Confidence
	if conf == model.ConfidenceHigh {
		conf = model.ConfidenceLow
	}
	return false, conf
}
