package payment

import (
	"regexp"
)

// keyword binds a lowercase page marker to a display name. Matching is
// word-bounded: "oney" must not match inside "money".
type keyword struct {
	marker string
	name   string
	re     *regexp.Regexp
}

func newKeyword(marker, name string) keyword {
	return keyword{
		marker: marker,
		name:   name,
		re:     regexp.MustCompile(`(^|[^a-z])` + regexp.QuoteMeta(marker) + `($|[^a-z])`),
	}
}

// competitorKeywords are the BNPL providers whose presence disqualifies or
// flags a deal. "alma" is deliberately absent: the token is too generic
// (product names, Italian words) to detect reliably.
var competitorKeywords = []keyword{
	newKeyword("klarna", "Klarna"),
	newKeyword("clearpay", "Clearpay"),
	newKeyword("afterpay", "Afterpay"),
	newKeyword("scalapay", "Scalapay"),
	newKeyword("oney", "Oney"),
	newKeyword("pagolight", "PagoLight"),
	newKeyword("cofidis", "Cofidis"),
	newKeyword("soisy", "Soisy"),
	newKeyword("heylight", "Heylight"),
	newKeyword("pay in 3", "PayPal Pay in 3"),
	newKeyword("pay in 4", "Pay in 4"),
	newKeyword("paga in 3", "Pay in 3"),
	newKeyword("paga in 4", "Pay in 4"),
}

// processorKeywords are general payment processors, recorded for the scoring
// gates but not disqualifying.
var processorKeywords = []keyword{
	newKeyword("stripe", "Stripe"),
	newKeyword("paypal", "PayPal"),
	newKeyword("nexi", "Nexi"),
	newKeyword("adyen", "Adyen"),
	newKeyword("square", "Square"),
	newKeyword("satispay", "Satispay"),
	newKeyword("apple pay", "Apple Pay"),
	newKeyword("google pay", "Google Pay"),
}

// matchKeywords returns the display names of keywords present in the
// lowercased html, in list order.
func matchKeywords(htmlLower string, keywords []keyword) []string {
	var found []string
	for _, kw := range keywords {
		if kw.re.MatchString(htmlLower) {
			found = append(found, kw.name)
		}
	}
	return found
}

// appendNew merges names into dst, skipping duplicates.
func appendNew(dst []string, names []string) []string {
	for _, n := range names {
		seen := false
		for _, existing := range dst {
			if existing == n {
				seen = true
				break
			}
		}
		if !seen {
			dst = append(dst, n)
		}
	}
	return dst
}
