package payment

import (
	"net/url"
	"regexp"
	"strings"
)

var hrefRe = regexp.MustCompile(`(?i)href=["']([^"'#]+)["']`)

// productPathRe matches URL paths that look like product detail pages on
// common storefront platforms.
var productPathRe = regexp.MustCompile(`(?i)/(products?|shop|p|item|prodotto|prodotti)/[^/]+`)

// skipPaths are link prefixes that never lead to a product page.
var skipPaths = []string{
	"/login", "/signin", "/account", "/register",
	"/cart", "/carrello", "/checkout", "/basket",
	"/privacy", "/terms", "/cookie", "/legal",
	"/contact", "/contatti", "/about", "/chi-siamo",
	"/blog", "/news", "/faq", "/search", "/wishlist",
}

// findProductURL picks one product-page candidate from the homepage links.
// It returns an empty string when the homepage offers no plausible product
// link, in which case the probe goes straight to the cart paths.
func findProductURL(base, homeHTML string) string {
	if homeHTML == "" {
		return ""
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}

	var fallback string
	for _, m := range hrefRe.FindAllStringSubmatch(homeHTML, 200) {
		ref, err := url.Parse(strings.TrimSpace(m[1]))
		if err != nil {
			continue
		}
		abs := baseURL.ResolveReference(ref)
		if abs.Host != baseURL.Host {
			continue
		}
		path := strings.ToLower(abs.Path)
		if skippable(path) {
			continue
		}
		abs.Fragment = ""
		if productPathRe.MatchString(path) {
			return abs.String()
		}
		// A deep path is a weak product-page signal. Keep the first one in
		// case no explicit product pattern turns up.
		if fallback == "" && strings.Count(strings.Trim(path, "/"), "/") >= 2 {
			fallback = abs.String()
		}
	}
	return fallback
}

func skippable(path string) bool {
	for _, p := range skipPaths {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
