package enrich

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/lead-qualifier/internal/fetcher"
	"github.com/sells-group/lead-qualifier/internal/model"
)

// techSignature maps page markers to a technology name. Markers are script
// URLs and platform tokens, matched as substrings of the lowercased homepage.
type techSignature struct {
	name    string
	markers []string
}

var storefrontSignatures = []techSignature{
	{"Shopify", []string{"cdn.shopify.com", "shopify.theme", "x-shopify"}},
	{"WooCommerce", []string{"woocommerce", "wp-content/plugins/woo"}},
	{"Magento", []string{"magento", "mage/cookies"}},
	{"PrestaShop", []string{"prestashop", "/modules/ps_"}},
	{"Salesforce Commerce", []string{"demandware", "salesforce commerce"}},
}

var analyticsSignatures = []techSignature{
	{"Google Analytics", []string{"googletagmanager.com", "google-analytics.com", "gtag("}},
	{"Meta Pixel", []string{"connect.facebook.net", "fbq("}},
	{"Hotjar", []string{"static.hotjar.com", "hotjar"}},
	{"Matomo", []string{"matomo.js", "piwik.js"}},
}

var paymentSDKSignatures = []techSignature{
	{"Stripe", []string{"js.stripe.com"}},
	{"PayPal", []string{"paypal.com/sdk", "paypalobjects.com"}},
	{"Nexi", []string{"xpay.nexigroup.com", "ecommerce.nexi.it"}},
	{"Adyen", []string{"checkoutshopper-live.adyen.com", "adyen.com/checkout"}},
	{"Satispay", []string{"staging.satispay.com", "online.satispay.com"}},
	{"Braintree", []string{"js.braintreegateway.com"}},
}

// TechScanner detects storefront technology from the homepage source.
type TechScanner struct {
	fetcher fetcher.Fetcher
	log     *zap.Logger
}

// NewTechScanner builds a TechScanner on the shared fetcher.
func NewTechScanner(f fetcher.Fetcher) *TechScanner {
	return &TechScanner{
		fetcher: f,
		log:     zap.L().With(zap.String("component", "enrich.tech")),
	}
}

// Scan fetches the homepage and matches it against the signature groups.
func (s *TechScanner) Scan(ctx context.Context, domain string) (*model.TechStackResult, error) {
	base := domain
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}

	page, err := s.fetcher.Get(ctx, base)
	if err != nil {
		return nil, err
	}
	if blocked, kind := fetcher.DetectBlock(page); blocked {
		return nil, &BlockedError{Kind: kind}
	}
	if !page.OK() {
		return &model.TechStackResult{}, nil
	}

	lower := strings.ToLower(string(page.Body))
	res := &model.TechStackResult{
		Storefront: matchSignatures(lower, storefrontSignatures),
		Analytics:  matchSignatures(lower, analyticsSignatures),
		Payments:   matchSignatures(lower, paymentSDKSignatures),
	}
	s.log.Debug("tech scan finished",
		zap.String("domain", domain),
		zap.Strings("storefront", res.Storefront),
	)
	return res, nil
}

func matchSignatures(htmlLower string, sigs []techSignature) []string {
	var found []string
	for _, sig := range sigs {
		for _, m := range sig.markers {
			if strings.Contains(htmlLower, m) {
				found = append(found, sig.name)
				break
			}
		}
	}
	return found
}
