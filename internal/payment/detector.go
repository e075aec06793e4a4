// Package payment probes a company's storefront for BNPL competitors and
// payment processors. The probe descends three stages, homepage, a product
// page discovered from the homepage, and the cart/checkout paths, because
// payment options surface at different depths on different platforms.
package payment

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/lead-qualifier/internal/fetcher"
	"github.com/sells-group/lead-qualifier/internal/model"
)

// cartPaths are the well-known cart and checkout URLs tried in stage three,
// Italian storefront variants included.
var cartPaths = []string{
	"/cart",
	"/carrello",
	"/basket",
	"/shopping-cart",
	"/checkout",
	"/cassa",
	"/payment",
	"/order",
}

// Detector runs the storefront payment probe.
type Detector struct {
	fetcher fetcher.Fetcher
	log     *zap.Logger
}

// NewDetector builds a Detector on the shared fetcher.
func NewDetector(f fetcher.Fetcher) *Detector {
	return &Detector{
		fetcher: f,
		log:     zap.L().With(zap.String("component", "payment")),
	}
}

// probe accumulates state across the three stages.
type probe struct {
	result    *model.PaymentDetectionResult
	fetched   map[string]bool
	locations int
}

// Detect probes the given domain. It never returns an error: a site that
// cannot be reached or blocks the probe yields a low-score result with the
// block recorded.
func (d *Detector) Detect(ctx context.Context, domain string) *model.PaymentDetectionResult {
	base := normalizeBase(domain)
	p := &probe{
		result:  &model.PaymentDetectionResult{},
		fetched: make(map[string]bool),
	}

	// Stage 1: homepage.
	homeHTML, homeOK := d.scanPage(ctx, p, base)
	if homeOK {
		p.result.StagesRun++
	}
	if p.result.HasCompetitor() {
		p.result.Stage = model.StageHomepage
		d.finish(p)
		return p.result
	}

	// Stage 2: one product page discovered from the homepage.
	if productURL := findProductURL(base, homeHTML); productURL != "" {
		if _, ok := d.scanPage(ctx, p, productURL); ok {
			p.result.StagesRun++
		}
		if p.result.HasCompetitor() {
			p.result.Stage = model.StageProduct
			d.finish(p)
			return p.result
		}
	}

	// Stage 3: cart and checkout paths. All paths are scanned so that a
	// competitor confirmed in more than one location scores higher.
	checkoutScanned := false
	for _, path := range cartPaths {
		if _, ok := d.scanPage(ctx, p, base+path); ok {
			checkoutScanned = true
		}
	}
	if checkoutScanned {
		p.result.StagesRun++
	}
	if p.result.HasCompetitor() {
		p.result.Stage = model.StageCheckout
	}

	d.finish(p)
	return p.result
}

// scanPage fetches one URL, runs block detection, and collects keyword
// matches. It returns the page body and whether the page was actually
// scanned. Already-visited URLs (including redirect targets) are skipped.
func (d *Detector) scanPage(ctx context.Context, p *probe, rawURL string) (string, bool) {
	if p.fetched[rawURL] {
		return "", false
	}
	p.fetched[rawURL] = true

	page, err := d.fetcher.Get(ctx, rawURL)
	if err != nil {
		d.log.Debug("fetch failed", zap.String("url", rawURL), zap.Error(err))
		return "", false
	}
	if page.URL != "" {
		if p.fetched[page.URL] && page.URL != rawURL {
			return "", false
		}
		p.fetched[page.URL] = true
	}

	if blocked, kind := fetcher.DetectBlock(page); blocked {
		p.result.Blocked = true
		if p.result.BlockKind == "" {
			p.result.BlockKind = string(kind)
		}
		d.log.Debug("page blocked", zap.String("url", rawURL), zap.String("kind", string(kind)))
		return "", false
	}
	if !page.OK() {
		return "", false
	}

	html := string(page.Body)
	lower := strings.ToLower(html)
	competitors := matchKeywords(lower, competitorKeywords)
	if len(competitors) > 0 {
		p.locations++
	}
	p.result.Competitors = appendNew(p.result.Competitors, competitors)
	p.result.Processors = appendNew(p.result.Processors, matchKeywords(lower, processorKeywords))
	return html, true
}

// finish assigns the confidence score and label. The score expresses how
// much to trust the detection, not deal quality: a competitor seen only in
// homepage copy is weaker evidence than one on the checkout page, and a
// clean result after all three stages is a stronger negative than a clean
// result from a single page.
func (d *Detector) finish(p *probe) {
	r := p.result
	switch {
	case r.HasCompetitor():
		switch r.Stage {
		case model.StageCheckout:
			if p.locations > 1 {
				r.Score = 90
			} else {
				r.Score = 80
			}
		case model.StageProduct:
			r.Score = 65
		default:
			r.Score = 40
		}
	case r.Blocked:
		r.Score = 20
	case r.StagesRun >= 3:
		r.Score = 85
	case r.StagesRun == 2:
		r.Score = 55
	default:
		r.Score = 30
	}

	switch {
	case r.Score >= 75:
		r.Label = "high"
	case r.Score >= 50:
		r.Label = "medium"
	default:
		r.Label = "low"
	}

	d.log.Info("payment probe finished",
		zap.Strings("competitors", r.Competitors),
		zap.Strings("processors", r.Processors),
		zap.Int("score", r.Score),
		zap.String("label", r.Label),
	)
}

// normalizeBase turns a bare domain or URL into a scheme-qualified base URL
// with no trailing slash.
func normalizeBase(domain string) string {
	s := strings.TrimSpace(domain)
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	return strings.TrimRight(s, "/")
}
