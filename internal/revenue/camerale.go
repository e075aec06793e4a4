package revenue

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/lead-qualifier/internal/fetcher"
	"github.com/sells-group/lead-qualifier/internal/model"
	"github.com/sells-group/lead-qualifier/pkg/tavily"
)

const cameraleBaseURL = "https://www.ufficiocamerale.it"

// profile pages live under a numeric id: /5071440/acme-srl
var cameraleProfileRe = regexp.MustCompile(`/\d+/`)

// siteHost extracts the bare host from a base URL, without the www prefix.
// Used both for site-restricted search queries and for filtering results.
func siteHost(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return strings.TrimPrefix(baseURL, "www.")
	}
	return strings.TrimPrefix(u.Host, "www.")
}

// UfficioCamerale resolves revenue from ufficiocamerale.it. Profile pages are
// found through a site-restricted web search, so candidates are not
// identity-bound and go through validation.
type UfficioCamerale struct {
	fetcher fetcher.Fetcher
	search  tavily.Client
	site    string
	log     *zap.Logger
}

// CameraleOption configures the tier.
type CameraleOption func(*UfficioCamerale)

// WithCameraleBaseURL overrides the site base URL.
func WithCameraleBaseURL(u string) CameraleOption {
	return func(s *UfficioCamerale) {
		s.site = siteHost(u)
	}
}

// NewUfficioCamerale creates the ufficiocamerale.it tier.
func NewUfficioCamerale(f fetcher.Fetcher, search tavily.Client, opts ...CameraleOption) *UfficioCamerale {
	s := &UfficioCamerale{
		fetcher: f,
		search:  search,
		site:    siteHost(cameraleBaseURL),
		log:     zap.L().With(zap.String("component", "revenue.ufficiocamerale")),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *UfficioCamerale) Name() string { return "ufficiocamerale.it" }

func (s *UfficioCamerale) Lookup(ctx context.Context, q Query) (*Candidate, error) {
	query := fmt.Sprintf("%s fatturato site:%s", q.Name, s.site)
	if q.VATNumber != "" {
		query = fmt.Sprintf("%s %s site:%s", q.Name, q.VATNumber, s.site)
	}

	resp, err := s.search.Search(ctx, tavily.SearchRequest{Query: query, MaxResults: 3})
	if err != nil {
		return nil, err
	}

	var profileURL string
	for _, r := range resp.Results {
		if strings.Contains(r.URL, s.site) && cameraleProfileRe.MatchString(r.URL) {
			profileURL = r.URL
			break
		}
	}
	if profileURL == "" {
		return nil, ErrNotFound
	}
	s.log.Debug("found profile page", zap.String("url", profileURL))

	page, err := s.fetcher.Get(ctx, profileURL)
	if err != nil {
		return nil, err
	}
	if blocked, kind := fetcher.DetectBlock(page); blocked {
		return nil, &BlockedError{Kind: kind}
	}
	if !page.OK() {
		return nil, ErrNotFound
	}

	html := string(page.Body)
	raw, ok := extractLabelled(html)
	if !ok {
		return nil, ErrNotFound
	}
	value, ok := ParseAmount(raw)
	if !ok {
		return nil, ErrNotFound
	}

	return &Candidate{
		Value:      value,
		FiscalYear: findYear(html),
		Confidence: model.ConfidenceHigh,
		Evidence:   stripTags(html),
		FoundName:  findCompanyName(html),
	}, nil
}
