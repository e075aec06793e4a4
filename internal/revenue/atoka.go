package revenue

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/lead-qualifier/internal/fetcher"
	"github.com/sells-group/lead-qualifier/internal/model"
	"github.com/sells-group/lead-qualifier/pkg/tavily"
)

const atokaBaseURL = "https://atoka.io"

// Atoka embeds revenue in JSON-LD FAQ text with K/M/B suffixes:
// "I ricavi generati da X sono stati di 23.0 K €".
var atokaRevenueRe = regexp.MustCompile(`(?i)(?:ricavi[^"]*?sono stati di|fatturato[^"]*?ammonta a)\s+([\d.,]+)\s*([KMBkmb])?\s*€`)

// Atoka resolves revenue from atoka.io company pages.
type Atoka struct {
	fetcher fetcher.Fetcher
	search  tavily.Client
	baseURL string
	site    string
	log     *zap.Logger
}

// AtokaOption configures the tier.
type AtokaOption func(*Atoka)

// WithAtokaBaseURL overrides the site base URL.
func WithAtokaBaseURL(u string) AtokaOption {
	return func(s *Atoka) {
		s.baseURL = strings.TrimRight(u, "/")
		s.site = siteHost(u)
	}
}

// NewAtoka creates the atoka.io tier.
func NewAtoka(f fetcher.Fetcher, search tavily.Client, opts ...AtokaOption) *Atoka {
	s := &Atoka{
		fetcher: f,
		search:  search,
		baseURL: atokaBaseURL,
		site:    siteHost(atokaBaseURL),
		log:     zap.L().With(zap.String("component", "revenue.atoka")),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Atoka) Name() string { return "atoka.io" }

func (s *Atoka) Lookup(ctx context.Context, q Query) (*Candidate, error) {
	page, identityBound, err := s.findProfile(ctx, q)
	if err != nil {
		return nil, err
	}

	html := string(page.Body)
	m := atokaRevenueRe.FindStringSubmatch(html)
	if m == nil {
		return nil, ErrNotFound
	}

	raw := m[1]
	if m[2] != "" {
		raw = raw + " " + m[2]
	}
	value, ok := ParseAmount(raw)
	if !ok {
		return nil, ErrNotFound
	}

	return &Candidate{
		Value:         value,
		FiscalYear:    findYear(html),
		Confidence:    model.ConfidenceHigh,
		Evidence:      stripTags(html),
		FoundName:     findCompanyName(html),
		IdentityBound: identityBound,
	}, nil
}

func (s *Atoka) findProfile(ctx context.Context, q Query) (*fetcher.Page, bool, error) {
	if q.VATNumber != "" {
		patterns := []string{
			fmt.Sprintf("%s/public/it/azienda/%s-%s", s.baseURL, hyphenSlug(q.Name), q.VATNumber),
			fmt.Sprintf("%s/public/it/azienda/%s-%s", s.baseURL, hyphenSlug(stripLegalForm(q.Name)), q.VATNumber),
		}
		for _, candidate := range patterns {
			page, err := s.fetcher.Get(ctx, candidate)
			if err != nil {
				continue
			}
			if blocked, kind := fetcher.DetectBlock(page); blocked {
				return nil, false, &BlockedError{Kind: kind}
			}
			if !page.OK() || len(page.Body) < 5000 {
				continue
			}
			body := strings.ToLower(string(page.Body))
			if strings.Contains(body, q.VATNumber) || strings.Contains(body, strings.ToLower(q.Name)) {
				s.log.Debug("direct profile hit", zap.String("url", candidate))
				return page, true, nil
			}
		}
	}

	query := fmt.Sprintf("%s fatturato site:%s", q.Name, s.site)
	if q.VATNumber != "" {
		query = fmt.Sprintf("%s %s fatturato site:%s", q.Name, q.VATNumber, s.site)
	}
	resp, err := s.search.Search(ctx, tavily.SearchRequest{Query: query, MaxResults: 5})
	if err != nil {
		return nil, false, err
	}

	var profileURL string
	for _, r := range resp.Results {
		if !strings.Contains(r.URL, s.site) || !strings.Contains(r.URL, "/azienda/") {
			continue
		}
		// With a VAT number in hand, only trust URLs that carry it.
		if q.VATNumber != "" && !strings.Contains(r.URL, q.VATNumber) {
			continue
		}
		profileURL = r.URL
		break
	}
	if profileURL == "" {
		return nil, false, ErrNotFound
	}

	page, err := s.fetcher.Get(ctx, profileURL)
	if err != nil {
		return nil, false, err
	}
	if blocked, kind := fetcher.DetectBlock(page); blocked {
		return nil, false, &BlockedError{Kind: kind}
	}
	if !page.OK() {
		return nil, false, ErrNotFound
	}
	return page, false, nil
}
