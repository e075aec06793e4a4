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

const registroBaseURL = "https://www.registroaziende.it"

var (
	hyphenRe      = regexp.MustCompile(`[^a-z0-9\s-]`)
	spacesRe      = regexp.MustCompile(`\s+`)
	legalFormRe   = regexp.MustCompile(`(?i)\b(srl|s\.?r\.?l\.?|spa|s\.?p\.?a\.?|snc|sas)\b`)
	genericRAPage = []string{"/ricerca", "/piattaforma", "/b2b"}
)

// hyphenSlug builds a URL slug: lowercase ASCII, spaces to single hyphens.
func hyphenSlug(name string) string {
	slug := strings.ToLower(stripDiacritics(name))
	slug = hyphenRe.ReplaceAllString(slug, "")
	slug = spacesRe.ReplaceAllString(strings.TrimSpace(slug), "-")
	return strings.Trim(slug, "-")
}

// stripLegalForm removes the entity-form suffix from a company name, for the
// slug variants these sites sometimes use.
func stripLegalForm(name string) string {
	return strings.TrimSpace(legalFormRe.ReplaceAllString(name, ""))
}

// RegistroAziende resolves revenue from registroaziende.it, trying direct URL
// patterns first and falling back to a site-restricted search.
type RegistroAziende struct {
	fetcher fetcher.Fetcher
	search  tavily.Client
	baseURL string
	site    string
	log     *zap.Logger
}

// RegistroOption configures the tier.
type RegistroOption func(*RegistroAziende)

// WithRegistroBaseURL overrides the site base URL.
func WithRegistroBaseURL(u string) RegistroOption {
	return func(s *RegistroAziende) {
		s.baseURL = strings.TrimRight(u, "/")
		s.site = siteHost(u)
	}
}

// NewRegistroAziende creates the registroaziende.it tier.
func NewRegistroAziende(f fetcher.Fetcher, search tavily.Client, opts ...RegistroOption) *RegistroAziende {
	s := &RegistroAziende{
		fetcher: f,
		search:  search,
		baseURL: registroBaseURL,
		site:    siteHost(registroBaseURL),
		log:     zap.L().With(zap.String("component", "revenue.registroaziende")),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *RegistroAziende) Name() string { return "registroaziende.it" }

func (s *RegistroAziende) Lookup(ctx context.Context, q Query) (*Candidate, error) {
	page, identityBound, err := s.findProfile(ctx, q)
	if err != nil {
		return nil, err
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
		Value:         value,
		FiscalYear:    findYear(html),
		Confidence:    model.ConfidenceHigh,
		Evidence:      stripTags(html),
		FoundName:     findCompanyName(html),
		IdentityBound: identityBound,
	}, nil
}

// findProfile tries the direct URL patterns, then the search fallback. A
// direct hit that echoes the VAT number is identity-bound.
func (s *RegistroAziende) findProfile(ctx context.Context, q Query) (*fetcher.Page, bool, error) {
	if q.VATNumber != "" {
		slug := hyphenSlug(q.Name)
		baseSlug := hyphenSlug(stripLegalForm(q.Name))
		patterns := []string{
			fmt.Sprintf("%s/%s-%s", s.baseURL, slug, q.VATNumber),
			fmt.Sprintf("%s/azienda/%s-%s", s.baseURL, slug, q.VATNumber),
			fmt.Sprintf("%s/%s/%s", s.baseURL, q.VATNumber, slug),
			fmt.Sprintf("%s/%s-%s", s.baseURL, baseSlug, q.VATNumber),
			fmt.Sprintf("%s/%s", s.baseURL, q.VATNumber),
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

	// Search fallback.
	query := fmt.Sprintf("%s fatturato site:%s", q.Name, s.site)
	if q.VATNumber != "" {
		query = fmt.Sprintf("%s %s site:%s", q.Name, q.VATNumber, s.site)
	}
	resp, err := s.search.Search(ctx, tavily.SearchRequest{Query: query, MaxResults: 5})
	if err != nil {
		return nil, false, err
	}

	var profileURL string
	for _, r := range resp.Results {
		if !strings.Contains(r.URL, s.site) {
			continue
		}
		generic := false
		for _, skip := range genericRAPage {
			if strings.Contains(r.URL, skip) {
				generic = true
				break
			}
		}
		if !generic {
			profileURL = r.URL
			break
		}
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
