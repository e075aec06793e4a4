package revenue

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/lead-qualifier/internal/fetcher"
	"github.com/sells-group/lead-qualifier/internal/model"
	"github.com/sells-group/lead-qualifier/pkg/ollama"
)

const fatturatoBaseURL = "https://www.fatturatoitalia.it"

var (
	// Pass A: meta description, "fatturato 3.815.456 €, utile 78.167 € (2024)".
	metaFullRe = regexp.MustCompile(`(?i)content="[^"]*fatturato\s+([\d.,]+)\s*€?,\s*(?:utile|perdita)\s+[-\d.,]+\s*€?\s*\((\d{4})\)`)
	// Pass A variant without a profit figure: "fatturato 21.323.834.620 ... 2024".
	metaShortRe = regexp.MustCompile(`(?i)content="[^"]*fatturato\s+([\d]{1,3}(?:\.[\d]{3})+(?:,\d{2})?)[^"]*?(\d{4})`)
	// Pass B: body text, "sono pari a <b> 459.326  €</b>".
	bodyBoldRe = regexp.MustCompile(`(?i)(?:sono pari a|fatturato di)\s*<b>\s*([\d.,]+)\s*€`)

	underscoreRe = regexp.MustCompile(`[^a-z0-9]+`)
)

// FatturatoItalia resolves revenue from fatturatoitalia.it detail pages. The
// page URL is derived from the company name and VAT number, so every hit is
// identity-bound.
type FatturatoItalia struct {
	fetcher fetcher.Fetcher
	llm     ollama.Client
	llModel string
	baseURL string
	log     *zap.Logger
}

// FatturatoOption configures the tier.
type FatturatoOption func(*FatturatoItalia)

// WithFatturatoBaseURL overrides the site base URL.
func WithFatturatoBaseURL(u string) FatturatoOption {
	return func(s *FatturatoItalia) {
		s.baseURL = strings.TrimRight(u, "/")
	}
}

// WithFatturatoLLM enables the last-resort local-model extraction pass.
func WithFatturatoLLM(client ollama.Client, llModel string) FatturatoOption {
	return func(s *FatturatoItalia) {
		s.llm = client
		s.llModel = llModel
	}
}

// NewFatturatoItalia creates the fatturatoitalia.it tier.
func NewFatturatoItalia(f fetcher.Fetcher, opts ...FatturatoOption) *FatturatoItalia {
	s := &FatturatoItalia{
		fetcher: f,
		baseURL: fatturatoBaseURL,
		log:     zap.L().With(zap.String("component", "revenue.fatturatoitalia")),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *FatturatoItalia) Name() string { return "fatturatoitalia.it" }

// underscoreSlug builds the site's detail-page slug: lowercase, ASCII,
// non-alphanumeric runs collapsed to underscores.
func underscoreSlug(name string) string {
	slug := strings.ToLower(stripDiacritics(name))
	slug = strings.NewReplacer(".", "", ",", "").Replace(slug)
	slug = underscoreRe.ReplaceAllString(slug, "_")
	return strings.Trim(slug, "_")
}

func (s *FatturatoItalia) Lookup(ctx context.Context, q Query) (*Candidate, error) {
	if q.VATNumber == "" || q.Name == "" {
		return nil, ErrNotFound
	}

	detailURL := fmt.Sprintf("%s/%s-%s", s.baseURL, underscoreSlug(q.Name), q.VATNumber)
	s.log.Debug("fetching detail page", zap.String("url", detailURL))

	page, err := s.fetcher.Get(ctx, detailURL)
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

	// A redirect back to the homepage means the company has no profile.
	finalURL := strings.TrimRight(page.URL, "/")
	if finalURL == s.baseURL || finalURL == strings.Replace(s.baseURL, "www.", "", 1) {
		return nil, ErrNotFound
	}

	cand := &Candidate{
		IdentityBound: true,
		Evidence:      stripTags(html),
		FoundName:     findCompanyName(html),
	}

	// Pass A: meta description.
	if m := metaFullRe.FindStringSubmatch(html); m != nil {
		if value, ok := ParseAmount(m[1]); ok {
			cand.Value = value
			cand.Confidence = model.ConfidenceHigh
			cand.FiscalYear, _ = strconv.Atoi(m[2])
		}
	}
	if cand.Value == nil {
		if m := metaShortRe.FindStringSubmatch(html); m != nil {
			if value, ok := ParseAmount(m[1]); ok {
				cand.Value = value
				cand.Confidence = model.ConfidenceHigh
				cand.FiscalYear, _ = strconv.Atoi(m[2])
			}
		}
	}

	// Pass B: labelled bold body text.
	if cand.Value == nil {
		if m := bodyBoldRe.FindStringSubmatch(html); m != nil {
			if value, ok := ParseAmount(m[1]); ok {
				cand.Value = value
				cand.Confidence = model.ConfidenceHigh
			}
		}
	}

	// Pass C: generic sweep with negative-keyword rejection.
	if cand.Value == nil {
		raw, rejected := sweepRevenue(cand.Evidence)
		if rejected {
			s.log.Debug("sweep value rejected by negative keywords")
		} else if raw != "" {
			if value, ok := ParseAmount(raw); ok {
				cand.Value = value
				cand.Confidence = model.ConfidenceLow
			}
		}
	}

	// Pass D: local-model extraction, last resort.
	if cand.Value == nil && s.llm != nil {
		value, year := s.llmExtract(ctx, cand.Evidence, q)
		if value != nil {
			cand.Value = value
			cand.Confidence = model.ConfidenceLow
			if cand.FiscalYear == 0 {
				cand.FiscalYear = year
			}
		}
	}

	if cand.Value == nil {
		return nil, ErrNotFound
	}

	if cand.FiscalYear == 0 {
		cand.FiscalYear = findYear(html)
	}
	return cand, nil
}

type llmExtraction struct {
	Revenue    string `json:"revenue"`
	FiscalYear string `json:"fiscal_year"`
}

func (s *FatturatoItalia) llmExtract(ctx context.Context, pageText string, q Query) (*model.Money, int) {
	const maxText = 3000
	if len(pageText) > maxText {
		pageText = pageText[:maxText]
	}

	prompt := fmt.Sprintf(`The following text comes from the financial-report page of the Italian company %s (VAT %s). Extract ONLY the annual revenue.

PAGE TEXT:
%s

Answer ONLY with this JSON (no other text):
{"revenue": "<amount in euros, e.g. '459.326' or '3.815.456' or 'N/D'>", "fiscal_year": "<year, e.g. '2024' or 'N/D'>"}`, q.Name, q.VATNumber, pageText)

	resp, err := s.llm.Chat(ctx, ollama.ChatRequest{
		Model: s.llModel,
		Messages: []ollama.Message{
			{Role: "system", Content: "Extract financial data. Answer with valid JSON."},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		s.log.Warn("local model extraction failed", zap.Error(err))
		return nil, 0
	}

	var out llmExtraction
	if err := json.Unmarshal([]byte(resp.Text()), &out); err != nil {
		s.log.Warn("local model returned malformed JSON", zap.Error(err))
		return nil, 0
	}
	if out.Revenue == "" || out.Revenue == "N/D" {
		return nil, 0
	}

	value, ok := ParseAmount(out.Revenue)
	if !ok {
		return nil, 0
	}
	year, _ := strconv.Atoi(out.FiscalYear)
	return value, year
}
