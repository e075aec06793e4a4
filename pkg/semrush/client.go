// Package semrush is a client for the SEMrush analytics API. The API returns
// semicolon-separated tabular exports rather than JSON.
package semrush

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.semrush.com"

// ErrNothingFound is returned when a domain has no data in the requested
// regional database.
var ErrNothingFound = eris.New("semrush: nothing found")

// Client retrieves domain traffic statistics.
type Client interface {
	// DomainRank returns the traffic overview for a domain in a regional
	// database ("it", "us", "uk", ...).
	DomainRank(ctx context.Context, domain, database string) (*DomainRank, error)
	// DomainOrganic returns the top organic keywords for a domain.
	DomainOrganic(ctx context.Context, domain, database string, limit int) ([]Keyword, error)
}

// DomainRank is the domain_ranks overview row.
type DomainRank struct {
	Domain         string
	Rank           int64
	OrganicTraffic int64
	OrganicCost    int64
	AdwordsTraffic int64
	AdwordsCost    int64
	Database       string
}

// TotalTraffic is organic plus paid monthly visits.
func (d *DomainRank) TotalTraffic() int64 {
	return d.OrganicTraffic + d.AdwordsTraffic
}

// Keyword is one domain_organic row.
type Keyword struct {
	Phrase       string
	Position     int
	SearchVolume int64
	TrafficShare float64
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a SEMrush client with an API key.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) DomainRank(ctx context.Context, domain, database string) (*DomainRank, error) {
	q := url.Values{}
	q.Set("type", "domain_rank")
	q.Set("key", c.apiKey)
	q.Set("export_columns", "Dn,Rk,Or,Ot,Oc,Ad,At,Ac")
	q.Set("domain", domain)
	q.Set("database", database)

	rows, err := c.export(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNothingFound
	}

	row := rows[0]
	return &DomainRank{
		Domain:         row["Domain"],
		Rank:           parseInt(row["Rank"]),
		OrganicTraffic: parseInt(row["Organic Traffic"]),
		OrganicCost:    parseInt(row["Organic Cost"]),
		AdwordsTraffic: parseInt(row["Adwords Traffic"]),
		AdwordsCost:    parseInt(row["Adwords Cost"]),
		Database:       database,
	}, nil
}

func (c *httpClient) DomainOrganic(ctx context.Context, domain, database string, limit int) ([]Keyword, error) {
	if limit <= 0 {
		limit = 5
	}

	q := url.Values{}
	q.Set("type", "domain_organic")
	q.Set("key", c.apiKey)
	q.Set("export_columns", "Ph,Po,Nq,Tr")
	q.Set("display_limit", strconv.Itoa(limit))
	q.Set("domain", domain)
	q.Set("database", database)

	rows, err := c.export(ctx, q)
	if err != nil {
		return nil, err
	}

	keywords := make([]Keyword, 0, len(rows))
	for _, row := range rows {
		pos, _ := strconv.Atoi(row["Position"])
		share, _ := strconv.ParseFloat(row["Traffic (%)"], 64)
		keywords = append(keywords, Keyword{
			Phrase:       row["Keyword"],
			Position:     pos,
			SearchVolume: parseInt(row["Search Volume"]),
			TrafficShare: share,
		})
	}
	return keywords, nil
}

// export runs one API call and parses the semicolon-separated response into
// header-keyed rows. An "ERROR 50 :: NOTHING FOUND" body maps to
// ErrNothingFound; other ERROR bodies surface verbatim.
func (c *httpClient) export(ctx context.Context, q url.Values) ([]map[string]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "semrush: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "semrush: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "semrush: read response")
	}

	text := strings.TrimSpace(string(body))
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("semrush: unexpected status %d: %s", resp.StatusCode, text)
	}
	if strings.HasPrefix(text, "ERROR") {
		if strings.Contains(text, "NOTHING FOUND") {
			return nil, ErrNothingFound
		}
		return nil, eris.Errorf("semrush: api error: %s", text)
	}

	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return nil, nil
	}

	headers := strings.Split(strings.TrimSpace(lines[0]), ";")
	rows := make([]map[string]string, 0, len(lines)-1)
	for _, line := range lines[1:] {
		values := strings.Split(strings.TrimSpace(line), ";")
		if len(values) != len(headers) {
			continue
		}
		row := make(map[string]string, len(headers))
		for i, h := range headers {
			row[h] = values[i]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseInt(s string) int64 {
	n, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n
}
