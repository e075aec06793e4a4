// Package similarweb is a client for the SimilarWeb v1 website API, used for
// visit volumes and engagement metrics.
package similarweb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.similarweb.com"

// Client retrieves website traffic data.
type Client interface {
	// Visits returns monthly visit counts for a domain over a date range.
	// country filters to a two-letter code; empty means worldwide.
	Visits(ctx context.Context, domain, country string, start, end time.Time) ([]MonthlyVisits, error)
	// GeneralData returns the overview snapshot for a domain.
	GeneralData(ctx context.Context, domain string) (*GeneralData, error)
}

// MonthlyVisits is one month's visit count.
type MonthlyVisits struct {
	Date   string  `json:"date"`
	Visits float64 `json:"visits"`
}

// GeneralData is the general-data/all overview.
type GeneralData struct {
	SiteName    string      `json:"site_name"`
	Category    string      `json:"category"`
	Engagements Engagements `json:"engagments"` // upstream field name is misspelled
}

// Engagements holds site engagement metrics.
type Engagements struct {
	Visits        float64 `json:"visits"`
	TimeOnSite    float64 `json:"time_on_site"`
	PagesPerVisit float64 `json:"pages_per_visit"`
	BounceRate    float64 `json:"bounce_rate"`
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

// NewClient creates a SimilarWeb client with an API key.
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

type visitsResponse struct {
	Visits []MonthlyVisits `json:"visits"`
}

func (c *httpClient) Visits(ctx context.Context, domain, country string, start, end time.Time) ([]MonthlyVisits, error) {
	q := url.Values{}
	q.Set("api_key", c.apiKey)
	q.Set("granularity", "monthly")
	q.Set("main_domain_only", "false")
	q.Set("format", "json")
	q.Set("mtd", "false")
	q.Set("start_date", start.Format("2006-01-02"))
	q.Set("end_date", end.Format("2006-01-02"))
	if country != "" {
		q.Set("country", country)
	}

	endpoint := fmt.Sprintf("%s/v1/website/%s/total-traffic-and-engagement/visits?%s", c.baseURL, url.PathEscape(domain), q.Encode())

	var result visitsResponse
	if err := c.get(ctx, endpoint, &result); err != nil {
		return nil, err
	}
	return result.Visits, nil
}

func (c *httpClient) GeneralData(ctx context.Context, domain string) (*GeneralData, error) {
	q := url.Values{}
	q.Set("api_key", c.apiKey)
	q.Set("format", "json")

	endpoint := fmt.Sprintf("%s/v1/website/%s/general-data/all?%s", c.baseURL, url.PathEscape(domain), q.Encode())

	var result GeneralData
	if err := c.get(ctx, endpoint, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *httpClient) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return eris.Wrap(err, "similarweb: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "similarweb: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "similarweb: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("similarweb: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "similarweb: unmarshal response")
	}
	return nil
}
