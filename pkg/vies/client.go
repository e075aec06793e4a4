// Package vies checks EU VAT numbers against the European Commission's VIES
// REST service and returns the registered legal name and address.
package vies

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://ec.europa.eu/taxation_customs/vies/rest-api"

// Client validates VAT numbers.
type Client interface {
	// CheckVAT validates a VAT number for a country. countryCode is the
	// two-letter ISO code, vatNumber the digits without the country prefix.
	CheckVAT(ctx context.Context, countryCode, vatNumber string) (*CheckResult, error)
}

// CheckResult is the registry record for a VAT number.
type CheckResult struct {
	CountryCode string `json:"countryCode"`
	VATNumber   string `json:"vatNumber"`
	Valid       bool   `json:"valid"`
	Name        string `json:"name"`
	Address     string `json:"address"`
}

var vatDigits = regexp.MustCompile(`^\d{11}$`)

// NormalizeItalian strips an "IT" prefix and surrounding whitespace from a
// raw VAT string and reports whether the remainder is a plausible Italian
// VAT number (11 digits).
func NormalizeItalian(raw string) (string, bool) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "IT")
	s = strings.ReplaceAll(s, " ", "")
	return s, vatDigits.MatchString(s)
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
	baseURL string
	http    *http.Client
}

// NewClient creates a VIES client. The service is unauthenticated.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 20 * time.Second,
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

type checkRequest struct {
	CountryCode string `json:"countryCode"`
	VATNumber   string `json:"vatNumber"`
}

func (c *httpClient) CheckVAT(ctx context.Context, countryCode, vatNumber string) (*CheckResult, error) {
	body, err := json.Marshal(checkRequest{CountryCode: countryCode, VATNumber: vatNumber})
	if err != nil {
		return nil, eris.Wrap(err, "vies: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/check-vat-number", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "vies: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "vies: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "vies: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("vies: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result CheckResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "vies: unmarshal response")
	}

	// The service returns "---" for name and address on some member states.
	if result.Name == "---" {
		result.Name = ""
	}
	if result.Address == "---" {
		result.Address = ""
	}

	return &result, nil
}
