// Package hubspot is a hand-written client for the HubSpot CRM v3 API,
// limited to the deal, search and note operations the pipeline uses.
package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.hubapi.com"

// noteToDealAssociationType is HubSpot's association type id for
// note-to-deal links.
const noteToDealAssociationType = 214

// Client performs CRM operations against the HubSpot API.
type Client interface {
	GetDeal(ctx context.Context, dealID string, properties []string) (*Deal, error)
	SearchDeals(ctx context.Context, req SearchRequest) (*SearchResponse, error)
	UpdateDeal(ctx context.Context, dealID string, properties map[string]string) error
	CreateNote(ctx context.Context, dealID, body string, at time.Time) (string, error)
}

// Deal is a CRM deal record. Properties holds the raw property values as
// returned by the API; callers map them onto their own types.
type Deal struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

// Property returns a property value, empty if absent.
func (d *Deal) Property(name string) string {
	return d.Properties[name]
}

// Filter is one condition in a search filter group.
type Filter struct {
	PropertyName string   `json:"propertyName"`
	Operator     string   `json:"operator"` // EQ, IN, ...
	Value        string   `json:"value,omitempty"`
	Values       []string `json:"values,omitempty"`
}

// FilterGroup ANDs its filters; groups are ORed together.
type FilterGroup struct {
	Filters []Filter `json:"filters"`
}

// SearchRequest is the body for POST /crm/v3/objects/deals/search.
//
// Search results come from HubSpot's search index, which lags writes. Treat
// returned records as candidates only — re-read the deal before acting on
// any field that matters.
type SearchRequest struct {
	FilterGroups []FilterGroup `json:"filterGroups"`
	Properties   []string      `json:"properties,omitempty"`
	Limit        int           `json:"limit,omitempty"`
	After        string        `json:"after,omitempty"`
}

// SearchResponse is the search result page.
type SearchResponse struct {
	Total   int    `json:"total"`
	Results []Deal `json:"results"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	token   string
	baseURL string
	http    *http.Client
}

// NewClient creates a HubSpot API client authenticated with a private app token.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) GetDeal(ctx context.Context, dealID string, properties []string) (*Deal, error) {
	endpoint := fmt.Sprintf("%s/crm/v3/objects/deals/%s", c.baseURL, url.PathEscape(dealID))
	if len(properties) > 0 {
		endpoint += "?properties=" + url.QueryEscape(strings.Join(properties, ","))
	}

	var deal Deal
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &deal); err != nil {
		return nil, eris.Wrapf(err, "hubspot: get deal %s", dealID)
	}
	return &deal, nil
}

func (c *httpClient) SearchDeals(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	endpoint := c.baseURL + "/crm/v3/objects/deals/search"

	var resp SearchResponse
	if err := c.do(ctx, http.MethodPost, endpoint, req, &resp); err != nil {
		return nil, eris.Wrap(err, "hubspot: search deals")
	}
	return &resp, nil
}

func (c *httpClient) UpdateDeal(ctx context.Context, dealID string, properties map[string]string) error {
	endpoint := fmt.Sprintf("%s/crm/v3/objects/deals/%s", c.baseURL, url.PathEscape(dealID))

	body := struct {
		Properties map[string]string `json:"properties"`
	}{Properties: properties}

	if err := c.do(ctx, http.MethodPatch, endpoint, body, nil); err != nil {
		return eris.Wrapf(err, "hubspot: update deal %s", dealID)
	}
	return nil
}

func (c *httpClient) CreateNote(ctx context.Context, dealID, noteBody string, at time.Time) (string, error) {
	endpoint := c.baseURL + "/crm/v3/objects/notes"

	body := map[string]any{
		"properties": map[string]string{
			"hs_note_body": noteBody,
			"hs_timestamp": fmt.Sprintf("%d", at.UnixMilli()),
		},
		"associations": []map[string]any{
			{
				"to": map[string]string{"id": dealID},
				"types": []map[string]any{
					{
						"associationCategory": "HUBSPOT_DEFINED",
						"associationTypeId":   noteToDealAssociationType,
					},
				},
			},
		},
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, endpoint, body, &resp); err != nil {
		return "", eris.Wrapf(err, "hubspot: create note for deal %s", dealID)
	}
	return resp.ID, nil
}

func (c *httpClient) do(ctx context.Context, method, endpoint string, reqBody, out any) error {
	var bodyReader io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return eris.Wrap(err, "marshal request")
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return eris.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return eris.Wrap(err, "unmarshal response")
		}
	}
	return nil
}
