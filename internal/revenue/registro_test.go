package revenue

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-qualifier/internal/model"
	"github.com/sells-group/lead-qualifier/pkg/tavily"
)

// profilePage pads past the thin-page threshold so direct-URL hits count.
func profilePage(body string) string {
	return body + strings.Repeat("<!-- -->", 700)
}

func TestRegistroAziendeDirectHit(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Path != "/grivel-srl-00139110076" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, profilePage(`<html><body>
			<h1>GRIVEL SRL</h1>
			<p>Fatturato: € 3.200.000 (Anno: 2024)</p>
			<p>P.IVA 00139110076</p>
			</body></html>`))
	}))
	defer server.Close()

	search := &fakeSearch{}
	tier := NewRegistroAziende(testFetcher(), search, WithRegistroBaseURL(server.URL))
	cand, err := tier.Lookup(context.Background(), Query{Name: "Grivel Srl", VATNumber: "00139110076"})
	require.NoError(t, err)
	assert.Equal(t, int64(320000000), cand.Value.Amount)
	assert.Equal(t, model.ConfidenceHigh, cand.Confidence)
	assert.True(t, cand.IdentityBound, "direct URL hit echoing the VAT is identity-bound")
	assert.Empty(t, search.queries, "no search needed on a direct hit")
	assert.Equal(t, "/grivel-srl-00139110076", paths[0])
}

func TestRegistroAziendeSearchFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/scheda/grivel" {
			fmt.Fprint(w, `<html><body><h1>GRIVEL SRL</h1><p>Ricavi: € 1.500.000</p></body></html>`)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	search := &fakeSearch{resp: &tavily.SearchResponse{Results: []tavily.Result{
		{URL: server.URL + "/ricerca?q=grivel"},
		{URL: server.URL + "/scheda/grivel"},
	}}}

	tier := NewRegistroAziende(testFetcher(), search, WithRegistroBaseURL(server.URL))
	cand, err := tier.Lookup(context.Background(), Query{Name: "Grivel Srl", VATNumber: "00139110076"})
	require.NoError(t, err)
	assert.Equal(t, int64(150000000), cand.Value.Amount)
	assert.False(t, cand.IdentityBound, "search-derived page must go through validation")
	require.Len(t, search.queries, 1)
}

func TestAtokaJSONLDExtraction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/public/it/azienda/grivel-srl-00139110076" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, profilePage(`<html><head><title>GRIVEL SRL : fatturato e bilanci | Atoka</title></head><body>
			<script type="application/ld+json">{"text": "I ricavi generati da GRIVEL SRL sono stati di 23.0 K €"}</script>
			<p>P.IVA 00139110076</p>
			</body></html>`))
	}))
	defer server.Close()

	tier := NewAtoka(testFetcher(), &fakeSearch{}, WithAtokaBaseURL(server.URL))
	cand, err := tier.Lookup(context.Background(), Query{Name: "Grivel Srl", VATNumber: "00139110076"})
	require.NoError(t, err)
	assert.Equal(t, int64(2300000), cand.Value.Amount)
	assert.Equal(t, model.ConfidenceHigh, cand.Confidence)
	assert.Equal(t, "GRIVEL SRL", cand.FoundName)
}

func TestAtokaSearchRequiresVATInURL(t *testing.T) {
	// Direct patterns fail fast against a closed port; only the search
	// fallback is exercised.
	search := &fakeSearch{resp: &tavily.SearchResponse{Results: []tavily.Result{
		{URL: "http://127.0.0.1:1/public/it/azienda/altra-azienda-99999999999"},
	}}}

	tier := NewAtoka(testFetcher(), search, WithAtokaBaseURL("http://127.0.0.1:1"))
	_, err := tier.Lookup(context.Background(), Query{Name: "Grivel Srl", VATNumber: "00139110076"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHyphenSlug(t *testing.T) {
	assert.Equal(t, "grivel-srl", hyphenSlug("GRIVEL SRL"))
	assert.Equal(t, "societa-agricola-verdamica", hyphenSlug("Società Agricola Verdàmica"))
	assert.Equal(t, "acme", hyphenSlug(stripLegalForm("ACME S.R.L.")))
}
