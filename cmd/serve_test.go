package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/edgar-enrich/internal/cache"
	"github.com/sells-group/edgar-enrich/internal/edgar"
	"github.com/sells-group/edgar-enrich/internal/model"
	"github.com/sells-group/edgar-enrich/internal/scorer"
)

const serveTestDirectory = `{
	"0": {"cik_str": 320193, "ticker": "AAPL", "title": "Apple Inc."}
}`

const serveTestSubmissions = `{
	"cik": "320193",
	"sic": "3571",
	"sicDescription": "Electronic Computers",
	"name": "Apple Inc.",
	"tickers": ["AAPL"],
	"exchanges": ["Nasdaq"],
	"fiscalYearEnd": "0930",
	"filings": {
		"recent": {
			"accessionNumber": ["0000320193-23-000106"],
			"filingDate": ["2023-11-03"],
			"form": ["10-K"],
			"primaryDocument": ["aapl-20230930.htm"]
		}
	}
}`

const serveTestFacts = `{
	"cik": 320193,
	"entityName": "Apple Inc.",
	"facts": {
		"us-gaap": {
			"Revenues": {
				"units": {"USD": [
					{"end": "2023-09-30", "val": 110000000, "fy": 2023, "fp": "FY", "form": "10-K"}
				]}
			}
		}
	}
}`

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/files/company_tickers.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(serveTestDirectory))
	})
	mux.HandleFunc("/submissions/CIK0000320193.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(serveTestSubmissions))
	})
	mux.HandleFunc("/api/xbrl/companyfacts/CIK0000320193.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(serveTestFacts))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	upstream := httptest.NewServer(mux)
	t.Cleanup(upstream.Close)

	client, err := edgar.New(edgar.Config{
		UserAgent:    "Acme admin@acme.com",
		BaseURL:      upstream.URL,
		DirectoryURL: upstream.URL + "/files/company_tickers.json",
		Timeout:      5 * time.Second,
	}, cache.NewMemory())
	require.NoError(t, err)

	return newRouter(client, scorer.New(scorer.Config{}))
}

func TestServeHealthz(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestServeResolve(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/resolve?q=AAPL", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var match model.EntityMatch
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &match))
	assert.Equal(t, "0000320193", match.CIK)
	assert.Equal(t, "AAPL", match.Ticker)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/resolve", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/resolve?q=ZZZZ", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeSearch(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search?prefix=AA&limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Matches []model.EntityMatch `json:"matches"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Matches, 1)
	assert.Equal(t, "AAPL", resp.Matches[0].Ticker)
}

func TestServeEnrich(t *testing.T) {
	router := newTestRouter(t)

	body := `{"kind":"ticker","identifier":"AAPL"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/enrich", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var res model.EnrichmentResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.True(t, res.Success)
	assert.Equal(t, "Apple Inc.", res.Profile.CompanyName)
	assert.Equal(t, model.ConfidenceHigh, res.Profile.Confidence)
}

func TestServeEnrich_WithScanRescores(t *testing.T) {
	router := newTestRouter(t)

	body := `{
		"kind": "ticker",
		"identifier": "AAPL",
		"domain": "apple.com",
		"technologies": [
			{"vendor": "Marketo", "category": "Marketing Automation"},
			{"vendor": "Segment", "category": "CDP"}
		]
	}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/enrich", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var res model.EnrichmentResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.True(t, res.Success)
	assert.Equal(t, "apple.com", res.Profile.Domain)
	assert.Len(t, res.Profile.Technologies, 2)
	assert.Greater(t, res.Profile.QualificationScore, 0)
	assert.NotEmpty(t, res.Profile.Confidence)
}

func TestServeEnrich_Errors(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/enrich", strings.NewReader("{}")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	body := `{"kind":"cik","identifier":"999999"}`
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/enrich", strings.NewReader(body)))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	body = `{"kind":"isin","identifier":"US0378331005"}`
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/enrich", strings.NewReader(body)))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestServeStats(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "rate_gate")
	assert.Contains(t, rec.Body.String(), "cache")
}
