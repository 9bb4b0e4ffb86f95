package model

import "time"

// APIError is the serializable error attached to a failed enrichment.
type APIError struct {
	Type       string `json:"type"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code,omitempty"`
	URL        string `json:"url,omitempty"`
	Retryable  bool   `json:"retryable"`
}

// EnrichmentResult is the outcome of one top-level enrichment call. A failed
// enrichment always carries a typed error; it never propagates a panic or a
// raw error past the client boundary.
type EnrichmentResult struct {
	Success   bool            `json:"success"`
	Profile   *CompanyProfile `json:"profile,omitempty"`
	Error     *APIError       `json:"error,omitempty"`
	APICalls  int             `json:"api_calls_made"`
	CacheHits int             `json:"cache_hits"`
	Duration  time.Duration   `json:"duration_ns"`
}
