package edgar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/edgar-enrich/internal/cache"
	"github.com/sells-group/edgar-enrich/internal/model"
	"github.com/sells-group/edgar-enrich/internal/rategate"
	"github.com/sells-group/edgar-enrich/internal/resilience"
	"github.com/sells-group/edgar-enrich/internal/resolve"
	"github.com/sells-group/edgar-enrich/internal/scorer"
	"github.com/sells-group/edgar-enrich/internal/xbrl"
)

// DefaultBaseURL is the EDGAR data API host.
const DefaultBaseURL = "https://data.sec.gov"

// Config controls the disclosure client.
type Config struct {
	// UserAgent identifies the caller per SEC fair-access policy and must
	// include a contact email.
	UserAgent string `mapstructure:"user_agent"`

	BaseURL      string        `mapstructure:"base_url"`
	DirectoryURL string        `mapstructure:"directory_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`

	// GateCapacity and GateWindow bound outbound request throughput before
	// any request reaches the per-host transport limiters.
	GateCapacity int                     `mapstructure:"gate_capacity"`
	GateWindow   time.Duration           `mapstructure:"gate_window"`
	Adaptive     rategate.AdaptiveConfig `mapstructure:"adaptive"`

	// MinNameScore is the confidence floor for name-based enrichment.
	MinNameScore float64 `mapstructure:"min_name_score"`

	Scoring scorer.Config `mapstructure:"scoring"`
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.DirectoryURL == "" {
		c.DirectoryURL = resolve.TickerDirectoryURL
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.GateCapacity <= 0 {
		c.GateCapacity = 10
	}
	if c.GateWindow <= 0 {
		c.GateWindow = time.Second
	}
	if c.MinNameScore <= 0 {
		c.MinNameScore = 0.8
	}
	return c
}

// Client is the caching, rate-limited EDGAR client. It owns the adaptive
// gate, the resolver, and the scoring engine; the cache store is supplied
// by the caller and closed by the caller.
type Client struct {
	cfg       Config
	store     cache.Store
	transport *Transport
	gate      *rategate.AdaptiveGate
	resolver  *resolve.Resolver
	engine    *scorer.Engine

	mu        sync.Mutex
	apiCalls  int
	cacheHits int
}

// New validates the configuration and wires the client. The user agent
// must carry a contact email per SEC guidelines.
func New(cfg Config, store cache.Store) (*Client, error) {
	cfg = cfg.withDefaults()
	if cfg.UserAgent == "" {
		return nil, resilience.NewValidationError("edgar: user agent is required")
	}
	if !strings.Contains(cfg.UserAgent, "@") {
		return nil, resilience.NewValidationError(
			"edgar: user agent must include a contact email, e.g. %q", "Acme admin@acme.com")
	}

	gate, err := rategate.NewAdaptive(cfg.GateCapacity, cfg.GateWindow, cfg.Adaptive)
	if err != nil {
		return nil, err
	}

	engine := scorer.New(cfg.Scoring)
	if err := scorer.Validate(engine.Config()); err != nil {
		return nil, eris.Wrap(err, "edgar: scoring config")
	}

	c := &Client{
		cfg:       cfg,
		store:     store,
		transport: NewTransport(cfg.UserAgent, cfg.Timeout),
		gate:      gate,
		engine:    engine,
	}
	c.resolver = resolve.New(store, c.doGet, resolve.WithDirectoryURL(cfg.DirectoryURL))

	zap.L().Info("edgar client initialized",
		zap.String("base_url", cfg.BaseURL),
		zap.Int("gate_capacity", cfg.GateCapacity),
	)
	return c, nil
}

// Resolver exposes the entity resolver for resolve/search commands.
func (c *Client) Resolver() *resolve.Resolver { return c.resolver }

// doGet performs one rate-limited, retrying network fetch. Throttle
// responses shrink the adaptive gate; successes feed its recovery.
func (c *Client) doGet(ctx context.Context, url string) ([]byte, error) {
	if err := c.gate.Acquire(ctx); err != nil {
		return nil, err
	}

	cfg := resilience.DefaultRetryConfig()
	cfg.MaxAttempts = c.cfg.MaxRetries
	cfg.OnRetry = resilience.RetryLogger("edgar", "get")

	data, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]byte, error) {
		body, err := c.transport.Get(ctx, url)
		if err != nil {
			if resilience.IsRateLimit(err) {
				c.gate.RecordThrottle()
			}
			return nil, err
		}
		c.gate.RecordSuccess()
		return body, nil
	})
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.apiCalls++
	c.mu.Unlock()
	return data, nil
}

// fetchJSON resolves a payload cache-first. Fresh responses are cached
// under the entity's ticker and name as secondary keys when the payload
// carries them.
func (c *Client) fetchJSON(ctx context.Context, url, cacheKey string, tier cache.Tier) ([]byte, error) {
	data, ok, err := c.store.Get(ctx, cacheKey)
	if err != nil {
		zap.L().Warn("cache read failed", zap.String("key", cacheKey), zap.Error(err))
	}
	if ok {
		c.mu.Lock()
		c.cacheHits++
		c.mu.Unlock()
		zap.L().Debug("cache hit", zap.String("key", cacheKey))
		return data, nil
	}

	data, err = c.doGet(ctx, url)
	if err != nil {
		return nil, err
	}

	opts := secondaryKeys(data)
	if err := c.store.Set(ctx, cacheKey, data, tier, opts...); err != nil {
		zap.L().Warn("cache write failed", zap.String("key", cacheKey), zap.Error(err))
	}
	return data, nil
}

// secondaryKeys peeks at an EDGAR payload for the primary ticker and the
// entity name so cached entries stay findable by ticker after delisting.
func secondaryKeys(data []byte) []cache.SetOption {
	var peek struct {
		Tickers    []string `json:"tickers"`
		EntityName string   `json:"entityName"`
		Name       string   `json:"name"`
	}
	if err := json.Unmarshal(data, &peek); err != nil {
		return nil
	}

	var opts []cache.SetOption
	if len(peek.Tickers) > 0 && peek.Tickers[0] != "" {
		opts = append(opts, cache.WithTicker(peek.Tickers[0]))
	}
	name := peek.EntityName
	if name == "" {
		name = peek.Name
	}
	if name != "" {
		opts = append(opts, cache.WithCompanyName(name))
	}
	return opts
}

// GetSubmissions fetches an entity's registry metadata and filing history.
func (c *Client) GetSubmissions(ctx context.Context, cik string) (*model.EntityMetadata, *model.FilingsSummary, error) {
	cik = resolve.PadCIK(cik)
	url := fmt.Sprintf("%s/submissions/CIK%s.json", c.cfg.BaseURL, cik)

	data, err := c.fetchJSON(ctx, url, "submissions:"+cik, cache.TierEntityMetadata)
	if err != nil {
		return nil, nil, err
	}
	return parseSubmissions(data, cik)
}

// GetCompanyFacts fetches an entity's full XBRL fact set.
func (c *Client) GetCompanyFacts(ctx context.Context, cik string) (*xbrl.CompanyFacts, error) {
	cik = resolve.PadCIK(cik)
	url := fmt.Sprintf("%s/api/xbrl/companyfacts/CIK%s.json", c.cfg.BaseURL, cik)

	data, err := c.fetchJSON(ctx, url, "facts:"+cik, cache.TierCompanyFacts)
	if err != nil {
		return nil, err
	}
	return xbrl.ParseCompanyFacts(bytes.NewReader(data))
}

// EnrichByCIK builds a scored profile for a CIK. Submissions are required;
// company facts are best-effort since smaller registrants often have none.
// Failures come back as typed results, never as a returned error.
func (c *Client) EnrichByCIK(ctx context.Context, cik, ticker string) model.EnrichmentResult {
	start := time.Now()
	c.resetCounters()
	cik = resolve.PadCIK(cik)

	zap.L().Info("enriching entity", zap.String("cik", cik))

	meta, filings, err := c.GetSubmissions(ctx, cik)
	if err != nil {
		return c.failed(err, start)
	}

	if ticker == "" && len(meta.Tickers) > 0 {
		ticker = meta.Tickers[0]
	}

	var fin *model.FinancialMetrics
	hasFacts := false
	facts, err := c.GetCompanyFacts(ctx, cik)
	if err != nil {
		zap.L().Warn("no company facts available", zap.String("cik", cik), zap.Error(err))
	} else {
		fin = xbrl.ExtractMetrics(facts)
		hasFacts = true
	}

	exchange := ""
	if len(meta.Exchanges) > 0 {
		exchange = meta.Exchanges[0]
	}

	profile := &model.CompanyProfile{
		CIK:            cik,
		Ticker:         ticker,
		CompanyName:    meta.EntityName,
		SICCode:        meta.SICCode,
		SICDescription: meta.SICDescription,
		Exchange:       exchange,
		FiscalYearEnd:  meta.FiscalYearEnd,
		Metadata:       meta,
		Financials:     fin,
		Filings:        filings,
		EnrichedAt:     time.Now().UTC(),
	}

	profile.QualificationScore = c.engine.Score(fin, nil)
	profile.Insights = c.engine.Insights(profile)
	profile.Recommendations = c.engine.Recommendations(profile)
	if hasFacts {
		profile.Confidence = model.ConfidenceHigh
		profile.Completeness = 0.8
	} else {
		profile.Confidence = model.ConfidenceMedium
		profile.Completeness = 0.5
	}

	api, hits := c.counters()
	return model.EnrichmentResult{
		Success:   true,
		Profile:   profile,
		APICalls:  api,
		CacheHits: hits,
		Duration:  time.Since(start),
	}
}

// EnrichByTicker resolves a ticker through the directory and enriches the
// matched entity.
func (c *Client) EnrichByTicker(ctx context.Context, ticker string) model.EnrichmentResult {
	start := time.Now()
	ticker = strings.ToUpper(strings.TrimSpace(ticker))

	match, err := c.resolver.ByTicker(ctx, ticker)
	if err != nil {
		return c.failed(err, start)
	}
	return c.EnrichByCIK(ctx, match.CIK, match.Ticker)
}

// EnrichByName fuzzy-resolves a company name and enriches the best match.
// Matches below the confidence floor fail rather than enrich the wrong
// company; inexact matches demote the profile confidence.
func (c *Client) EnrichByName(ctx context.Context, name string) model.EnrichmentResult {
	start := time.Now()
	name = strings.TrimSpace(name)

	matches, err := c.resolver.ByName(ctx, name, 1, resolve.DefaultMinScore)
	if err != nil {
		return c.failed(err, start)
	}

	best := matches[0]
	if best.Score < c.cfg.MinNameScore {
		api, hits := c.counters()
		return model.EnrichmentResult{
			Success: false,
			Error: &model.APIError{
				Type: "low_confidence",
				Message: fmt.Sprintf("best match %q has low confidence (%.2f)",
					best.CompanyName, best.Score),
				Retryable: false,
			},
			APICalls:  api,
			CacheHits: hits,
			Duration:  time.Since(start),
		}
	}

	res := c.EnrichByCIK(ctx, best.CIK, best.Ticker)
	if res.Success && best.MatchType != model.MatchExact {
		res.Profile.Confidence = model.ConfidenceMedium
	}
	return res
}

// Enrich dispatches on the identifier kind: "cik", "ticker", "name", or
// "auto" (heuristic resolution).
func (c *Client) Enrich(ctx context.Context, kind, identifier string) model.EnrichmentResult {
	start := time.Now()

	switch strings.ToLower(kind) {
	case "cik":
		return c.EnrichByCIK(ctx, identifier, "")
	case "ticker":
		return c.EnrichByTicker(ctx, identifier)
	case "name":
		return c.EnrichByName(ctx, identifier)
	case "auto", "":
		match, err := c.resolver.Resolve(ctx, strings.TrimSpace(identifier))
		if err != nil {
			return c.failed(err, start)
		}
		return c.EnrichByCIK(ctx, match.CIK, match.Ticker)
	default:
		return c.failed(resilience.NewValidationError("edgar: unknown identifier kind %q", kind), start)
	}
}

// ClientStats aggregates counters from the gate, the cache, and the
// resolver for the stats surfaces.
type ClientStats struct {
	Gate      rategate.Stats `json:"rate_gate"`
	Cache     cache.Stats    `json:"cache"`
	Resolver  resolve.Stats  `json:"resolver"`
	APICalls  int            `json:"api_calls_made"`
	CacheHits int            `json:"cache_hits"`
}

// Stats reports gate, cache, and resolver statistics.
func (c *Client) Stats(ctx context.Context) (ClientStats, error) {
	cs, err := c.store.Stats(ctx)
	if err != nil {
		return ClientStats{}, err
	}
	api, hits := c.counters()
	return ClientStats{
		Gate:      c.gate.Stats(),
		Cache:     cs,
		Resolver:  c.resolver.Stats(),
		APICalls:  api,
		CacheHits: hits,
	}, nil
}

// RefreshDirectory forces a re-fetch of the ticker directory.
func (c *Client) RefreshDirectory(ctx context.Context) error {
	return c.resolver.Refresh(ctx)
}

// Close flushes pending cache statistics. The store itself stays open; it
// belongs to the caller.
func (c *Client) Close() error {
	return c.store.FlushStats(context.Background())
}

func (c *Client) failed(err error, start time.Time) model.EnrichmentResult {
	api, hits := c.counters()
	return model.EnrichmentResult{
		Success: false,
		Error: &model.APIError{
			Type:       resilience.ErrorType(err),
			Message:    err.Error(),
			StatusCode: resilience.StatusCode(err),
			URL:        resilience.ErrorURL(err),
			Retryable:  resilience.IsRetryable(err),
		},
		APICalls:  api,
		CacheHits: hits,
		Duration:  time.Since(start),
	}
}

func (c *Client) resetCounters() {
	c.mu.Lock()
	c.apiCalls = 0
	c.cacheHits = 0
	c.mu.Unlock()
}

func (c *Client) counters() (api, hits int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.apiCalls, c.cacheHits
}
