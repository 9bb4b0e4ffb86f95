package resolve

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/edgar-enrich/internal/cache"
	"github.com/sells-group/edgar-enrich/internal/model"
	"github.com/sells-group/edgar-enrich/internal/resilience"
)

// TickerDirectoryURL is the SEC's ticker-to-CIK mapping file.
const TickerDirectoryURL = "https://www.sec.gov/files/company_tickers.json"

// directoryCacheKey is the reserved cache key for the ticker directory.
const directoryCacheKey = "__ticker_directory__"

// DefaultMinScore is the approximate-match threshold for name resolution.
const DefaultMinScore = 0.6

// FetchFunc retrieves raw bytes for a URL. The disclosure client supplies
// its rate-limited, retrying fetch here so the resolver never talks to the
// network directly.
type FetchFunc func(ctx context.Context, url string) ([]byte, error)

// Resolver maps tickers and company names to CIKs using the SEC ticker
// directory, loaded lazily and persisted through the cache store.
type Resolver struct {
	store cache.Store
	fetch FetchFunc
	url   string

	mu  sync.Mutex
	dir *Directory
}

// ResolverOption customizes a Resolver at construction time.
type ResolverOption func(*Resolver)

// WithDirectoryURL points the resolver at an alternate directory endpoint.
func WithDirectoryURL(url string) ResolverOption {
	return func(r *Resolver) { r.url = url }
}

// New creates a Resolver backed by the given store and fetch function.
func New(store cache.Store, fetch FetchFunc, opts ...ResolverOption) *Resolver {
	r := &Resolver{store: store, fetch: fetch, url: TickerDirectoryURL}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// resolveOptions collects per-call resolution flags.
type resolveOptions struct {
	allowDelisted bool
}

// Option customizes a resolution call.
type Option func(*resolveOptions)

// AllowDelisted additionally consults the cache's secondary ticker index
// for companies that have left the live directory.
func AllowDelisted() Option {
	return func(o *resolveOptions) { o.allowDelisted = true }
}

// load returns the directory, fetching and caching it on first use.
func (r *Resolver) load(ctx context.Context) (*Directory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dir != nil {
		return r.dir, nil
	}

	data, ok, err := r.store.Get(ctx, directoryCacheKey)
	if err != nil {
		return nil, err
	}
	if ok {
		dir, err := ParseDirectory(data)
		if err == nil {
			zap.L().Info("loaded ticker directory from cache", zap.Int("tickers", dir.Len()))
			r.dir = dir
			return dir, nil
		}
		zap.L().Warn("cached ticker directory unreadable, refetching", zap.Error(err))
	}

	return r.refreshLocked(ctx)
}

// Refresh re-fetches the ticker directory, bypassing the cache.
func (r *Resolver) Refresh(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.refreshLocked(ctx)
	return err
}

func (r *Resolver) refreshLocked(ctx context.Context) (*Directory, error) {
	data, err := r.fetch(ctx, r.url)
	if err != nil {
		return nil, eris.Wrap(err, "resolve: fetch ticker directory")
	}
	dir, err := ParseDirectory(data)
	if err != nil {
		return nil, err
	}
	if err := r.store.Set(ctx, directoryCacheKey, data, cache.TierTickerDirectory); err != nil {
		zap.L().Warn("failed to cache ticker directory", zap.Error(err))
	}
	zap.L().Info("loaded ticker directory from SEC", zap.Int("tickers", dir.Len()))
	r.dir = dir
	return dir, nil
}

// ByTicker resolves a ticker symbol to an entity match. Matching is
// case-insensitive and exact.
func (r *Resolver) ByTicker(ctx context.Context, ticker string, opts ...Option) (model.EntityMatch, error) {
	var o resolveOptions
	for _, opt := range opts {
		opt(&o)
	}

	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return model.EntityMatch{}, resilience.NewValidationError("empty ticker symbol")
	}

	dir, err := r.load(ctx)
	if err != nil {
		return model.EntityMatch{}, err
	}

	if cik, ok := dir.tickerToCIK[ticker]; ok {
		return model.EntityMatch{
			CIK:         cik,
			Ticker:      ticker,
			CompanyName: dir.cikToName[cik],
			Score:       1.0,
			MatchType:   model.MatchTicker,
		}, nil
	}

	if o.allowDelisted {
		if m, ok := r.delistedFromCache(ctx, ticker); ok {
			return m, nil
		}
	}

	return model.EntityMatch{}, &resilience.NotFoundError{Message: "ticker not found: " + ticker}
}

// delistedFromCache recovers a CIK from a previously cached profile for a
// ticker that has since left the live directory.
func (r *Resolver) delistedFromCache(ctx context.Context, ticker string) (model.EntityMatch, bool) {
	data, ok, err := r.store.GetByTicker(ctx, ticker)
	if err != nil || !ok {
		return model.EntityMatch{}, false
	}
	var cached struct {
		CIK         string `json:"cik"`
		CompanyName string `json:"company_name"`
	}
	if err := json.Unmarshal(data, &cached); err != nil || cached.CIK == "" {
		return model.EntityMatch{}, false
	}
	zap.L().Debug("resolved delisted ticker from cache", zap.String("ticker", ticker))
	return model.EntityMatch{
		CIK:         cached.CIK,
		Ticker:      ticker,
		CompanyName: cached.CompanyName,
		Score:       1.0,
		MatchType:   model.MatchTicker,
	}, true
}

// ByName resolves a company name to scored candidate matches. Three
// passes run in order: exact full-name match (1.0), normalized match
// (0.95), then approximate similarity over both raw and normalized name
// pools filtered by minScore. Candidates are deduplicated by CIK keeping
// the best score, sorted descending, and truncated to limit.
func (r *Resolver) ByName(ctx context.Context, name string, limit int, minScore float64) ([]model.EntityMatch, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, resilience.NewValidationError("empty company name")
	}
	if limit <= 0 {
		limit = 5
	}
	if minScore <= 0 {
		minScore = DefaultMinScore
	}

	dir, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	normalized := NormalizeName(name)
	lower := strings.ToLower(name)
	byCIK := make(map[string]model.EntityMatch)

	keep := func(m model.EntityMatch) {
		if prev, ok := byCIK[m.CIK]; !ok || m.Score > prev.Score {
			byCIK[m.CIK] = m
		}
	}

	// Pass 1: exact case-insensitive full-name match.
	for cik, companyName := range dir.cikToName {
		if strings.ToLower(companyName) == lower {
			keep(model.EntityMatch{
				CIK:         cik,
				Ticker:      dir.cikToTicker[cik],
				CompanyName: companyName,
				Score:       1.0,
				MatchType:   model.MatchExact,
			})
		}
	}

	// Pass 2: exact match after normalization.
	if cik, ok := dir.normToCIK[normalized]; ok && normalized != "" {
		keep(model.EntityMatch{
			CIK:         cik,
			Ticker:      dir.cikToTicker[cik],
			CompanyName: dir.cikToName[cik],
			Score:       0.95,
			MatchType:   model.MatchNormalized,
		})
	}

	// Pass 3: approximate similarity over raw and normalized pools.
	// CIKs claimed by the exact passes keep their scores.
	for cik, companyName := range dir.cikToName {
		if _, ok := byCIK[cik]; ok {
			continue
		}
		score := Similarity(name, companyName)
		if norm := NormalizeName(companyName); norm != "" && normalized != "" {
			if s := Similarity(normalized, norm); s > score {
				score = s
			}
		}
		if score >= minScore {
			keep(model.EntityMatch{
				CIK:         cik,
				Ticker:      dir.cikToTicker[cik],
				CompanyName: companyName,
				Score:       math.Round(score*1000) / 1000,
				MatchType:   model.MatchFuzzy,
			})
		}
	}

	matches := make([]model.EntityMatch, 0, len(byCIK))
	for _, m := range byCIK {
		matches = append(matches, m)
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].CIK < matches[j].CIK
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}

	if len(matches) == 0 {
		return nil, &resilience.NotFoundError{Message: "no companies found matching: " + name}
	}
	return matches, nil
}

// Resolve dispatches an identifier to ticker or name resolution. Short
// all-uppercase alphabetic tokens look like tickers and try ticker-first;
// everything else tries name-first.
func (r *Resolver) Resolve(ctx context.Context, identifier string) (model.EntityMatch, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return model.EntityMatch{}, resilience.NewValidationError("empty identifier")
	}

	if looksLikeTicker(identifier) {
		m, err := r.ByTicker(ctx, identifier)
		if err == nil {
			return m, nil
		}
		if !resilience.IsNotFound(err) {
			return model.EntityMatch{}, err
		}
		matches, err := r.ByName(ctx, identifier, 1, 0)
		if err != nil {
			return model.EntityMatch{}, err
		}
		return matches[0], nil
	}

	matches, err := r.ByName(ctx, identifier, 1, 0)
	if err == nil {
		return matches[0], nil
	}
	if !resilience.IsNotFound(err) {
		return model.EntityMatch{}, err
	}
	return r.ByTicker(ctx, identifier)
}

func looksLikeTicker(s string) bool {
	if len(s) > 5 {
		return false
	}
	for _, r := range s {
		if !unicode.IsUpper(r) || !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// SearchByPrefix returns companies whose ticker or name starts with the
// prefix, ticker matches first, for autocomplete use.
func (r *Resolver) SearchByPrefix(ctx context.Context, prefix string, limit int) ([]model.EntityMatch, error) {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		return nil, resilience.NewValidationError("empty prefix")
	}
	if limit <= 0 {
		limit = 10
	}

	dir, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	var matches []model.EntityMatch
	seen := make(map[string]bool)

	var tickers []string
	for ticker := range dir.tickerToCIK {
		if strings.HasPrefix(ticker, prefix) {
			tickers = append(tickers, ticker)
		}
	}
	sort.Strings(tickers)
	for _, ticker := range tickers {
		if len(matches) >= limit {
			return matches, nil
		}
		cik := dir.tickerToCIK[ticker]
		seen[cik] = true
		matches = append(matches, model.EntityMatch{
			CIK:         cik,
			Ticker:      ticker,
			CompanyName: dir.cikToName[cik],
			Score:       1.0,
			MatchType:   model.MatchTickerPrefix,
		})
	}

	var names []string
	nameToCIK := make(map[string]string)
	for cik, companyName := range dir.cikToName {
		if seen[cik] || !strings.HasPrefix(strings.ToUpper(companyName), prefix) {
			continue
		}
		names = append(names, companyName)
		nameToCIK[companyName] = cik
	}
	sort.Strings(names)
	for _, companyName := range names {
		if len(matches) >= limit {
			break
		}
		cik := nameToCIK[companyName]
		matches = append(matches, model.EntityMatch{
			CIK:         cik,
			Ticker:      dir.cikToTicker[cik],
			CompanyName: companyName,
			Score:       0.9,
			MatchType:   model.MatchNamePrefix,
		})
	}
	return matches, nil
}

// CompanyName returns the directory name for a CIK, or "" if unknown.
func (r *Resolver) CompanyName(ctx context.Context, cik string) string {
	dir, err := r.load(ctx)
	if err != nil {
		return ""
	}
	return dir.cikToName[PadCIK(cik)]
}

// Ticker returns the primary ticker for a CIK, or "" if unknown.
func (r *Resolver) Ticker(ctx context.Context, cik string) string {
	dir, err := r.load(ctx)
	if err != nil {
		return ""
	}
	return dir.cikToTicker[PadCIK(cik)]
}

// Stats reports directory load state and sizes.
type Stats struct {
	Loaded         bool `json:"loaded"`
	TotalTickers   int  `json:"total_tickers"`
	TotalCompanies int  `json:"total_companies"`
}

// Stats returns current resolver statistics without triggering a load.
func (r *Resolver) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dir == nil {
		return Stats{}
	}
	return Stats{
		Loaded:         true,
		TotalTickers:   len(r.dir.tickerToCIK),
		TotalCompanies: len(r.dir.cikToName),
	}
}
