package main

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/edgar-enrich/internal/cache"
	"github.com/sells-group/edgar-enrich/internal/config"
	"github.com/sells-group/edgar-enrich/internal/model"
)

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	assert.Equal(t, filepath.Join(home, ".edgar-enrich/cache.db"), expandHome("~/.edgar-enrich/cache.db"))
	assert.Equal(t, "/var/cache.db", expandHome("/var/cache.db"))
	assert.Equal(t, "cache.db", expandHome("cache.db"))
}

func TestPoolConfig(t *testing.T) {
	pc := poolConfig(config.CacheConfig{MaxConns: 20, MinConns: 4})
	assert.Equal(t, int32(20), pc.MaxConns)
	assert.Equal(t, int32(4), pc.MinConns)
}

func TestTierTTLs(t *testing.T) {
	assert.Nil(t, tierTTLs(config.CacheConfig{}))

	got := tierTTLs(config.CacheConfig{TTL: map[string]time.Duration{
		"financials":   72 * time.Hour,
		"filings_list": time.Hour,
	}})
	assert.Equal(t, map[cache.Tier]time.Duration{
		cache.TierFinancials:  72 * time.Hour,
		cache.TierFilingsList: time.Hour,
	}, got)
}

func TestHumanUSD(t *testing.T) {
	assert.Equal(t, "1.5T", humanUSD(1_500_000_000_000))
	assert.Equal(t, "2.3B", humanUSD(2_300_000_000))
	assert.Equal(t, "110.0M", humanUSD(110_000_000))
	assert.Equal(t, "999", humanUSD(999))
}

func TestStatusForError(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusForError(&model.APIError{Type: "not_found"}))
	assert.Equal(t, http.StatusUnprocessableEntity, statusForError(&model.APIError{Type: "low_confidence"}))
	assert.Equal(t, http.StatusUnprocessableEntity, statusForError(&model.APIError{Type: "validation_error"}))
	assert.Equal(t, http.StatusTooManyRequests, statusForError(&model.APIError{Type: "rate_limit"}))
	assert.Equal(t, http.StatusBadGateway, statusForError(&model.APIError{Type: "enrichment_error"}))
}
