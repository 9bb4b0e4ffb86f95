// Package model defines the serializable data structures shared across the
// enrichment pipeline: resolved entity matches, extracted financial metrics,
// filings summaries, and the final company profile.
package model

import "time"

// MatchType describes how an identifier was resolved to a CIK.
type MatchType string

const (
	MatchExact        MatchType = "exact"
	MatchNormalized   MatchType = "normalized"
	MatchFuzzy        MatchType = "fuzzy"
	MatchTicker       MatchType = "ticker"
	MatchTickerPrefix MatchType = "ticker_prefix"
	MatchNamePrefix   MatchType = "name_prefix"
)

// EntityMatch is a scored resolution of an identifier to an EDGAR entity.
type EntityMatch struct {
	CIK         string    `json:"cik"`
	Ticker      string    `json:"ticker,omitempty"`
	CompanyName string    `json:"company_name"`
	Score       float64   `json:"score"`
	MatchType   MatchType `json:"match_type"`
}

// FinancialMetrics holds key figures extracted from XBRL company facts.
// Every field is optional: a nil pointer means the company never disclosed
// the value, which is itself meaningful downstream.
type FinancialMetrics struct {
	RevenueUSD       *int64   `json:"revenue_usd,omitempty"`
	RevenueGrowthYoY *float64 `json:"revenue_growth_yoy,omitempty"`
	NetIncomeUSD     *int64   `json:"net_income_usd,omitempty"`
	TotalAssetsUSD   *int64   `json:"total_assets_usd,omitempty"`
	MarketingUSD     *int64   `json:"marketing_spend_usd,omitempty"`
	RDUSD            *int64   `json:"rd_spend_usd,omitempty"`
	EmployeeCount    *int64   `json:"employee_count,omitempty"`
	FiscalYear       string   `json:"fiscal_year,omitempty"`
	PeriodEnd        string   `json:"period_end,omitempty"`
}

// Empty reports whether no metric at all was extracted.
func (m *FinancialMetrics) Empty() bool {
	if m == nil {
		return true
	}
	return m.RevenueUSD == nil && m.NetIncomeUSD == nil && m.TotalAssetsUSD == nil &&
		m.MarketingUSD == nil && m.RDUSD == nil && m.EmployeeCount == nil
}

// Filing is a single disclosure filing.
type Filing struct {
	AccessionNumber string `json:"accession_number"`
	FilingDate      string `json:"filing_date"`
	FormType        string `json:"form_type"`
	PrimaryDocument string `json:"primary_document,omitempty"`
}

// FilingsSummary summarizes an entity's recent filing activity.
type FilingsSummary struct {
	RecentFilings  []Filing `json:"recent_filings"`
	Count10K       int      `json:"count_10k"`
	Count10Q       int      `json:"count_10q"`
	Count8K        int      `json:"count_8k"`
	LastFilingDate string   `json:"last_filing_date,omitempty"`
}

// EntityMetadata is the registry's descriptive record for an entity.
type EntityMetadata struct {
	CIK                  string   `json:"cik"`
	EntityName           string   `json:"entity_name"`
	EntityType           string   `json:"entity_type,omitempty"`
	SICCode              string   `json:"sic_code,omitempty"`
	SICDescription       string   `json:"sic_description,omitempty"`
	Tickers              []string `json:"tickers,omitempty"`
	Exchanges            []string `json:"exchanges,omitempty"`
	EIN                  string   `json:"ein,omitempty"`
	FiscalYearEnd        string   `json:"fiscal_year_end,omitempty"`
	StateOfIncorporation string   `json:"state_of_incorporation,omitempty"`
	Phone                string   `json:"phone,omitempty"`
}

// Technology is a martech vendor detected on the company's website by the
// external scanner. The scanner itself lives outside this module; detected
// technologies arrive as caller input.
type Technology struct {
	Vendor   string `json:"vendor"`
	Category string `json:"category,omitempty"`
}

// Confidence levels for a profile.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// CompanyProfile is the fully enriched, scored profile for one company.
// It is assembled once per enrichment call and not mutated after scoring.
type CompanyProfile struct {
	// Identity
	CIK         string `json:"cik"`
	Ticker      string `json:"ticker,omitempty"`
	CompanyName string `json:"company_name"`
	Domain      string `json:"domain,omitempty"`

	// Classification
	SICCode        string `json:"sic_code,omitempty"`
	SICDescription string `json:"sic_description,omitempty"`
	Exchange       string `json:"exchange,omitempty"`
	FiscalYearEnd  string `json:"fiscal_year_end,omitempty"`

	Metadata *EntityMetadata `json:"metadata,omitempty"`

	// Financials and filings
	Financials *FinancialMetrics `json:"financials,omitempty"`
	Filings    *FilingsSummary   `json:"filings,omitempty"`

	// Scan input
	Technologies []Technology `json:"technologies,omitempty"`

	// Qualification
	QualificationScore int      `json:"qualification_score"`
	Insights           []string `json:"insights,omitempty"`
	Recommendations    []string `json:"recommendations,omitempty"`
	Confidence         string   `json:"confidence"`
	Completeness       float64  `json:"completeness"`

	EnrichedAt time.Time `json:"enriched_at"`
}
