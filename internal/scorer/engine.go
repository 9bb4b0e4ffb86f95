package scorer

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/edgar-enrich/internal/model"
)

// Engine scores profiles against the configured tier tables.
type Engine struct {
	cfg Config
}

// New creates an Engine. Unset Config fields fall back to the defaults
// individually, so a partial override keeps the rest of the tables.
func New(cfg Config) *Engine {
	def := DefaultConfig()
	if len(cfg.RevenueTiers) == 0 {
		cfg.RevenueTiers = def.RevenueTiers
	}
	if len(cfg.EmployeeTiers) == 0 {
		cfg.EmployeeTiers = def.EmployeeTiers
	}
	if len(cfg.MarketingTiers) == 0 {
		cfg.MarketingTiers = def.MarketingTiers
	}
	if len(cfg.RDTiers) == 0 {
		cfg.RDTiers = def.RDTiers
	}
	if cfg.TechPointsEach <= 0 {
		cfg.TechPointsEach = def.TechPointsEach
	}
	if cfg.TechScoreCap <= 0 {
		cfg.TechScoreCap = def.TechScoreCap
	}
	if cfg.MaxScore <= 0 {
		cfg.MaxScore = def.MaxScore
	}
	return &Engine{cfg: cfg}
}

// Config returns the effective configuration after default merging.
func (e *Engine) Config() Config {
	return e.cfg
}

// Score computes the 0-100 qualification score. Without financials the
// score falls back to tech-stack size alone, capped low so unverified
// companies never outrank disclosed ones.
func (e *Engine) Score(fin *model.FinancialMetrics, techs []model.Technology) int {
	if fin.Empty() {
		score := len(techs) * e.cfg.TechPointsEach
		if score > e.cfg.TechScoreCap {
			score = e.cfg.TechScoreCap
		}
		return score
	}

	score := 0

	if fin.RevenueUSD != nil {
		for _, t := range e.cfg.RevenueTiers {
			if *fin.RevenueUSD >= t.Threshold {
				score += t.Points
				break
			}
		}
	}

	if fin.EmployeeCount != nil {
		for _, t := range e.cfg.EmployeeTiers {
			if *fin.EmployeeCount >= t.Threshold {
				score += t.Points
				break
			}
		}
	}

	if fin.MarketingUSD != nil && fin.RevenueUSD != nil && *fin.RevenueUSD > 0 {
		ratio := float64(*fin.MarketingUSD) / float64(*fin.RevenueUSD)
		for _, t := range e.cfg.MarketingTiers {
			if ratio >= t.Threshold {
				score += t.Points
				break
			}
		}
	}

	if fin.RDUSD != nil && fin.RevenueUSD != nil && *fin.RevenueUSD > 0 {
		ratio := float64(*fin.RDUSD) / float64(*fin.RevenueUSD)
		for _, t := range e.cfg.RDTiers {
			if ratio >= t.Threshold {
				score += t.Points
				break
			}
		}
	}

	if score > e.cfg.MaxScore {
		score = e.cfg.MaxScore
	}
	return score
}

// Insights generates human-readable observations about the company's
// size, growth, spend, and stack.
func (e *Engine) Insights(p *model.CompanyProfile) []string {
	var insights []string

	fin := p.Financials
	if fin.Empty() {
		insights = append(insights, "No financial disclosures available - company may be private")
		return insights
	}

	if fin.RevenueUSD != nil {
		revenueB := float64(*fin.RevenueUSD) / 1_000_000_000
		switch {
		case revenueB >= 100:
			insights = append(insights, fmt.Sprintf("Fortune 100 company with $%.0fB revenue", revenueB))
		case revenueB >= 10:
			insights = append(insights, fmt.Sprintf("Large enterprise with $%.1fB revenue", revenueB))
		case revenueB >= 1:
			insights = append(insights, fmt.Sprintf("Mid-market company with $%.1fB revenue", revenueB))
		default:
			revenueM := float64(*fin.RevenueUSD) / 1_000_000
			insights = append(insights, fmt.Sprintf("Growth company with $%.0fM revenue", revenueM))
		}
	}

	if fin.RevenueGrowthYoY != nil {
		growth := *fin.RevenueGrowthYoY
		switch {
		case growth > 20:
			insights = append(insights, fmt.Sprintf("High growth: %.1f%% YoY revenue growth", growth))
		case growth > 10:
			insights = append(insights, fmt.Sprintf("Strong growth: %.1f%% YoY revenue growth", growth))
		case growth < -10:
			insights = append(insights, fmt.Sprintf("Declining revenue: %.1f%% YoY", growth))
		}
	}

	if fin.EmployeeCount != nil {
		n := *fin.EmployeeCount
		switch {
		case n >= 100_000:
			insights = append(insights, fmt.Sprintf("Major employer with %d employees", n))
		case n >= 10_000:
			insights = append(insights, fmt.Sprintf("Large organization with %d employees", n))
		case n >= 1_000:
			insights = append(insights, fmt.Sprintf("Growing team: %d employees", n))
		}
	}

	if fin.MarketingUSD != nil && fin.RevenueUSD != nil && *fin.RevenueUSD > 0 {
		spendM := float64(*fin.MarketingUSD) / 1_000_000
		spendPct := float64(*fin.MarketingUSD) / float64(*fin.RevenueUSD) * 100
		insights = append(insights,
			fmt.Sprintf("Invests $%.0fM annually in marketing (%.1f%% of revenue)", spendM, spendPct))
	}

	if fin.RDUSD != nil && fin.RevenueUSD != nil && *fin.RevenueUSD > 0 {
		rdM := float64(*fin.RDUSD) / 1_000_000
		rdPct := float64(*fin.RDUSD) / float64(*fin.RevenueUSD) * 100
		if rdPct >= 10 {
			insights = append(insights,
				fmt.Sprintf("Heavy R&D investment: $%.0fM (%.1f%% of revenue)", rdM, rdPct))
		} else if rdPct >= 5 {
			insights = append(insights,
				fmt.Sprintf("Moderate R&D spend: $%.0fM (%.1f%% of revenue)", rdM, rdPct))
		}
	}

	if p.SICDescription != "" {
		insights = append(insights, fmt.Sprintf("Operates in %s sector", p.SICDescription))
	}
	if p.Exchange != "" {
		insights = append(insights, fmt.Sprintf("Publicly traded on %s", p.Exchange))
	}

	switch n := len(p.Technologies); {
	case n == 0:
		insights = append(insights, "Minimal martech stack detected - greenfield opportunity")
	case n <= 3:
		insights = append(insights, fmt.Sprintf("Basic martech stack (%d vendors) - room for expansion", n))
	case n >= 10:
		insights = append(insights, fmt.Sprintf("Sophisticated martech stack (%d vendors) - mature operation", n))
	}

	return insights
}

// Recommendations generates sales-oriented next steps from the profile.
func (e *Engine) Recommendations(p *model.CompanyProfile) []string {
	var recs []string

	fin := p.Financials
	if fin.Empty() {
		recs = append(recs, "Focus on digital marketing stack audit")
		recs = append(recs, "Consider data enrichment for private company intelligence")
		return recs
	}

	if fin.RevenueUSD != nil {
		switch {
		case *fin.RevenueUSD >= 10_000_000_000:
			recs = append(recs, "Enterprise-grade solutions appropriate")
			recs = append(recs, "Multi-stakeholder sales approach recommended")
		case *fin.RevenueUSD >= 1_000_000_000:
			recs = append(recs, "Mid-market/enterprise hybrid approach")
			recs = append(recs, "Emphasize scalability and ROI")
		default:
			recs = append(recs, "Growth-focused value proposition")
			recs = append(recs, "Emphasize quick time-to-value")
		}
	}

	if fin.MarketingUSD != nil && fin.RevenueUSD != nil && *fin.RevenueUSD > 0 {
		ratio := float64(*fin.MarketingUSD) / float64(*fin.RevenueUSD)
		if ratio < 0.05 {
			recs = append(recs, "Under-invested in marketing - opportunity for budget expansion")
		} else if ratio > 0.15 {
			recs = append(recs, "Heavy marketing spend - emphasize efficiency and optimization")
		}
	}

	if fin.RDUSD != nil && fin.RevenueUSD != nil && *fin.RevenueUSD > 0 {
		if float64(*fin.RDUSD)/float64(*fin.RevenueUSD) > 0.15 {
			recs = append(recs, "Innovation-focused company - emphasize cutting-edge solutions")
		}
	}

	categories := make(map[string]bool)
	for _, tech := range p.Technologies {
		if tech.Category != "" {
			categories[tech.Category] = true
		}
	}
	if !categories["Analytics"] {
		recs = append(recs, "No analytics platform detected - high priority opportunity")
	}
	if !categories["CDP"] && fin.RevenueUSD != nil && *fin.RevenueUSD > 1_000_000_000 {
		recs = append(recs, "Enterprise company without CDP - data unification opportunity")
	}
	if !categories["Social Media"] {
		recs = append(recs, "No social media tracking - consider social listening tools")
	}

	if p.SICDescription != "" {
		sic := strings.ToLower(p.SICDescription)
		if strings.Contains(sic, "retail") || strings.Contains(sic, "electronic") {
			recs = append(recs, "Retail focus - emphasize customer journey optimization")
		}
		if strings.Contains(sic, "software") || strings.Contains(sic, "computer") {
			recs = append(recs, "Tech company - technical buyers, emphasize integration")
		}
		if strings.Contains(sic, "health") || strings.Contains(sic, "pharma") {
			recs = append(recs, "Healthcare vertical - emphasize compliance and privacy")
		}
	}

	return recs
}

// Completeness returns the filled-field ratio over the profile's identity,
// financials, and filings sections. hasScan reports whether scanner input
// (detected technologies) accompanied the request.
func (e *Engine) Completeness(p *model.CompanyProfile, hasScan bool) float64 {
	total, filled := 0, 0

	if hasScan {
		total++
		if len(p.Technologies) > 0 {
			filled++
		}
	}

	if p.Metadata == nil && p.Financials == nil && p.Filings == nil {
		total++ // registry data entirely absent
		return float64(filled) / float64(total)
	}

	total += 6
	if p.CompanyName != "" {
		filled++
	}
	if p.SICCode != "" {
		filled++
	}
	if p.Exchange != "" {
		filled++
	}
	if !p.Financials.Empty() {
		filled++
	}
	if p.Filings != nil && len(p.Filings.RecentFilings) > 0 {
		filled++
	}
	if p.Metadata != nil {
		filled++
	}

	return float64(filled) / float64(total)
}

// Confidence maps a completeness ratio to a confidence level.
func Confidence(completeness float64) string {
	switch {
	case completeness >= 0.9:
		return model.ConfidenceHigh
	case completeness >= 0.6:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}

// BuildProfile applies score, insights, recommendations, completeness,
// and confidence to an assembled profile. The profile is not mutated
// again after this pass.
func (e *Engine) BuildProfile(p *model.CompanyProfile, hasScan bool) {
	p.QualificationScore = e.Score(p.Financials, p.Technologies)
	p.Insights = e.Insights(p)
	p.Recommendations = e.Recommendations(p)
	p.Completeness = e.Completeness(p, hasScan)
	p.Confidence = Confidence(p.Completeness)

	zap.L().Debug("profile scored",
		zap.String("cik", p.CIK),
		zap.Int("score", p.QualificationScore),
		zap.String("confidence", p.Confidence),
	)
}
