package xbrl

import (
	"math"
	"sort"
	"strconv"

	"github.com/sells-group/edgar-enrich/internal/model"
)

// Concept synonym lists, in preference order. Companies report revenue
// under different tags across taxonomy vintages; the first tag with at
// least one annual value wins.
var (
	revenueTags = []string{
		"Revenues",
		"RevenueFromContractWithCustomerExcludingAssessedTax",
		"SalesRevenueNet",
		"TotalRevenues",
	}
	netIncomeTags = []string{"NetIncomeLoss"}
	assetsTags    = []string{"Assets"}
	marketingTags = []string{
		"SellingGeneralAndAdministrativeExpense",
		"SellingAndMarketingExpense",
	}
	rdTags = []string{"ResearchAndDevelopmentExpense"}
)

// latestAnnual returns the most recent fiscal-year value for the first
// tag carrying annual data, plus the full annual history for that tag.
// A tag that exists but has no FY entries falls through to the next.
func latestAnnual(ns FactNS, tags []string, unit string) (*FactValue, []FactValue) {
	for _, tag := range tags {
		fact, ok := ns[tag]
		if !ok {
			continue
		}
		var annual []FactValue
		for _, v := range fact.Units[unit] {
			if v.FP == "FY" {
				annual = append(annual, v)
			}
		}
		if len(annual) == 0 {
			continue
		}
		latest := annual[0]
		for _, v := range annual[1:] {
			if v.End > latest.End {
				latest = v
			}
		}
		return &latest, annual
	}
	return nil, nil
}

// ExtractMetrics pulls headline financial metrics from company facts.
// Only annual (fp == "FY") values are used; quarterly figures would skew
// the revenue tiers downstream.
func ExtractMetrics(facts *CompanyFacts) *model.FinancialMetrics {
	m := &model.FinancialMetrics{}
	if facts == nil {
		return m
	}
	usGAAP := facts.USGAAP()
	dei := facts.DEI()

	if rev, history := latestAnnual(usGAAP, revenueTags, "USD"); rev != nil {
		m.RevenueUSD = int64Ptr(rev.Val)
		if rev.FY > 0 {
			m.FiscalYear = strconv.Itoa(rev.FY)
		}
		m.PeriodEnd = rev.End

		if len(history) >= 2 {
			sort.Slice(history, func(i, j int) bool {
				return history[i].End > history[j].End
			})
			current, previous := history[0].Val, history[1].Val
			if previous > 0 {
				growth := math.Round((current-previous)/previous*100*100) / 100
				m.RevenueGrowthYoY = &growth
			}
		}
	}

	if v, _ := latestAnnual(usGAAP, netIncomeTags, "USD"); v != nil {
		m.NetIncomeUSD = int64Ptr(v.Val)
	}
	if v, _ := latestAnnual(usGAAP, assetsTags, "USD"); v != nil {
		m.TotalAssetsUSD = int64Ptr(v.Val)
	}
	if v, _ := latestAnnual(usGAAP, marketingTags, "USD"); v != nil {
		m.MarketingUSD = int64Ptr(v.Val)
	}
	if v, _ := latestAnnual(usGAAP, rdTags, "USD"); v != nil {
		m.RDUSD = int64Ptr(v.Val)
	}

	// Employee counts live in the dei namespace. EDGAR files them under
	// the "shares" unit.
	if fact, ok := dei["EntityNumberOfEmployees"]; ok {
		values := fact.Units["shares"]
		if len(values) > 0 {
			latest := values[0]
			for _, v := range values[1:] {
				if v.End > latest.End {
					latest = v
				}
			}
			m.EmployeeCount = int64Ptr(latest.Val)
		}
	}

	return m
}

func int64Ptr(v float64) *int64 {
	n := int64(v)
	return &n
}
