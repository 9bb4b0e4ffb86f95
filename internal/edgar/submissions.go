package edgar

import (
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/edgar-enrich/internal/model"
)

// recentFilingsCap bounds how many individual filings are carried on a
// profile. Form-type counts still cover the full history.
const recentFilingsCap = 20

// submissionJSON mirrors the EDGAR submissions endpoint. Filing fields
// arrive as parallel arrays indexed by filing.
type submissionJSON struct {
	CIK            json.Number   `json:"cik"`
	EntityType     string        `json:"entityType"`
	SIC            string        `json:"sic"`
	SICDescription string        `json:"sicDescription"`
	Name           string        `json:"name"`
	Tickers        []string      `json:"tickers"`
	Exchanges      []string      `json:"exchanges"`
	EIN            string        `json:"ein"`
	FiscalYearEnd  string        `json:"fiscalYearEnd"`
	StateOfInc     string        `json:"stateOfIncorporation"`
	Phone          string        `json:"phone"`
	Filings        recentFilings `json:"filings"`
}

type recentFilings struct {
	Recent filingList `json:"recent"`
}

type filingList struct {
	AccessionNumber []string `json:"accessionNumber"`
	FilingDate      []string `json:"filingDate"`
	Form            []string `json:"form"`
	PrimaryDoc      []string `json:"primaryDocument"`
}

// parseSubmissions decodes a submissions payload into entity metadata and
// a filings summary. The caller supplies the zero-padded CIK; the payload
// carries it unpadded.
func parseSubmissions(data []byte, cik string) (*model.EntityMetadata, *model.FilingsSummary, error) {
	var sub submissionJSON
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, nil, eris.Wrap(err, "edgar: parse submissions")
	}

	meta := &model.EntityMetadata{
		CIK:                  cik,
		EntityName:           sub.Name,
		EntityType:           sub.EntityType,
		SICCode:              sub.SIC,
		SICDescription:       sub.SICDescription,
		Tickers:              sub.Tickers,
		Exchanges:            sub.Exchanges,
		EIN:                  sub.EIN,
		FiscalYearEnd:        sub.FiscalYearEnd,
		StateOfIncorporation: sub.StateOfInc,
		Phone:                sub.Phone,
	}

	return meta, summarizeFilings(sub.Filings.Recent), nil
}

func summarizeFilings(fl filingList) *model.FilingsSummary {
	sum := &model.FilingsSummary{}

	n := len(fl.Form)
	if n > recentFilingsCap {
		n = recentFilingsCap
	}
	for i := 0; i < n; i++ {
		f := model.Filing{FormType: fl.Form[i]}
		if i < len(fl.AccessionNumber) {
			f.AccessionNumber = fl.AccessionNumber[i]
		}
		if i < len(fl.FilingDate) {
			f.FilingDate = fl.FilingDate[i]
		}
		if i < len(fl.PrimaryDoc) {
			f.PrimaryDocument = fl.PrimaryDoc[i]
		}
		sum.RecentFilings = append(sum.RecentFilings, f)
	}

	for _, form := range fl.Form {
		switch form {
		case "10-K":
			sum.Count10K++
		case "10-Q":
			sum.Count10Q++
		case "8-K":
			sum.Count8K++
		}
	}

	if len(fl.FilingDate) > 0 {
		sum.LastFilingDate = fl.FilingDate[0]
	}
	return sum
}
