package resolve

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// directoryEntry mirrors one record of the SEC company_tickers.json file.
type directoryEntry struct {
	CIK    int    `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

// Directory is the in-memory index over the SEC ticker file: ticker to
// CIK, CIK to ticker and name, and normalized name to CIK.
type Directory struct {
	tickerToCIK map[string]string
	cikToTicker map[string]string
	cikToName   map[string]string
	normToCIK   map[string]string
}

// ParseDirectory builds a Directory from raw company_tickers.json bytes.
// The file is a JSON object keyed by row index.
func ParseDirectory(data []byte) (*Directory, error) {
	var raw map[string]directoryEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "resolve: parse ticker directory")
	}

	d := &Directory{
		tickerToCIK: make(map[string]string, len(raw)),
		cikToTicker: make(map[string]string, len(raw)),
		cikToName:   make(map[string]string, len(raw)),
		normToCIK:   make(map[string]string, len(raw)),
	}
	// Walk rows in file order so the primary listing per CIK is stable.
	// The object is keyed by numeric row index.
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, _ := strconv.Atoi(keys[i])
		b, _ := strconv.Atoi(keys[j])
		return a < b
	})

	for _, k := range keys {
		e := raw[k]
		ticker := strings.ToUpper(e.Ticker)
		cik := PadCIK(fmt.Sprintf("%d", e.CIK))

		d.tickerToCIK[ticker] = cik
		// The first ticker listed for a CIK is the primary listing.
		if _, ok := d.cikToTicker[cik]; !ok {
			d.cikToTicker[cik] = ticker
		}
		d.cikToName[cik] = e.Title
		if norm := NormalizeName(e.Title); norm != "" {
			d.normToCIK[norm] = cik
		}
	}
	return d, nil
}

// Len returns the number of distinct tickers indexed.
func (d *Directory) Len() int {
	return len(d.tickerToCIK)
}

// PadCIK left-pads a CIK to the canonical 10-digit form.
func PadCIK(cik string) string {
	cik = strings.TrimSpace(cik)
	if len(cik) >= 10 {
		return cik
	}
	return strings.Repeat("0", 10-len(cik)) + cik
}
