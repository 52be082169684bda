package domain

import (
	"sort"
	"strings"
	"time"
)

// Review is one parsed spreadsheet row.
type Review struct {
	Token               string   `json:"token"`
	Text                string   `json:"text"`
	AreaAziendale       string   `json:"areaAziendale"`
	AnzianitaLavorativa string   `json:"anzianitaLavorativa"`
	EtaAnagrafica       string   `json:"etaAnagrafica"`
	SentimentScore      *float64 `json:"sentimentScore,omitempty"` // normalized 0..1, nil when not scored
}

// ReviewSet is what a session holds between requests.
type ReviewSet struct {
	Reviews   []Review  `json:"reviews"`
	CreatedAt time.Time `json:"createdAt"`
}

// Clone returns a deep copy so callers can never mutate a stored set.
func (s ReviewSet) Clone() ReviewSet {
	out := ReviewSet{CreatedAt: s.CreatedAt}
	if n := len(s.Reviews); n > 0 {
		out.Reviews = make([]Review, n)
		copy(out.Reviews, s.Reviews)
		for i := range out.Reviews {
			if p := out.Reviews[i].SentimentScore; p != nil {
				v := *p
				out.Reviews[i].SentimentScore = &v
			}
		}
	}
	return out
}

// Sentiment is the raw document sentiment returned by the language service.
type Sentiment struct {
	Score     float64 // -1..1
	Magnitude float64 // >= 0
}

// Normalized maps Score onto 0..1.
func (s Sentiment) Normalized() float64 { return (s.Score + 1) / 2 }

// Bracket label fragments. Matching is by substring, the spreadsheets carry free-text labels.
const (
	AgeOver35       = "Oltre 35"
	AgeUnder35      = "Fino a 35"
	TenureOver10    = "Oltre 10"
	TenureUpTo10Yrs = "Fino a 10"
)

type Demographics struct {
	Over35    int `json:"over35"`
	Under35   int `json:"under35"`
	SeniorExp int `json:"seniorExp"`
	JuniorExp int `json:"juniorExp"`
}

func CountDemographics(rs []Review) Demographics {
	var d Demographics
	for _, r := range rs {
		if strings.Contains(r.EtaAnagrafica, AgeOver35) {
			d.Over35++
		}
		if strings.Contains(r.EtaAnagrafica, AgeUnder35) {
			d.Under35++
		}
		if strings.Contains(r.AnzianitaLavorativa, TenureOver10) {
			d.SeniorExp++
		}
		if strings.Contains(r.AnzianitaLavorativa, TenureUpTo10Yrs) {
			d.JuniorExp++
		}
	}
	return d
}

// FilterOptions feeds the dropdowns of the result view.
type FilterOptions struct {
	Areas     []string `json:"areas"`
	Anzianita []string `json:"anzianita"`
	Eta       []string `json:"eta"`
}

func OptionsOf(rs []Review) FilterOptions {
	return FilterOptions{
		Areas:     distinctSorted(rs, func(r Review) string { return r.AreaAziendale }),
		Anzianita: distinctSorted(rs, func(r Review) string { return r.AnzianitaLavorativa }),
		Eta:       distinctSorted(rs, func(r Review) string { return r.EtaAnagrafica }),
	}
}

func distinctSorted(rs []Review, field func(Review) string) []string {
	seen := make(map[string]struct{}, 8)
	out := []string{}
	for _, r := range rs {
		v := field(r)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// DistinctAreas returns areas in first-encounter order.
func DistinctAreas(rs []Review) []string {
	seen := make(map[string]struct{}, 8)
	var out []string
	for _, r := range rs {
		if _, ok := seen[r.AreaAziendale]; ok {
			continue
		}
		seen[r.AreaAziendale] = struct{}{}
		out = append(out, r.AreaAziendale)
	}
	return out
}

// ByArea returns the reviews of one area, row order preserved.
func ByArea(rs []Review, area string) []Review {
	var out []Review
	for _, r := range rs {
		if r.AreaAziendale == area {
			out = append(out, r)
		}
	}
	return out
}
