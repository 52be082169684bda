package domain

// Filter holds optional exact-match criteria. An empty field is unset.
type Filter struct {
	Area      string `json:"area"`
	Anzianita string `json:"anzianita"`
	Eta       string `json:"eta"`
}

func (f Filter) IsZero() bool { return f == Filter{} }

func (f Filter) Match(r Review) bool {
	if f.Area != "" && r.AreaAziendale != f.Area {
		return false
	}
	if f.Anzianita != "" && r.AnzianitaLavorativa != f.Anzianita {
		return false
	}
	if f.Eta != "" && r.EtaAnagrafica != f.Eta {
		return false
	}
	return true
}

// Apply returns the matching reviews in a new slice; the input is never modified.
func (f Filter) Apply(rs []Review) []Review {
	out := make([]Review, 0, len(rs))
	for _, r := range rs {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}
