package domain

import "sort"

type AreaScores struct {
	Area   string    `json:"area"`
	Scores []float64 `json:"scores"`
}

func (a AreaScores) Average() float64 { return mean(a.Scores) }

// Aggregate groups normalized scores per area. Areas keep first-encounter order.
type Aggregate struct {
	Areas []AreaScores `json:"areas"`
}

// AggregateReviews groups scored reviews by area. Reviews without an area or a score are skipped.
func AggregateReviews(rs []Review) Aggregate {
	idx := make(map[string]int, 8)
	var agg Aggregate
	for _, r := range rs {
		if r.AreaAziendale == "" || r.SentimentScore == nil {
			continue
		}
		i, ok := idx[r.AreaAziendale]
		if !ok {
			i = len(agg.Areas)
			idx[r.AreaAziendale] = i
			agg.Areas = append(agg.Areas, AreaScores{Area: r.AreaAziendale})
		}
		agg.Areas[i].Scores = append(agg.Areas[i].Scores, *r.SentimentScore)
	}
	return agg
}

func (g Aggregate) Empty() bool { return len(g.Areas) == 0 }

// Overall is the mean of every score across all areas, weighted by review count.
func (g Aggregate) Overall() float64 {
	var all []float64
	for _, a := range g.Areas {
		all = append(all, a.Scores...)
	}
	return mean(all)
}

func (g Aggregate) Count() int {
	n := 0
	for _, a := range g.Areas {
		n += len(a.Scores)
	}
	return n
}

// Ranked returns areas by descending average; ties keep encounter order.
func (g Aggregate) Ranked() []AreaScores {
	out := make([]AreaScores, len(g.Areas))
	copy(out, g.Areas)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Average() > out[j].Average() })
	return out
}

func (g Aggregate) Categories() []string {
	out := make([]string, 0, len(g.Areas))
	for _, a := range g.Areas {
		out = append(out, a.Area)
	}
	return out
}

func (g Aggregate) ChartData() []float64 {
	out := make([]float64, 0, len(g.Areas))
	for _, a := range g.Areas {
		out = append(out, a.Average())
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
