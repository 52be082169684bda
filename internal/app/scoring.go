package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"review_analysis/internal/adapters/observability"
	"review_analysis/internal/domain"
)

type Scorer struct {
	analyzer domain.SentimentAnalyzer
	workers  int
}

func NewScorer(a domain.SentimentAnalyzer, workers int) *Scorer {
	if workers <= 0 {
		workers = 1
	}
	return &Scorer{analyzer: a, workers: workers}
}

// Score returns a copy of rs where every review the analyzer accepted carries its
// normalized score. Failed reviews keep a nil score; output order equals input order.
func (s *Scorer) Score(ctx context.Context, rs []domain.Review) []domain.Review {
	out := make([]domain.Review, len(rs))
	copy(out, rs)
	for i := range out {
		out[i].SentimentScore = nil
	}

	sem := semaphore.NewWeighted(int64(s.workers))
	var wg sync.WaitGroup

	for i := range out {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Warn().Err(err).Int("unscored", len(out)-i).Msg("scoring interrupted")
			break
		}

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer sem.Release(1)

			sent, err := s.analyzer.AnalyzeSentiment(ctx, out[i].Text)
			if err != nil {
				observability.ObserveScored(false)
				log.Warn().Err(err).
					Int("row", i).
					Str("area", out[i].AreaAziendale).
					Str("text", observability.Preview(out[i].Text, 80)).
					Msg("sentiment failed, review excluded")
				return
			}
			v := sent.Normalized()
			out[i].SentimentScore = &v
			observability.ObserveScored(true)
		}(i)
	}

	wg.Wait()
	return out
}

// Scored counts reviews carrying a score.
func Scored(rs []domain.Review) int {
	n := 0
	for _, r := range rs {
		if r.SentimentScore != nil {
			n++
		}
	}
	return n
}
