package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"review_analysis/internal/domain"
)

// NoMatchingReviewsMessage accompanies a FilterResult without data.
const NoMatchingReviewsMessage = "No matching reviews"

const sessionWriteTimeout = 10 * time.Second

// ParseFunc turns an uploaded workbook into reviews.
type ParseFunc func(io.Reader) ([]domain.Review, error)

type AnalysisService struct {
	parse    ParseFunc
	scorer   *Scorer
	narrator *Narrator
	store    domain.SessionStore
	now      func() time.Time
}

func NewAnalysisService(parse ParseFunc, sc *Scorer, n *Narrator, store domain.SessionStore) *AnalysisService {
	return &AnalysisService{parse: parse, scorer: sc, narrator: n, store: store, now: time.Now}
}

type AnalysisResult struct {
	Aggregate   domain.Aggregate     `json:"aggregate"`
	Narrative   domain.Narrative     `json:"narrative"`
	Options     domain.FilterOptions `json:"options"`
	ReviewCount int                  `json:"reviewCount"`
	ScoredCount int                  `json:"scoredCount"`
	NoData      bool                 `json:"noData"`
}

type FilterResult struct {
	Aggregate domain.Aggregate `json:"aggregate"`
	Narrative domain.Narrative `json:"narrative"`
	NoData    bool             `json:"noData"`
	Message   string           `json:"message,omitempty"`
}

// Analyze runs the whole pipeline over one upload and caches the scored set under sessionID.
// Only a parse failure is returned as an error.
func (s *AnalysisService) Analyze(ctx context.Context, sessionID string, r io.Reader) (AnalysisResult, error) {
	reviews, err := s.parse(r)
	if err != nil {
		return AnalysisResult{}, err
	}
	log.Info().Str("session", sessionID).Int("reviews", len(reviews)).Msg("upload parsed")

	scored := s.scorer.Score(ctx, reviews)
	agg := domain.AggregateReviews(scored)

	res := AnalysisResult{
		Aggregate:   agg,
		Options:     domain.OptionsOf(scored),
		ReviewCount: len(scored),
		ScoredCount: Scored(scored),
		NoData:      agg.Empty(),
	}
	if !agg.Empty() {
		res.Narrative = s.narrator.Generate(ctx, agg, scored)
	}

	// the write must outlive a request that timed out while narrating
	putCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sessionWriteTimeout)
	defer cancel()
	set := domain.ReviewSet{Reviews: scored, CreatedAt: s.now().UTC()}
	if err := s.store.Put(putCtx, sessionID, set); err != nil {
		// the user still gets the analysis; follow-up filters will report no data
		log.Error().Err(err).Str("session", sessionID).Msg("session put failed")
	}

	log.Info().
		Str("session", sessionID).
		Int("scored", res.ScoredCount).
		Int("areas", len(agg.Areas)).
		Float64("overall", agg.Overall()).
		Msg("analysis completed")
	return res, nil
}

// Filter re-aggregates the cached set of a session. A missing set is domain.ErrNoData;
// an empty subset is a FilterResult with NoData and no generation calls.
func (s *AnalysisService) Filter(ctx context.Context, sessionID string, f domain.Filter) (FilterResult, error) {
	set, ok, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return FilterResult{}, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return FilterResult{}, domain.ErrNoData
	}

	rs := f.Apply(set.Reviews)
	agg := domain.AggregateReviews(rs)
	if agg.Empty() {
		return FilterResult{Aggregate: agg, NoData: true, Message: NoMatchingReviewsMessage}, nil
	}
	return FilterResult{Aggregate: agg, Narrative: s.narrator.Generate(ctx, agg, rs)}, nil
}
