package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"review_analysis/internal/domain"
)

// Fallback texts shown in place of a generated analysis.
const (
	NoAnalysisText       = "Nessuna analisi disponibile."
	NotConfiguredText    = "API key non configurata. Impossibile generare analisi."
	AnalysisFailedText   = "Errore durante l'analisi."
	ProcessingFailedText = "Errore durante l'elaborazione dell'analisi."
)

// Narrative calls get a single attempt; a failure becomes a fallback text.
var narrativeConfig = domain.GenerationConfig{Temperature: 0.4, MaxOutputTokens: 500, MaxRetryTime: -1}

// NarrativeLimits bounds how many review texts go into each prompt and how long
// one Generate may spend on all of its calls.
type NarrativeLimits struct {
	OverallReviews int
	AreaReviews    int
	Budget         time.Duration
}

func DefaultNarrativeLimits() NarrativeLimits {
	return NarrativeLimits{OverallReviews: 10, AreaReviews: 5, Budget: 90 * time.Second}
}

type Narrator struct {
	gen    domain.Generator
	limits NarrativeLimits
}

func NewNarrator(g domain.Generator, limits NarrativeLimits) *Narrator {
	d := DefaultNarrativeLimits()
	if limits.OverallReviews <= 0 {
		limits.OverallReviews = d.OverallReviews
	}
	if limits.AreaReviews <= 0 {
		limits.AreaReviews = d.AreaReviews
	}
	if limits.Budget <= 0 {
		limits.Budget = d.Budget
	}
	return &Narrator{gen: g, limits: limits}
}

// Generate builds the overall analysis and one analysis per area, areas ranked by
// descending average. Generation failures become fallback texts and never an error.
// Calls still pending when the budget runs out get ProcessingFailedText.
func (n *Narrator) Generate(ctx context.Context, agg domain.Aggregate, rs []domain.Review) domain.Narrative {
	ctx, cancel := context.WithTimeout(ctx, n.limits.Budget)
	defer cancel()

	overall := agg.Overall()
	out := domain.Narrative{OverallAverage: overall}

	out.Overall = n.ask(ctx, "overall", overallPrompt(overall, texts(rs, n.limits.OverallReviews)))

	for _, a := range agg.Ranked() {
		areaReviews := domain.ByArea(rs, a.Area)
		demo := domain.CountDemographics(areaReviews)
		avg := a.Average()

		out.Areas = append(out.Areas, domain.AreaNarrative{
			Area:         a.Area,
			Average:      avg,
			Count:        len(a.Scores),
			Demographics: demo,
			Analysis:     n.ask(ctx, a.Area, areaPrompt(a.Area, avg, demo, texts(areaReviews, n.limits.AreaReviews))),
		})
	}
	return out
}

func (n *Narrator) ask(ctx context.Context, scope, prompt string) string {
	if err := ctx.Err(); err != nil {
		log.Warn().Err(err).Str("scope", scope).Msg("narrative budget exhausted")
		return ProcessingFailedText
	}
	text, err := n.gen.Generate(ctx, prompt, narrativeConfig)
	if err == nil {
		if strings.TrimSpace(text) == "" {
			return NoAnalysisText
		}
		return text
	}
	if errors.Is(err, domain.ErrNotConfigured) {
		return NotConfiguredText
	}

	var apiErr *domain.ExternalAPIError
	if errors.As(err, &apiErr) && apiErr.StatusCode != 0 {
		log.Error().Err(err).Str("scope", scope).Int("status", apiErr.StatusCode).Msg("narrative generation failed")
		return AnalysisFailedText
	}
	log.Error().Err(err).Str("scope", scope).Msg("narrative processing failed")
	return ProcessingFailedText
}

func overallPrompt(avg float64, texts []string) string {
	return fmt.Sprintf("Analyze the following employee reviews. The average sentiment score is %s. "+
		"Provide a concise summary in Italian highlighting key patterns, sentiment, and actionable recommendations. Reviews: %s",
		percent(avg), strings.Join(texts, " "))
}

func areaPrompt(area string, avg float64, d domain.Demographics, texts []string) string {
	return fmt.Sprintf("Analyze these employee reviews for the '%s' area. The sentiment score is %s. "+
		"Demographics: %d are over 35 years old, %d are under 35. "+
		"%d have over 10 years experience, %d have less than 10 years. "+
		"Provide a concise analysis in Italian with actionable insights. Reviews: %s",
		area, percent(avg), d.Over35, d.Under35, d.SeniorExp, d.JuniorExp, strings.Join(texts, " "))
}

// percent renders a 0..1 value as a whole percentage, e.g. 0.6 -> "60%".
func percent(v float64) string { return fmt.Sprintf("%.0f%%", v*100) }

func texts(rs []domain.Review, limit int) []string {
	if len(rs) > limit {
		rs = rs[:limit]
	}
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.Text)
	}
	return out
}
