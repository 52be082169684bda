package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"review_analysis/internal/domain"
)

// NoMatchingReviewsAnswer is returned without calling the model when the filtered set is empty.
const NoMatchingReviewsAnswer = "There are no reviews matching the selected filters. Please try different filters."

const (
	samplesPerArea = 3
	sampleRunes    = 300
)

var (
	freeFormConfig = domain.GenerationConfig{Temperature: 0.7, TopK: ptr(40), TopP: ptr(0.95), MaxOutputTokens: 800}
	documentConfig = domain.GenerationConfig{Temperature: 0.4, TopK: ptr(40), TopP: ptr(0.95), MaxOutputTokens: 1000}
)

type DocumentQuestion struct {
	Question string
	Filter   domain.Filter
}

type QuestionService struct {
	gen   domain.Generator
	store domain.SessionStore
}

func NewQuestionService(g domain.Generator, s domain.SessionStore) *QuestionService {
	return &QuestionService{gen: g, store: s}
}

// Ask forwards a free-form question with no document context.
func (q *QuestionService) Ask(ctx context.Context, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", domain.ErrEmptyQuestion
	}
	log.Info().Str("question", question).Msg("free-form question")
	return q.generate(ctx, question, freeFormConfig)
}

// AskDocument answers a question grounded on the session's reviews, narrowed by the filter.
func (q *QuestionService) AskDocument(ctx context.Context, sessionID string, dq DocumentQuestion) (string, error) {
	if strings.TrimSpace(dq.Question) == "" {
		return "", domain.ErrEmptyQuestion
	}
	set, ok, err := q.store.Get(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return "", domain.ErrNoData
	}

	rs := dq.Filter.Apply(set.Reviews)
	if len(rs) == 0 {
		return NoMatchingReviewsAnswer, nil
	}

	prompt := fmt.Sprintf("Sei un analista esperto di recensioni dipendenti. "+
		"Basandoti sul seguente dataset di recensioni dipendenti, per favore rispondi a questa domanda: \"%s\"\n\n%s",
		dq.Question, DocumentContext(rs))
	log.Info().Int("reviews", len(rs)).Msg("document question")
	return q.generate(ctx, prompt, documentConfig)
}

func (q *QuestionService) generate(ctx context.Context, prompt string, cfg domain.GenerationConfig) (string, error) {
	answer, err := q.gen.Generate(ctx, prompt, cfg)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(answer) == "" {
		return "", domain.ErrNoAnswer
	}
	return answer, nil
}

// DocumentContext describes a review set for the model: counts, departments,
// demographics and a few truncated samples per department.
func DocumentContext(rs []domain.Review) string {
	var sb strings.Builder
	areas := domain.DistinctAreas(rs)
	d := domain.CountDemographics(rs)

	fmt.Fprintf(&sb, "Document Context: Analysis of %d employee reviews.\n", len(rs))
	fmt.Fprintf(&sb, "Departments covered: %s.\n", strings.Join(areas, ", "))
	fmt.Fprintf(&sb, "Demographics: %d employees over 35 years old, %d under 35 years old.\n", d.Over35, d.Under35)
	fmt.Fprintf(&sb, "Experience levels: %d with over 10 years experience, %d with under 10 years.\n", d.SeniorExp, d.JuniorExp)
	sb.WriteString("\nReview samples:\n")

	for _, area := range areas {
		samples := domain.ByArea(rs, area)
		if len(samples) > samplesPerArea {
			samples = samples[:samplesPerArea]
		}
		for _, r := range samples {
			fmt.Fprintf(&sb, "- Department: %s, Age: %s, Experience: %s\n", r.AreaAziendale, r.EtaAnagrafica, r.AnzianitaLavorativa)
			fmt.Fprintf(&sb, "  Review: %s...\n\n", truncate(r.Text, sampleRunes))
		}
	}
	return sb.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func ptr[T any](v T) *T { return &v }
