package domain

import (
	"context"
	"time"
)

type SentimentAnalyzer interface {
	AnalyzeSentiment(ctx context.Context, text string) (Sentiment, error)
}

// GenerationConfig mirrors the generationConfig block of the generation API.
// Nil TopK/TopP are omitted from the request.
type GenerationConfig struct {
	Temperature     float64
	TopK            *int
	TopP            *float64
	MaxOutputTokens int
	// MaxRetryTime overrides the client's retry window. Negative means a single attempt.
	MaxRetryTime time.Duration
}

type Generator interface {
	// Generate returns the first candidate's first text part, "" when there is none.
	Generate(ctx context.Context, prompt string, cfg GenerationConfig) (string, error)
}

type SessionStore interface {
	Get(ctx context.Context, sessionID string) (ReviewSet, bool, error)
	Put(ctx context.Context, sessionID string, set ReviewSet) error
}

// Narrative is the generated analysis of an aggregate.
type Narrative struct {
	OverallAverage float64         `json:"overallAverage"`
	Overall        string          `json:"overall"`
	Areas          []AreaNarrative `json:"areas"`
}

type AreaNarrative struct {
	Area         string       `json:"area"`
	Average      float64      `json:"average"`
	Count        int          `json:"count"`
	Demographics Demographics `json:"demographics"`
	Analysis     string       `json:"analysis"`
}
