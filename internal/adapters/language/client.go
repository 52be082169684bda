package language

import (
	"context"
	"fmt"
	"time"

	language "cloud.google.com/go/language/apiv1"
	"cloud.google.com/go/language/apiv1/languagepb"
	gax "github.com/googleapis/gax-go/v2"
	"github.com/googleapis/gax-go/v2/apierror"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"review_analysis/internal/adapters/observability"
	"review_analysis/internal/domain"
)

const service = "language"

// languageAPI is the slice of the generated client we use.
type languageAPI interface {
	AnalyzeSentiment(ctx context.Context, req *languagepb.AnalyzeSentimentRequest, opts ...gax.CallOption) (*languagepb.AnalyzeSentimentResponse, error)
	Close() error
}

type Config struct {
	CredentialsPath string
	RPS             int
	Timeout         time.Duration // per call
}

type Client struct {
	api     languageAPI
	rl      *rate.Limiter
	timeout time.Duration
}

// New dials Cloud Natural Language with the service account file at cfg.CredentialsPath.
func New(ctx context.Context, cfg Config) (*Client, error) {
	api, err := language.NewClient(ctx, option.WithCredentialsFile(cfg.CredentialsPath))
	if err != nil {
		return nil, fmt.Errorf("language client: %w", err)
	}
	return newWithAPI(api, cfg), nil
}

func newWithAPI(api languageAPI, cfg Config) *Client {
	if cfg.RPS <= 0 {
		cfg.RPS = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		api:     api,
		rl:      rate.NewLimiter(rate.Limit(cfg.RPS), cfg.RPS),
		timeout: cfg.Timeout,
	}
}

func (c *Client) Close() error { return c.api.Close() }

// AnalyzeSentiment returns the document-level sentiment of text. Empty text is sent as is.
func (c *Client) AnalyzeSentiment(ctx context.Context, text string) (domain.Sentiment, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return domain.Sentiment{}, &domain.ExternalAPIError{Service: service, Err: err}
	}
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.api.AnalyzeSentiment(cctx, &languagepb.AnalyzeSentimentRequest{
		Document: &languagepb.Document{
			Source: &languagepb.Document_Content{Content: text},
			Type:   languagepb.Document_PLAIN_TEXT,
		},
		EncodingType: languagepb.EncodingType_UTF8,
	})
	if err != nil {
		apiErr := toAPIError(err)
		observability.ObserveExternal(service, "analyzeSentiment", apiErr.StatusCode, time.Since(start))
		return domain.Sentiment{}, apiErr
	}
	observability.ObserveExternal(service, "analyzeSentiment", 200, time.Since(start))

	ds := resp.GetDocumentSentiment()
	if ds == nil {
		return domain.Sentiment{}, &domain.ExternalAPIError{Service: service, Err: fmt.Errorf("response without document sentiment")}
	}
	s := domain.Sentiment{Score: float64(ds.GetScore()), Magnitude: float64(ds.GetMagnitude())}
	log.Debug().Float64("score", s.Score).Float64("magnitude", s.Magnitude).Msg("sentiment")
	return s, nil
}

func toAPIError(err error) *domain.ExternalAPIError {
	out := &domain.ExternalAPIError{Service: service, Err: err}
	if ae, ok := apierror.FromError(err); ok {
		if code := ae.HTTPCode(); code > 0 {
			out.StatusCode = code
		}
		out.Body = ae.Reason()
	}
	return out
}
