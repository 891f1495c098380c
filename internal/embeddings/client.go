package embeddings

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/hirelens/hirelens/internal/utils"
)

const (
	// Rough token budget for a single embedding input, approximated at
	// four characters per token.
	tokenBudget   = 8000
	charsPerToken = 4
	maxInputChars = tokenBudget * charsPerToken

	// Fraction of the budget after which a whitespace cut is acceptable.
	truncateBoundaryFraction = 0.8
)

// Result is one embedded text.
type Result struct {
	Vector     []float32
	Model      string
	Dimensions int
}

// Client wraps a Provider with input truncation, transient-error retry and
// a circuit breaker. One Client instance owns one breaker; concurrent
// callers share its state.
type Client struct {
	provider Provider
	breaker  *Breaker
	retry    RetryConfig
	log      *logrus.Logger
}

func NewClient(provider Provider, log *logrus.Logger) *Client {
	return &Client{
		provider: provider,
		breaker:  NewBreaker(),
		retry:    DefaultRetryConfig(),
		log:      log,
	}
}

// Embed generates a vector for text, truncating oversized input first.
func (c *Client) Embed(ctx context.Context, text string) (*Result, error) {
	const op = "EmbeddingClient.Embed"

	if text == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "text is required", nil)
	}
	input := Truncate(text, maxInputChars)
	if len(input) < len(text) {
		c.log.WithFields(logrus.Fields{
			"original_chars":  len(text),
			"truncated_chars": len(input),
		}).Debug("embedding input truncated")
	}

	var vec []float32
	err := withRetry(ctx, c.retry, func() error {
		return c.breaker.Do(func() error {
			var callErr error
			vec, callErr = c.provider.Embed(ctx, input)
			return callErr
		})
	})
	if err != nil {
		if errors.Is(err, ErrCircuitOpen) {
			return nil, utils.E(utils.CodeCircuitOpen, op, "embedding provider circuit is open", err)
		}
		if isTransient(err) {
			return nil, utils.E(utils.CodeUnavailable, op, "embedding provider unavailable", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "embedding call failed", err)
	}

	return &Result{
		Vector:     vec,
		Model:      c.provider.Model(),
		Dimensions: len(vec),
	}, nil
}

// VectorAdapter exposes the client to callers that only want the raw
// vector, such as the taxonomy matcher's semantic step. Calls still go
// through truncation, retry and the breaker.
type VectorAdapter struct {
	Client *Client
}

func (a VectorAdapter) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := a.Client.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return res.Vector, nil
}

// Truncate cuts text to at most maxChars characters, preferring the last
// whitespace boundary after truncateBoundaryFraction of the limit.
func Truncate(text string, maxChars int) string {
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}

	floor := int(truncateBoundaryFraction * float64(maxChars))
	cut := maxChars
	for i := maxChars - 1; i >= floor; i-- {
		if runes[i] == ' ' || runes[i] == '\n' || runes[i] == '\t' {
			cut = i
			break
		}
	}
	return string(runes[:cut])
}
