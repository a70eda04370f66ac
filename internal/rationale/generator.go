// Package rationale asks a text-generation model why a profile matches a query.
package rationale

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/roommatch/matcher/internal/apperrors"
	"github.com/roommatch/matcher/internal/models"
)

// DefaultTimeout bounds a single generation call.
const DefaultTimeout = 20 * time.Second

// ErrEmptyResponse is returned when the model answers with no text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// TextGenerator is the provider-side generate(prompt) call.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Generator produces one rationale per (query, profile) pair. It makes exactly
// one attempt per call; retry policy belongs to the caller.
type Generator struct {
	client  TextGenerator
	timeout time.Duration
	limiter *rate.Limiter
	logger  *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithTimeout sets the per-call deadline. Non-positive values disable it.
func WithTimeout(d time.Duration) Option {
	return func(g *Generator) {
		g.timeout = d
	}
}

// WithRateLimit caps generation calls to perSecond across all callers of this
// Generator. Non-positive values disable the limit.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(g *Generator) {
		if perSecond <= 0 {
			g.limiter = nil

			return
		}

		g.limiter = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
	}
}

// WithLogger sets the logger used for per-call debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGenerator creates a Generator over client.
func NewGenerator(client TextGenerator, opts ...Option) *Generator {
	g := &Generator{
		client:  client,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Generate returns a one-line rationale for profile. Every failure (transport,
// timeout, rate-limit wait, empty answer) is a *apperrors.GenerationError.
func (g *Generator) Generate(ctx context.Context, query string, profile models.Profile) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", apperrors.NewGenerationError(profile.ID, fmt.Errorf("rate limit wait: %w", err))
		}
	}

	start := time.Now()

	text, err := g.client.Generate(ctx, BuildPrompt(query, profile))
	if err != nil {
		return "", apperrors.NewGenerationError(profile.ID, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperrors.NewGenerationError(profile.ID, ErrEmptyResponse)
	}

	g.logger.DebugContext(ctx, "rationale generated",
		"profile_id", profile.ID,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return text, nil
}

// BuildPrompt renders the generation prompt. The output depends only on the
// query and the profile's raw text.
func BuildPrompt(query string, profile models.Profile) string {
	var b strings.Builder

	b.WriteString("\nUser is looking for: \"")
	b.WriteString(query)
	b.WriteString("\"\nProfile (room/ad): \"")
	b.WriteString(profile.RawProfileText)
	b.WriteString("\"\nExplain in one line why this ad/room along with roommate is a good match for the user's requirement.\n")

	return b.String()
}
