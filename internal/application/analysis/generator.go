package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	domain "github.com/clientproof/backend/internal/domain/analysis"
	domai "github.com/clientproof/backend/internal/domain/ai"
	"github.com/clientproof/backend/internal/infra/ai/prompt"
)

// MinConversationChars is the minimum accepted transcript length.
const MinConversationChars = 20

const (
	freeMaxTokens = 300
	fullMaxTokens = 2000

	freeTemperature = 0.3
	fullTemperature = 0.4
)

// Generator turns a raw transcript into the free teaser or the full report
// by delegating to the completion service with tier-specific instructions.
// It performs no retries; upstream failures propagate to the caller.
type Generator struct {
	Client  domai.Client
	Timeout time.Duration
}

func NewGenerator(client domai.Client, timeout time.Duration) *Generator {
	return &Generator{Client: client, Timeout: timeout}
}

func (g *Generator) GenerateFree(ctx context.Context, conversation string) (*domain.FreeAnalysis, error) {
	if strings.TrimSpace(conversation) == "" {
		return nil, fmt.Errorf("%w: empty conversation", domain.ErrInvalidInput)
	}
	ctx, cancel := g.bound(ctx)
	defer cancel()

	raw, err := g.Client.Complete(ctx, domai.CompletionRequest{
		System:      prompt.FreeSystemPrompt(),
		User:        conversation,
		Temperature: freeTemperature,
		MaxTokens:   freeMaxTokens,
	})
	if err != nil {
		return nil, err
	}

	var free domain.FreeAnalysis
	if err := decodeObject(raw, &free); err != nil {
		return nil, err
	}
	if free.Summary == "" {
		return nil, fmt.Errorf("%w: missing summary", domai.ErrMalformed)
	}
	free.Score = domain.ClampScore(free.Score)
	free.RiskLevel = domain.NormalizeLevel(free.RiskLevel, free.Score)
	return &free, nil
}

func (g *Generator) GenerateFull(ctx context.Context, conversation string) (*domain.FullAnalysis, error) {
	if strings.TrimSpace(conversation) == "" {
		return nil, fmt.Errorf("%w: empty conversation", domain.ErrInvalidInput)
	}
	ctx, cancel := g.bound(ctx)
	defer cancel()

	raw, err := g.Client.Complete(ctx, domai.CompletionRequest{
		System:      prompt.FullSystemPrompt(),
		User:        conversation,
		Temperature: fullTemperature,
		MaxTokens:   fullMaxTokens,
	})
	if err != nil {
		return nil, err
	}

	// Best-effort decode only; consumers must treat every list field as
	// possibly absent or empty.
	var full domain.FullAnalysis
	if err := decodeObject(raw, &full); err != nil {
		return nil, err
	}
	full.Score = domain.ClampScore(full.Score)
	full.RiskLevel = domain.NormalizeLevel(full.RiskLevel, full.Score)
	return &full, nil
}

func (g *Generator) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, g.Timeout)
}
