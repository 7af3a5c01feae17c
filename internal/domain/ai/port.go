package ai

import "context"

// CompletionRequest carries one system instruction plus the user transcript.
type CompletionRequest struct {
	System      string
	User        string
	Temperature float32
	MaxTokens   int
}

type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
