package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	domai "github.com/clientproof/backend/internal/domain/ai"
)

type Client struct {
	*openai.Client
	Model string
}

func NewClient(apiKey, model string) *Client {
	return &Client{Client: openai.NewClient(apiKey), Model: model}
}

func (c *Client) Complete(ctx context.Context, req domai.CompletionRequest) (string, error) {
	model := c.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	creq := openai.ChatCompletionRequest{
		Model:       model,
		Temperature: req.Temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
		creq.MaxCompletionTokens = req.MaxTokens
	} else {
		creq.MaxTokens = req.MaxTokens
	}

	resp, err := c.CreateChatCompletion(ctx, creq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domai.ErrUpstream, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices", domai.ErrUpstream)
	}
	return resp.Choices[0].Message.Content, nil
}
