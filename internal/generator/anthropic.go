package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultAnthropicModel = "claude-sonnet-4-5"
	anthropicMaxTokens    = 1024
)

// AnthropicText implements TextModel with the Messages API.
type AnthropicText struct {
	client anthropic.Client
	model  string
}

// NewAnthropicText creates an AnthropicText. An empty model selects the
// default.
func NewAnthropicText(apiKey, model string, opts ...option.RequestOption) *AnthropicText {
	if model == "" {
		model = defaultAnthropicModel
	}
	return &AnthropicText{
		client: anthropic.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...),
		model:  model,
	}
}

func (m *AnthropicText) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := m.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(m.model),
		MaxTokens: anthropicMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("create message: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if t, ok := block.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(t.Text)
		}
	}
	if b.Len() == 0 {
		return "", errors.New("create message: no text in response")
	}
	return b.String(), nil
}
