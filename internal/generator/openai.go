package generator

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Default model names.
const (
	DefaultTextModel  = "gpt-4o-mini"
	DefaultImageModel = openai.ImageModelDallE3
)

// OpenAIConfig configures the OpenAI clients. BaseURL selects a compatible
// gateway instead of api.openai.com.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

func (c OpenAIConfig) options() []option.RequestOption {
	opts := []option.RequestOption{option.WithAPIKey(c.APIKey)}
	if c.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(c.BaseURL))
	}
	return opts
}

// OpenAIText implements TextModel with chat completions.
type OpenAIText struct {
	client openai.Client
	model  string
}

// NewOpenAIText creates an OpenAIText.
func NewOpenAIText(cfg OpenAIConfig, opts ...option.RequestOption) *OpenAIText {
	model := cfg.Model
	if model == "" {
		model = DefaultTextModel
	}
	return &OpenAIText{
		client: openai.NewClient(append(cfg.options(), opts...)...),
		model:  model,
	}
}

func (m *OpenAIText) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := m.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    m.model,
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// OpenAIImage implements ImageModel with the images API.
type OpenAIImage struct {
	client openai.Client
	model  openai.ImageModel
}

// NewOpenAIImage creates an OpenAIImage.
func NewOpenAIImage(cfg OpenAIConfig, opts ...option.RequestOption) *OpenAIImage {
	model := openai.ImageModel(cfg.Model)
	if model == "" {
		model = DefaultImageModel
	}
	return &OpenAIImage{
		client: openai.NewClient(append(cfg.options(), opts...)...),
		model:  model,
	}
}

func (m *OpenAIImage) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := m.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          m.model,
		N:              openai.Int(1),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatURL,
	})
	if err != nil {
		return "", fmt.Errorf("image generation: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", errors.New("image generation: no image url")
	}
	return resp.Data[0].URL, nil
}
