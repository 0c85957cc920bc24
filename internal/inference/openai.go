package inference

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/lazypower/affect/internal/affect"
)

// OpenAI rates text through the Chat Completions API. A non-empty base URL
// points it at any OpenAI-compatible server.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates a new OpenAI predictor.
func NewOpenAI(apiKey, baseURL, model string) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAI{client: &client, model: model}
}

// Predict asks the model for a JSON reading of text.
func (o *OpenAI) Predict(ctx context.Context, text string) (affect.Coordinate, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(o.model),
		Temperature: openai.Float(0),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(dialogue(text)),
		},
	})
	if err != nil {
		return affect.Coordinate{}, fmt.Errorf("openai api: %w", err)
	}
	if len(resp.Choices) == 0 {
		return affect.Coordinate{}, fmt.Errorf("openai api: no choices returned")
	}
	return parseReading(resp.Choices[0].Message.Content)
}
