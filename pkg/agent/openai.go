package agent

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const defaultModel = "gpt-4o-mini"

// OpenAI completes prompts with the Chat Completions API of OpenAI or a compatible provider.
type OpenAI struct {
	client openai.Client
	model  string
}

func NewOpenAI(apiKey, baseURL, model string, opts ...option.RequestOption) *OpenAI {
	if model == "" {
		model = defaultModel
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}

	return &OpenAI{
		client: openai.NewClient(append(reqOpts, opts...)...),
		model:  model,
	}
}

func (o *OpenAI) Complete(ctx context.Context, profile Profile, prompt string) (string, error) {
	model := profile.Model
	if model == "" {
		model = o.model
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if profile.Instructions != "" {
		messages = append(messages, openai.SystemMessage(profile.Instructions))
	}

	messages = append(messages, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: messages,
	}

	if profile.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(profile.MaxTokens)
	}

	if profile.Temperature != nil {
		params.Temperature = openai.Float(*profile.Temperature)
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("model returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}
