package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/PabloGalante/chatrelay/internal/domain"
)

const defaultOpenAIModel = "gpt-3.5-turbo"

type chatCompleter interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

type OpenAIClient struct {
	completions chatCompleter
	model       string
}

var _ domain.CompletionProvider = (*OpenAIClient)(nil)

func NewOpenAIClient(apiKey, model string, opts ...option.RequestOption) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key must be set")
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &OpenAIClient{completions: &client.Chat.Completions, model: model}, nil
}

// Complete implements domain.CompletionProvider with the chat completions API.
func (o *OpenAIClient) Complete(ctx context.Context, turns []domain.Turn) (string, error) {
	if len(turns) == 0 {
		return "", errors.New("openai: no turns to complete")
	}

	completion, err := o.completions.New(ctx, openAIParams(o.model, turns))
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("openai returned empty text")
	}
	return completion.Choices[0].Message.Content, nil
}

func openAIParams(model string, turns []domain.Turn) openai.ChatCompletionNewParams {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns))
	for _, t := range turns {
		if t.Role == domain.RoleAssistant {
			msgs = append(msgs, openai.AssistantMessage(t.Text))
			continue
		}
		msgs = append(msgs, openai.UserMessage(t.Text))
	}

	return openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(model),
		Messages:            msgs,
		Temperature:         openai.Float(Temperature),
		TopP:                openai.Float(TopP),
		MaxCompletionTokens: openai.Int(MaxOutputTokens),
	}
}
