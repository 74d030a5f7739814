package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/PabloGalante/chatrelay/internal/domain"
)

var history = []domain.Turn{
	{Role: domain.RoleUser, Text: "hi"},
	{Role: domain.RoleAssistant, Text: "hello"},
	{Role: domain.RoleUser, Text: "how are you?"},
}

type fakeGenerator struct {
	gotModel    string
	gotContents []*genai.Content
	gotConfig   *genai.GenerateContentConfig
	res         *genai.GenerateContentResponse
	err         error
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.gotModel = model
	f.gotContents = contents
	f.gotConfig = config
	return f.res, f.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(text, genai.RoleModel)}},
	}
}

func TestGeminiComplete(t *testing.T) {
	gen := &fakeGenerator{res: textResponse("fine, thanks")}
	g := &GeminiClient{models: gen, modelName: "gemini-test"}

	reply, err := g.Complete(context.Background(), history)
	require.NoError(t, err)
	assert.Equal(t, "fine, thanks", reply)
	assert.Equal(t, "gemini-test", gen.gotModel)

	require.Len(t, gen.gotContents, 3)
	assert.Equal(t, string(genai.RoleUser), gen.gotContents[0].Role)
	assert.Equal(t, string(genai.RoleModel), gen.gotContents[1].Role)
	assert.Equal(t, "how are you?", gen.gotContents[2].Parts[0].Text)

	require.NotNil(t, gen.gotConfig.Temperature)
	assert.InDelta(t, 0.7, *gen.gotConfig.Temperature, 1e-6)
	assert.InDelta(t, 0.9, *gen.gotConfig.TopP, 1e-6)
	assert.InDelta(t, 40, *gen.gotConfig.TopK, 1e-6)
	assert.Equal(t, int32(2048), gen.gotConfig.MaxOutputTokens)
}

func TestGeminiCompleteFailures(t *testing.T) {
	boom := errors.New("quota exceeded")

	g := &GeminiClient{models: &fakeGenerator{err: boom}, modelName: "m"}
	_, err := g.Complete(context.Background(), history)
	assert.ErrorIs(t, err, boom)

	g = &GeminiClient{models: &fakeGenerator{res: &genai.GenerateContentResponse{}}, modelName: "m"}
	_, err = g.Complete(context.Background(), history)
	assert.Error(t, err)

	_, err = g.Complete(context.Background(), nil)
	assert.Error(t, err)
}

func TestNewGeminiClientValidation(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), GeminiConfig{})
	assert.Error(t, err)

	_, err = NewGeminiClient(context.Background(), GeminiConfig{UseVertex: true, Project: "p"})
	assert.Error(t, err)
}

type fakeCompleter struct {
	got openai.ChatCompletionNewParams
	res *openai.ChatCompletion
	err error
}

func (f *fakeCompleter) New(_ context.Context, body openai.ChatCompletionNewParams, _ ...option.RequestOption) (*openai.ChatCompletion, error) {
	f.got = body
	return f.res, f.err
}

func TestOpenAIComplete(t *testing.T) {
	fc := &fakeCompleter{res: &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "fine, thanks"}}},
	}}
	o := &OpenAIClient{completions: fc, model: "gpt-test"}

	reply, err := o.Complete(context.Background(), history)
	require.NoError(t, err)
	assert.Equal(t, "fine, thanks", reply)

	assert.Equal(t, openai.ChatModel("gpt-test"), fc.got.Model)
	require.Len(t, fc.got.Messages, 3)
	assert.NotNil(t, fc.got.Messages[0].OfUser)
	assert.NotNil(t, fc.got.Messages[1].OfAssistant)
	assert.NotNil(t, fc.got.Messages[2].OfUser)
	assert.Equal(t, 0.7, fc.got.Temperature.Value)
	assert.Equal(t, 0.9, fc.got.TopP.Value)
	assert.Equal(t, int64(2048), fc.got.MaxCompletionTokens.Value)
}

func TestOpenAICompleteFailures(t *testing.T) {
	o := &OpenAIClient{completions: &fakeCompleter{res: &openai.ChatCompletion{}}, model: "m"}
	_, err := o.Complete(context.Background(), history)
	assert.Error(t, err)

	boom := errors.New("rate limited")
	o = &OpenAIClient{completions: &fakeCompleter{err: boom}, model: "m"}
	_, err = o.Complete(context.Background(), history)
	assert.ErrorIs(t, err, boom)

	_, err = NewOpenAIClient("", "")
	assert.Error(t, err)
}

func TestMockLLM(t *testing.T) {
	reply, err := NewMockLLM().Complete(context.Background(), history)
	require.NoError(t, err)
	assert.Contains(t, reply, "how are you?")

	_, err = NewMockLLM().Complete(context.Background(), []domain.Turn{{Role: domain.RoleAssistant, Text: "x"}})
	assert.Error(t, err)
}
