package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/PabloGalante/chatrelay/internal/domain"
)

const defaultGeminiModel = "gemini-2.5-flash"

type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type GeminiClient struct {
	models    generator
	modelName string
}

var _ domain.CompletionProvider = (*GeminiClient)(nil)

// GeminiConfig selects between the Gemini API (APIKey) and Vertex AI (Project + Location).
type GeminiConfig struct {
	APIKey    string
	UseVertex bool
	Project   string
	Location  string
	Model     string
}

// NewGeminiClient creates a CompletionProvider backed by Gemini.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.UseVertex {
		if cfg.Project == "" || cfg.Location == "" {
			return nil, fmt.Errorf("project and location must be set for Vertex AI")
		}
		cc = &genai.ClientConfig{
			Project:  cfg.Project,
			Location: cfg.Location,
			Backend:  genai.BackendVertexAI,
		}
	} else if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key must be set")
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}

	return &GeminiClient{
		models:    client.Models,
		modelName: model,
	}, nil
}

// Complete implements domain.CompletionProvider.
func (g *GeminiClient) Complete(ctx context.Context, turns []domain.Turn) (string, error) {
	if len(turns) == 0 {
		return "", errors.New("gemini: no turns to complete")
	}

	res, err := g.models.GenerateContent(ctx, g.modelName, toGeminiContents(turns), geminiConfig())
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	// Extract only the text, not the whole candidate structs.
	text := res.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned empty text")
	}
	return text, nil
}

func toGeminiContents(turns []domain.Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		var role genai.Role = genai.RoleUser
		if t.Role == domain.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(t.Text, role))
	}
	return contents
}

func geminiConfig() *genai.GenerateContentConfig {
	temp := float32(Temperature)
	topP := float32(TopP)
	topK := float32(TopK)

	return &genai.GenerateContentConfig{
		Temperature:     &temp,
		TopP:            &topP,
		TopK:            &topK,
		MaxOutputTokens: int32(MaxOutputTokens),
	}
}
