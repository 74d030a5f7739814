package llm

import (
	"context"
	"fmt"

	"github.com/PabloGalante/chatrelay/internal/domain"
)

type MockLLM struct{}

func NewMockLLM() *MockLLM {
	return &MockLLM{}
}

// Complete echoes the last user turn, so local runs need no API key.
func (m *MockLLM) Complete(_ context.Context, turns []domain.Turn) (string, error) {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == domain.RoleUser {
			return fmt.Sprintf("You said %q (%d turns so far).", turns[i].Text, len(turns)), nil
		}
	}
	return "", fmt.Errorf("mock llm: no user turn")
}
