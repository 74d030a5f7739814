package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/PabloGalante/chatrelay/internal/domain"
)

func msg(id string, role domain.Role, sec int) *domain.Message {
	return &domain.Message{
		ID:        domain.MessageID(id),
		SessionID: "s1",
		Role:      role,
		Content:   id,
		Timestamp: time.Unix(int64(sec), 0).UTC(),
	}
}

func TestSortMessagesUsesTimestampNotID(t *testing.T) {
	// ids sort opposite to creation time.
	msgs := []*domain.Message{
		msg("a", domain.RoleAssistant, 2),
		msg("b", domain.RoleUser, 1),
		msg("c", domain.RoleUser, 3),
	}
	SortMessages(msgs)

	assert.Equal(t, []string{"b", "a", "c"}, []string{msgs[0].Content, msgs[1].Content, msgs[2].Content})
}

func TestWindow(t *testing.T) {
	history := []*domain.Message{
		msg("u1", domain.RoleUser, 1),
		msg("a1", domain.RoleAssistant, 2),
		msg("u2", domain.RoleUser, 3),
		msg("a2", domain.RoleAssistant, 4),
		msg("u3", domain.RoleUser, 5),
	}

	tests := []struct {
		name  string
		limit int
		first string
		size  int
	}{
		{"unbounded", 0, "u1", 5},
		{"larger than history", 10, "u1", 5},
		{"starts on user", 3, "u2", 3},
		{"widened past assistant", 2, "u2", 3},
		{"single turn", 1, "u3", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := window(history, tt.limit)
			assert.Len(t, got, tt.size)
			assert.Equal(t, tt.first, got[0].Content)
		})
	}
}

func TestToTurns(t *testing.T) {
	turns := toTurns([]*domain.Message{
		msg("hi", domain.RoleUser, 1),
		msg("hello", domain.RoleAssistant, 2),
	})
	assert.Equal(t, []domain.Turn{
		{Role: domain.RoleUser, Text: "hi"},
		{Role: domain.RoleAssistant, Text: "hello"},
	}, turns)
}
