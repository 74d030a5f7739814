package conversation

import (
	"slices"

	"github.com/PabloGalante/chatrelay/internal/domain"
)

// SortMessages orders msgs in place by timestamp, then id. Store iteration
// order is never trusted to be chronological.
func SortMessages(msgs []*domain.Message) {
	slices.SortStableFunc(msgs, domain.Compare)
}

// window keeps the most recent limit messages of a sorted history. A window
// that would open on an assistant turn is widened by one so the provider
// always sees the question first. limit <= 0 keeps everything.
func window(msgs []*domain.Message, limit int) []*domain.Message {
	if limit <= 0 || len(msgs) <= limit {
		return msgs
	}
	start := len(msgs) - limit
	if msgs[start].Role == domain.RoleAssistant {
		start--
	}
	return msgs[start:]
}

func toTurns(msgs []*domain.Message) []domain.Turn {
	turns := make([]domain.Turn, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, domain.Turn{Role: m.Role, Text: m.Content})
	}
	return turns
}
