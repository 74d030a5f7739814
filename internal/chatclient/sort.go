package chatclient

import (
	"cmp"
	"slices"
)

// SortSessions returns sessions most recently active first.
func SortSessions(sessions map[string]Session) []Session {
	out := make([]Session, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b Session) int {
		if c := b.LastMessageAt.Compare(a.LastMessageAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// SortMessages returns messages in chronological order. Map keys are not
// trusted to sort by time.
func SortMessages(messages map[string]Message) []Message {
	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b Message) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}
