package llm

// Fixed generation settings shared by every provider; callers cannot change them.
const (
	Temperature     = 0.7
	TopP            = 0.9
	TopK            = 40
	MaxOutputTokens = 2048
)
