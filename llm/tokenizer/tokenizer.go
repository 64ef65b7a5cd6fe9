package tokenizer

// Tokenizer counts tokens for context window budgeting. The context
// builder uses it to decide how many citation blocks fit in front of
// the generator.
type Tokenizer interface {
	// CountTokens returns the token count for the given text.
	CountTokens(text string) (int, error)

	// MaxTokens returns the model's maximum context length.
	MaxTokens() int

	// Name identifies the counter in logs.
	Name() string
}
