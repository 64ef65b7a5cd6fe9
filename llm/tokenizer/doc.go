// Package tokenizer provides a unified token counting interface with
// exact tiktoken counting and a CJK-aware estimator fallback, used for
// context window budgeting.
package tokenizer
