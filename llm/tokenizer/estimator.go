package tokenizer

import "unicode"

// Tokens-per-rune ratios observed for statute text under the OpenAI
// encodings: kanji and kana land near one token per 1.5 characters,
// Latin text near one per 4.
const (
	japaneseRunesPerToken = 1.5
	latinRunesPerToken    = 4.0
)

// EstimatorTokenizer approximates token counts from rune counts,
// weighting Japanese script separately from Latin text. It backs the
// context budget when the exact tiktoken encoding cannot load.
type EstimatorTokenizer struct {
	model     string
	maxTokens int
}

// NewEstimatorTokenizer creates an estimator for the model. maxTokens
// of zero or less defaults to 4096.
func NewEstimatorTokenizer(model string, maxTokens int) *EstimatorTokenizer {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &EstimatorTokenizer{model: model, maxTokens: maxTokens}
}

func (e *EstimatorTokenizer) CountTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	var japanese, other int
	for _, r := range text {
		if isJapaneseScript(r) {
			japanese++
		} else {
			other++
		}
	}
	n := int(float64(japanese)/japaneseRunesPerToken + float64(other)/latinRunesPerToken)
	if n < 1 {
		n = 1
	}
	return n, nil
}

func (e *EstimatorTokenizer) MaxTokens() int { return e.maxTokens }

func (e *EstimatorTokenizer) Name() string { return "estimator" }

// isJapaneseScript covers the scripts statute chunks are written in:
// kana, Han ideographs (including extensions and compatibility
// forms), CJK punctuation and fullwidth forms.
func isJapaneseScript(r rune) bool {
	switch {
	case unicode.In(r, unicode.Hiragana, unicode.Katakana, unicode.Han):
		return true
	case r >= 0x3000 && r <= 0x303F: // CJK symbols and punctuation
		return true
	case r >= 0xFF00 && r <= 0xFFEF: // halfwidth and fullwidth forms
		return true
	}
	return false
}
