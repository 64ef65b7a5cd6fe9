package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// encodingInfo pairs a tiktoken encoding with the model's context
// length. Prefix matching lets versioned model names ("gpt-4o-mini")
// resolve without their own entry.
type encodingInfo struct {
	encoding  string
	maxTokens int
}

var modelEncodings = map[string]encodingInfo{
	"gpt-4o":        {"o200k_base", 128000},
	"gpt-4.1":       {"o200k_base", 128000},
	"gpt-4-turbo":   {"cl100k_base", 128000},
	"gpt-4":         {"cl100k_base", 8192},
	"gpt-3.5-turbo": {"cl100k_base", 16385},
}

// TiktokenTokenizer counts with the exact BPE encoding of the
// generation model. The encoding loads lazily because tiktoken may
// fetch vocabulary data on first use.
type TiktokenTokenizer struct {
	model string
	info  encodingInfo

	once    sync.Once
	enc     *tiktoken.Tiktoken
	initErr error
}

// NewTiktokenTokenizer creates a counter for the model. Unknown
// models fall back to cl100k_base with an 8k window.
func NewTiktokenTokenizer(model string) (*TiktokenTokenizer, error) {
	info, ok := lookupEncoding(model)
	if !ok {
		info = encodingInfo{"cl100k_base", 8192}
	}
	return &TiktokenTokenizer{model: model, info: info}, nil
}

func lookupEncoding(model string) (encodingInfo, bool) {
	if info, ok := modelEncodings[model]; ok {
		return info, true
	}
	// Longest-prefix match so "gpt-4o-mini" picks gpt-4o, not gpt-4.
	var best string
	for prefix := range modelEncodings {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return encodingInfo{}, false
	}
	return modelEncodings[best], true
}

func (t *TiktokenTokenizer) load() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.info.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("load tiktoken encoding %s: %w", t.info.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

func (t *TiktokenTokenizer) CountTokens(text string) (int, error) {
	if err := t.load(); err != nil {
		return 0, err
	}
	return len(t.enc.Encode(text, nil, nil)), nil
}

func (t *TiktokenTokenizer) MaxTokens() int { return t.info.maxTokens }

func (t *TiktokenTokenizer) Name() string {
	return "tiktoken/" + t.info.encoding
}
