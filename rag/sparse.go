package rag

import (
	"context"
	"hash/fnv"
	"sort"
	"strings"
	"unicode"
)

// SparseVector is a bag-of-tokens vector in Qdrant's sparse format.
// Indices are token hashes, values are saturated term frequencies.
type SparseVector struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

// IsEmpty reports whether no tokens survived encoding.
func (v SparseVector) IsEmpty() bool { return len(v.Indices) == 0 }

// SparseEncoder turns query text into sparse vectors for hybrid
// search. The retriever makes at most one EmbedBatch call per request
// regardless of expansion size, so remote implementations pay one
// round trip.
type SparseEncoder interface {
	Embed(ctx context.Context, text string) (SparseVector, error)
	EmbedBatch(ctx context.Context, texts []string) ([]SparseVector, error)
}

// LocalSparseEncoder encodes in-process with EncodeSparse. It never
// fails and ignores the context.
type LocalSparseEncoder struct{}

func (LocalSparseEncoder) Embed(_ context.Context, text string) (SparseVector, error) {
	return EncodeSparse(text), nil
}

func (LocalSparseEncoder) EmbedBatch(_ context.Context, texts []string) ([]SparseVector, error) {
	vectors := make([]SparseVector, len(texts))
	for i, text := range texts {
		vectors[i] = EncodeSparse(text)
	}
	return vectors, nil
}

// EncodeSparse tokenizes text into CJK bigrams and lowercased latin
// words, hashes each token and saturates repeated terms. Statute text
// has no word boundaries, so character bigrams stand in for terms the
// way Japanese full-text indexes usually do.
func EncodeSparse(text string) SparseVector {
	counts := make(map[uint32]int)
	for _, token := range sparseTokens(text) {
		counts[hashToken(token)]++
	}
	if len(counts) == 0 {
		return SparseVector{}
	}

	indices := make([]uint32, 0, len(counts))
	for idx := range counts {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	values := make([]float32, len(indices))
	for i, idx := range indices {
		tf := float32(counts[idx])
		values[i] = tf / (tf + 1)
	}
	return SparseVector{Indices: indices, Values: values}
}

// sparseTokens splits text into contiguous CJK runs and latin runs.
// CJK runs emit overlapping bigrams (a lone character emits itself),
// latin runs emit the whole lowercased word.
func sparseTokens(text string) []string {
	var tokens []string
	var cjk []rune
	var latin []rune

	flushCJK := func() {
		switch {
		case len(cjk) == 1:
			tokens = append(tokens, string(cjk))
		case len(cjk) > 1:
			for i := 0; i+1 < len(cjk); i++ {
				tokens = append(tokens, string(cjk[i:i+2]))
			}
		}
		cjk = cjk[:0]
	}
	flushLatin := func() {
		if len(latin) > 0 {
			tokens = append(tokens, strings.ToLower(string(latin)))
			latin = latin[:0]
		}
	}

	for _, r := range text {
		switch {
		case isJapaneseRune(r):
			flushLatin()
			cjk = append(cjk, r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			flushCJK()
			latin = append(latin, r)
		default:
			flushCJK()
			flushLatin()
		}
	}
	flushCJK()
	flushLatin()
	return tokens
}

func hashToken(token string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(token))
	return h.Sum32()
}
