package rag

import (
	"context"
	"sort"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSparseTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "cjk bigrams",
			text: "労働時間",
			want: []string{"労働", "働時", "時間"},
		},
		{
			name: "lone cjk rune",
			text: "法",
			want: []string{"法"},
		},
		{
			name: "latin words lowercased",
			text: "Labor Standards",
			want: []string{"labor", "standards"},
		},
		{
			name: "mixed scripts split at boundaries",
			text: "第32条の労働時間",
			want: []string{"第", "32", "条の", "の労", "労働", "働時", "時間"},
		},
		{
			name: "punctuation breaks runs",
			text: "労働、時間",
			want: []string{"労働", "時間"},
		},
		{
			name: "empty",
			text: "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sparseTokens(tt.text))
		})
	}
}

func TestEncodeSparse(t *testing.T) {
	vec := EncodeSparse("労働時間と労働条件")

	require.False(t, vec.IsEmpty())
	require.Len(t, vec.Values, len(vec.Indices))

	assert.True(t, sort.SliceIsSorted(vec.Indices, func(i, j int) bool {
		return vec.Indices[i] < vec.Indices[j]
	}))

	// 労働 appears twice, so its value saturates above the single
	// occurrence level of every other bigram.
	laborIdx := hashToken("労働")
	var laborValue float32
	for i, idx := range vec.Indices {
		if idx == laborIdx {
			laborValue = vec.Values[i]
		}
	}
	assert.InDelta(t, 2.0/3.0, laborValue, 1e-6)

	for i, idx := range vec.Indices {
		if idx != laborIdx {
			assert.InDelta(t, 0.5, vec.Values[i], 1e-6)
		}
	}
}

func TestEncodeSparseEmpty(t *testing.T) {
	assert.True(t, EncodeSparse("").IsEmpty())
	assert.True(t, EncodeSparse("  ...  ").IsEmpty())
}

func TestLocalSparseEncoder(t *testing.T) {
	enc := LocalSparseEncoder{}

	single, err := enc.Embed(context.Background(), "労働時間")
	require.NoError(t, err)
	assert.Equal(t, EncodeSparse("労働時間"), single)

	batch, err := enc.EmbedBatch(context.Background(), []string{"労働時間", "", "overtime"})
	require.NoError(t, err)
	require.Len(t, batch, 3)
	assert.Equal(t, EncodeSparse("労働時間"), batch[0])
	assert.True(t, batch[1].IsEmpty())
	assert.Equal(t, EncodeSparse("overtime"), batch[2])
}

func TestEncodeSparseProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("values stay in (0, 1)", prop.ForAll(
		func(text string) bool {
			vec := EncodeSparse(text)
			for _, v := range vec.Values {
				if v <= 0 || v >= 1 {
					return false
				}
			}
			return len(vec.Values) == len(vec.Indices)
		},
		gen.AnyString(),
	))

	properties.Property("encoding is deterministic", prop.ForAll(
		func(text string) bool {
			a := EncodeSparse(text)
			b := EncodeSparse(text)
			if len(a.Indices) != len(b.Indices) {
				return false
			}
			for i := range a.Indices {
				if a.Indices[i] != b.Indices[i] || a.Values[i] != b.Values[i] {
					return false
				}
			}
			return true
		},
		gen.AnyString(),
	))

	properties.Property("indices are strictly increasing", prop.ForAll(
		func(text string) bool {
			vec := EncodeSparse(text)
			for i := 1; i < len(vec.Indices); i++ {
				if vec.Indices[i] <= vec.Indices[i-1] {
					return false
				}
			}
			return true
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
