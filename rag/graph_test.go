package rag

import (
	"context"
	"errors"
	"testing"
)

const testLawID = "322AC0000000049"

func laborArticle(num, chunkID string, relevance float64) GraphResult {
	return GraphResult{
		LawID:         testLawID,
		LawTitle:      "労働基準法",
		ArticleNumber: num,
		ChunkID:       chunkID,
		Relevance:     relevance,
	}
}

func TestGraphRetrieverLawArticle(t *testing.T) {
	exact := laborArticle("32", "chunk-32", 1.0)
	store := &mockGraphStore{
		articles: map[string]*GraphResult{"労働基準法|32": &exact},
		related: map[string][]GraphResult{
			testLawID + "|32": {
				laborArticle("36", "chunk-36", 0.95),
				laborArticle("40", "chunk-40", 0.9025),
			},
		},
	}
	g := NewGraphRetriever(store, nil)

	got, err := g.Retrieve(context.Background(), []Entity{
		{Text: "労働基準法第32条", Kind: EntityLawArticle},
	})
	if err != nil {
		t.Fatalf("Retrieve returned error: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("got %d results, want exact hit plus two related", len(got))
	}
	if got[0].ArticleNumber != "32" || got[0].Relevance != 1.0 {
		t.Errorf("first result = %+v, want the exact lookup", got[0])
	}
	if got[1].ArticleNumber != "36" || got[2].ArticleNumber != "40" {
		t.Errorf("related results out of order: %v, %v", got[1].ArticleNumber, got[2].ArticleNumber)
	}

	if len(store.findRelatedCalls) != 1 || store.findRelatedCalls[0] != [2]string{testLawID, "32"} {
		t.Errorf("FindRelated calls = %v", store.findRelatedCalls)
	}
	for _, r := range got {
		if r.HighlightPath["law"] != "労働基準法" {
			t.Errorf("highlight path missing law: %v", r.HighlightPath)
		}
		if r.HighlightPath["article"] != "第"+r.ArticleNumber+"条" {
			t.Errorf("highlight path article = %q", r.HighlightPath["article"])
		}
	}
}

func TestGraphRetrieverLawArticleMiss(t *testing.T) {
	store := &mockGraphStore{}
	g := NewGraphRetriever(store, nil)

	got, err := g.Retrieve(context.Background(), []Entity{
		{Text: "労働基準法第99条", Kind: EntityLawArticle},
	})
	if err != nil {
		t.Fatalf("Retrieve returned error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %v, want nothing for a missing article", got)
	}
	if len(store.findRelatedCalls) != 0 {
		t.Error("FindRelated should not run without an exact hit")
	}
}

func TestGraphRetrieverLawKeyword(t *testing.T) {
	store := &mockGraphStore{
		keywords: map[string][]GraphResult{
			"労働基準法": {
				laborArticle("1", "chunk-1", 0.8),
				laborArticle("2", "chunk-2", 0.8),
			},
		},
	}
	g := NewGraphRetriever(store, nil)

	got, err := g.Retrieve(context.Background(), []Entity{
		{Text: "労働基準法", Kind: EntityLaw},
	})
	if err != nil {
		t.Fatalf("Retrieve returned error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2", len(got))
	}
	if store.keywordLimits[0] != lawKeywordLimit {
		t.Errorf("law keyword limit = %d, want %d", store.keywordLimits[0], lawKeywordLimit)
	}
}

func TestGraphRetrieverArticleKeyword(t *testing.T) {
	store := &mockGraphStore{}
	g := NewGraphRetriever(store, nil)

	// The full entity text is the keyword, so sub-numbered articles
	// like 第32条の2 search for their real caption form.
	if _, err := g.Retrieve(context.Background(), []Entity{
		{Text: "第32条の2", Kind: EntityArticle},
	}); err != nil {
		t.Fatalf("Retrieve returned error: %v", err)
	}

	if len(store.keywordCalls) != 1 || store.keywordCalls[0] != "第32条の2" {
		t.Errorf("keyword calls = %v, want the entity text", store.keywordCalls)
	}
	if store.keywordLimits[0] != articleKeywordLimit {
		t.Errorf("article keyword limit = %d, want %d", store.keywordLimits[0], articleKeywordLimit)
	}
}

func TestGraphRetrieverDedupe(t *testing.T) {
	exact := laborArticle("32", "chunk-32", 1.0)
	store := &mockGraphStore{
		articles: map[string]*GraphResult{"労働基準法|32": &exact},
		related: map[string][]GraphResult{
			// Traversal loops back to the start article.
			testLawID + "|32": {laborArticle("32", "chunk-32", 0.95)},
		},
		keywords: map[string][]GraphResult{
			"第32条": {laborArticle("32", "chunk-32", 0.8)},
		},
	}
	g := NewGraphRetriever(store, nil)

	got, err := g.Retrieve(context.Background(), []Entity{
		{Text: "労働基準法第32条", Kind: EntityLawArticle},
		{Text: "第32条", Kind: EntityArticle},
	})
	if err != nil {
		t.Fatalf("Retrieve returned error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d results, want one after dedupe", len(got))
	}
	if got[0].Relevance != 1.0 {
		t.Errorf("kept relevance = %v, want the first-seen exact hit", got[0].Relevance)
	}
}

func TestGraphRetrieverStoreErrors(t *testing.T) {
	store := &mockGraphStore{err: errors.New("neo4j down")}
	g := NewGraphRetriever(store, nil)

	got, err := g.Retrieve(context.Background(), []Entity{
		{Text: "労働基準法第32条", Kind: EntityLawArticle},
		{Text: "労働基準法", Kind: EntityLaw},
		{Text: "第36条", Kind: EntityArticle},
	})
	if err != nil {
		t.Fatalf("store failures must degrade, got error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %v, want no results when every lookup fails", got)
	}
}

func TestGraphRetrieverCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := NewGraphRetriever(&mockGraphStore{}, nil)
	_, err := g.Retrieve(ctx, []Entity{{Text: "第32条", Kind: EntityArticle}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
