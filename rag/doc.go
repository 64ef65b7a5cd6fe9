/*
Package rag implements the retrieval and composition core for Japanese
statute search: Vietnamese questions in, cited Vietnamese answers out.

The package covers every stage of the pipeline. A query is translated
to Japanese and expanded into search variants, routed by the legal
entities it mentions, retrieved from a statute graph and a vector
store in parallel, fused with a graph-favoring weight, optionally
reranked by a cross-encoder, rendered into a numbered citation
context, and answered by a chat model that cites the numbered sources.

# Core interfaces and types

  - Pipeline: the orchestrator. Chat answers a question, Search stops
    after retrieval and returns scored candidates.
  - GraphStore: statute graph lookups (FindArticle / FindRelated /
    KeywordSearch / LawStructure / Stats).
  - VectorStore / HybridVectorStore: dense and dense+sparse search.
  - Translator: Vietnamese to Japanese query translation and
    structured expansion.
  - Router: keyword and entity based query routing.
  - Reranker: cross-encoder rescoring of fused candidates.
  - Candidate: one retrieved chunk, keyed by ChunkID, carrying both
    its current and pre-rerank scores.

# Main capabilities

  - Query preparation: language detection, translation with cache,
    structured expansion into at most three search texts
  - Entity extraction: law+article, bare article, and law-name spans
    with containment suppression
  - Routing: entity_lookup / multi_hop / hybrid / semantic with
    explicit per-request overrides
  - Graph retrieval: exact article lookup, reference traversal up to
    two hops, keyword fallback
  - Vector retrieval: batched embedding, per-variant fan-out, dense or
    hybrid RRF search against Qdrant
  - Fusion: keep-highest dedupe across stages, threshold filter with a
    top-3 fallback, deterministic ordering
  - Composition: numbered 【law article】 blocks, token budget, source
    documents capped at 500 display characters
  - Optional adaptive loop: grade retrieved documents and rewrite the
    question, bounded to two rewrites
*/
package rag
