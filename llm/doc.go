/*
Package llm provides the model access layer: a provider abstraction for
chat completions plus subpackages for embeddings, reranking, token
counting and retry.

The core interface is [ChatProvider]. Implementations hide provider
differences in auth, endpoints and error semantics behind a uniform
request/response model, so the retrieval pipeline never talks HTTP
directly.

Subpackages:

  - llm/embedding: dense and sparse text embedding providers.
  - llm/rerank: cross-encoder document reranking providers.
  - llm/tokenizer: token counting for context budgeting.
  - llm/retry: bounded exponential backoff for upstream calls.
*/
package llm
