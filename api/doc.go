// Package api defines the HTTP wire types for the hourei service.
//
// The service exposes a small REST surface, JSON in and JSON out:
//
//	POST {prefix}/chat                      answer a question with citations
//	POST {prefix}/search                    retrieval only, no generation
//	GET  {prefix}/health                    liveness
//	GET  {prefix}/laws/{law_id}/structure   chapter and article outline
//	GET  {prefix}/graph/stats               statute graph node and edge counts
//
// The prefix defaults to /api and is configurable. Prometheus metrics
// are served on a separate port. There is no authentication; the
// service is meant to run behind an internal gateway.
package api
