/*
Package handlers implements the HTTP endpoints of the hourei service.

Every handler follows the same shape: validate the request, call the
pipeline or store behind an interface, and write the unified JSON
envelope. Handlers stay thin; retrieval, fusion and generation live in
the rag package.

Core types:

  - ChatHandler    answer generation endpoint (POST /chat)
  - SearchHandler  retrieval-only endpoint (POST /search)
  - GraphHandler   law outline and graph statistics (GET)
  - HealthHandler  liveness and readiness probes
  - Response       unified envelope (success + data + error + timestamp)
  - ResponseWriter status-capturing wrapper used by middleware

Helpers WriteSuccess, WriteError and DecodeJSONBody (1 MB limit, strict
field checking) keep the envelope and error mapping consistent across
endpoints.
*/
package handlers
