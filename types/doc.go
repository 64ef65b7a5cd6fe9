// Package types defines the shared error taxonomy for the hourei pipeline.
//
// It is the lowest-level package in the module and depends on nothing
// internal. Error carries a stable code, an HTTP status hint, a retryable
// flag, and an optional cause; helpers (AsError, IsRetryable, GetErrorCode)
// inspect wrapped chains. The code groups mirror the pipeline's failure
// classes: input validation, transient I/O (retried with bounded backoff),
// retrieval/generation failures, and cancellation.
package types
