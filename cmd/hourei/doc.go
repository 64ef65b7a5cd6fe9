/*
Package main is the hourei service binary.

# Overview

cmd/hourei serves the statute question-answering API over HTTP. The
binary loads YAML configuration with environment overrides, assembles
the retrieval pipeline through the root hourei package, and runs two
listeners: the API on server.http_port and Prometheus metrics on
server.metrics_port.

# Subcommands

  - serve    start the service (--config selects a YAML file)
  - version  print version, build time and git commit
  - health   probe a running instance's /healthz
  - help     print usage

# Middleware

Requests pass through Recovery, RequestID, SecurityHeaders,
RequestLogger, MetricsMiddleware, OTelTracing, CORS and a per-IP
RateLimiter before reaching the handlers. The rate limiter is skipped
when server.rate_limit_rps is zero or negative.

# Shutdown

SIGINT/SIGTERM stops the API listener first, then the metrics
listener, then closes the graph, cache and query log connections and
flushes telemetry. In-flight requests get server.shutdown_timeout to
finish.

Version, BuildTime and GitCommit are injected at build time via
-ldflags.
*/
package main
