/*
Package middleware provides the HTTP middleware of the OCPI gateway.

# Overview

The middleware components are chained by the runtime in front of every
versioned service. They never write plain-text bodies: anything they answer
with is an OCPI envelope.

# Middleware Components

## Request ID (requestid.go)

RequestIDMiddleware assigns each request a UUID and adds it to:
  - The request context (accessible via GetRequestID)
  - The X-Request-ID response header

## Logging (logging.go)

LoggingMiddleware provides structured request logging using slog:
  - Logs request completion (status, duration)
  - Supports custom log fields via AddLogField/AddError

## Authentication (auth.go)

AuthMiddleware decodes the partner token, resolves tenant and partner, checks
the role segment and attaches an endpoint.RequestContext. Rejections are 2xxx
envelopes with HTTP 401.

## Timeout (timeout.go)

TimeoutMiddleware bounds each request with a context deadline.

## Recovery (recover.go)

RecoverMiddleware turns panics into a 3000 envelope.

## Metrics (metrics.go)

Metrics exposes ocpi_requests_total and ocpi_request_duration_seconds,
labelled by version, role, module and protocol status code.

# Middleware Chain Order

 1. RequestIDMiddleware
 2. LoggingMiddleware
 3. Metrics.Middleware
 4. RecoverMiddleware
 5. TimeoutMiddleware
 6. OTel instrumentation
 7. AuthMiddleware (per version mount)
*/
package middleware
