// Package controller contains HTTP middlewares and helper handlers used by the API server.
//
// Provided middlewares:
//   - WithCORS: Answers preflight requests and sets CORS headers for the configured origins.
//   - WithSecurityHeaders: Sets CSP, HSTS and the other browser hardening headers.
//   - WithLogger: Attaches a request-scoped logger, request ID and client IP to the context and logs access info.
//
// Provided helpers:
//   - PprofRouter: Returns a router exposing net/http/pprof handlers.
//   - ClientIP: Returns the client IP recorded by WithLogger.
package controller
