// Package server hosts the media API behind a single HTTP server.
//
// The server assembles a middleware chain of request IDs, logging, metrics,
// rate limiting, security headers, and CORS so every handler shares the same
// protections and instrumentation. Upload traffic gets an additional per-IP
// throttle that can be backed by Redis when running multiple replicas.
package server
