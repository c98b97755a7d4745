// Package observability builds the zap loggers used across the service.
//
// Production deployments log JSON at the configured level; development
// deployments log human-readable console lines. Request-scoped fields such
// as the request id are attached by the middleware package.
package observability
