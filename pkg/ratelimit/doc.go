// Package ratelimit provides per-client-IP token-bucket rate limiting
// middleware for the Gin HTTP API, with path exclusions and automatic
// stale-entry cleanup.
package ratelimit
