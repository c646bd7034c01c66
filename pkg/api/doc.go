// Package api implements the HTTP API server (Gin-based) of the mail
// dispatcher: endpoint registration, item submission, result collection,
// queue inspection and worker snapshots, plus health, metrics and version
// endpoints.
package api
