// Package apiresponses provides the JSON response helpers shared by the HTTP
// API handlers, so every error carries the same {error, code, result} shape.
package apiresponses
