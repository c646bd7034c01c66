// Package client is a typed HTTP client for the mail dispatcher API, used by
// the command line tool.
package client
