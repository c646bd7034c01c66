// Package cli defines the mail-dispatcher command tree: the serve command that
// runs the dispatcher with its HTTP API, and client commands that drive a
// running server.
package cli
