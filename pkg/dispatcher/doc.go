// Package dispatcher is the single entry point of the mail dispatcher. It
// composes the endpoint registry, the dispatch queue and the result ledger,
// and maps every failure to a result code for the external boundary.
package dispatcher
