// Package metrics defines Prometheus metrics for the mail dispatcher, covering
// queue throughput, delivery results, worker lifecycle, the result ledger and
// the audit trail.
package metrics
