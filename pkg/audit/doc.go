// Package audit records delivery outcomes and dispatch worker lifecycle
// events as an audit trail, forwarding them to configurable sinks (log,
// Kafka) through bounded queues so a slow sink never stalls dispatch.
package audit
