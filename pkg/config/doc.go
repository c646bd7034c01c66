// Package config loads the mail dispatcher configuration from YAML: HTTP
// server settings, dispatch queue timings, result retention, the audit trail
// and endpoints to register at startup.
package config
