// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telekom/mail-dispatcher/pkg/endpoint"
)

const sampleConfig = `
server:
  listenAddress: ":9090"
  allowedOrigins: ["http://localhost:5173"]
  rateLimit:
    requestsPerSecond: 5
    burst: 10
queue:
  runInterval: "2s"
  itemDelay: "0s"
results:
  retention: "1h"
audit:
  enabled: true
  kafka:
    brokers: ["kafka-0:9092", "kafka-1:9092"]
    topic: "mail-outcomes"
    sasl:
      mechanism: SCRAM-SHA-512
      username: dispatcher
      password: s3cret
endpoints:
  - host: smtp.example.com
    port: 587
    securityMode: 1
    user: mailer
    password: secret
    database: db1
    banner: "Mail Dispatcher"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.ListenAddress)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 5.0, cfg.Server.RateLimit.RequestsPerSecond)
	assert.Equal(t, 10, cfg.Server.RateLimit.Burst)

	assert.Equal(t, 2*time.Second, cfg.Queue.RunIntervalDuration())
	assert.Equal(t, time.Duration(0), cfg.Queue.ItemDelayDuration())
	assert.Equal(t, "mail dispatch worker", cfg.Queue.WorkerName, "unset fields keep defaults")
	assert.Equal(t, 5*time.Second, cfg.Queue.ShutdownTimeoutDuration())
	assert.Equal(t, time.Hour, cfg.Results.RetentionDuration())
	assert.Equal(t, time.Minute, cfg.Results.PruneIntervalDuration())

	assert.True(t, cfg.Audit.Enabled)
	assert.Equal(t, 1000, cfg.Audit.QueueSize)
	assert.Equal(t, []string{"kafka-0:9092", "kafka-1:9092"}, cfg.Audit.Kafka.Brokers)
	assert.Equal(t, "SCRAM-SHA-512", cfg.Audit.Kafka.SASL.Mechanism)
	assert.Equal(t, "dispatcher", cfg.Audit.Kafka.SASL.Username)

	require.Len(t, cfg.Endpoints, 1)
	ep := cfg.Endpoints[0]
	assert.Equal(t, "smtp.example.com", ep.Host)
	assert.Equal(t, endpoint.SecurityStartTLS, ep.Security)
	assert.Equal(t, "db1", ep.Database)
	assert.Equal(t, "Mail Dispatcher", ep.Banner)
	assert.NoError(t, ep.Validate())
}

func TestLoadFromEnvironment(t *testing.T) {
	path := writeConfig(t, "server:\n  listenAddress: \":7070\"\n")
	t.Setenv(EnvConfigPath, path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.ListenAddress)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "server: [not, a, map"))
	assert.Error(t, err)
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.False(t, cfg.Queue.InsecureSkipVerify, "TLS verification must be on by default")
	assert.False(t, cfg.Audit.Enabled)
	assert.Equal(t, 10*time.Second, cfg.Queue.RunIntervalDuration())
	assert.Equal(t, 200*time.Millisecond, cfg.Queue.ItemDelayDuration())
	assert.Equal(t, time.Duration(0), cfg.Queue.StartDelayDuration())
	assert.Equal(t, time.Duration(0), cfg.Results.RetentionDuration())
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeoutDuration())
}

func TestParseDurationOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		value      string
		defaultVal time.Duration
		want       time.Duration
	}{
		{"empty string returns default", "", 30 * time.Second, 30 * time.Second},
		{"valid duration string", "45s", 30 * time.Second, 45 * time.Second},
		{"valid duration in minutes", "2m", 30 * time.Second, 2 * time.Minute},
		{"invalid duration returns default", "not-a-duration", 30 * time.Second, 30 * time.Second},
		{"zero duration returns default", "0s", 30 * time.Second, 30 * time.Second},
		{"negative duration returns default", "-5s", 30 * time.Second, 30 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseDurationOrDefault(tt.value, tt.defaultVal))
		})
	}
}
