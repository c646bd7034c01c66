/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package audit

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
	"go.uber.org/zap"

	"github.com/telekom/mail-dispatcher/pkg/metrics"
)

const (
	defaultKafkaBatchSize    = 100
	defaultKafkaBatchTimeout = time.Second
	defaultKafkaWriteTimeout = 10 * time.Second
)

// KafkaSinkConfig configures a KafkaSink. Zero batch and timeout values
// select the defaults above.
type KafkaSinkConfig struct {
	Name     string
	Brokers  []string
	Topic    string
	ClientID string
	TLS      *KafkaTLSConfig
	SASL     *KafkaSASLConfig

	BatchSize    int
	BatchTimeout time.Duration
	WriteTimeout time.Duration
}

func (c KafkaSinkConfig) withDefaults() KafkaSinkConfig {
	if c.Name == "" {
		c.Name = "kafka"
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultKafkaBatchSize
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = defaultKafkaBatchTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultKafkaWriteTimeout
	}
	return c
}

type KafkaTLSConfig struct {
	Enabled bool
	// CAFile is read at construction; CACert takes PEM data directly. Both
	// may be set, their certificates are pooled.
	CAFile             string
	CACert             []byte
	InsecureSkipVerify bool
}

type KafkaSASLConfig struct {
	// Mechanism is PLAIN, SCRAM-SHA-256 or SCRAM-SHA-512 (case-insensitive).
	Mechanism string
	Username  string
	Password  string
}

// messageWriter is the subset of *kafka.Writer the sink depends on.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes audit events as JSON. Messages are keyed by item id so
// the events of one item stay ordered within a partition; worker events fall
// back to the event id.
type KafkaSink struct {
	name   string
	writer messageWriter
	logger *zap.Logger
	closed atomic.Bool

	written atomic.Int64
	failed  atomic.Int64
}

func NewKafkaSink(cfg KafkaSinkConfig, logger *zap.Logger) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one Kafka broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	cfg = cfg.withDefaults()

	transport, err := newKafkaTransport(cfg)
	if err != nil {
		return nil, err
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
		Transport:    transport,
	}

	logger.Info("Kafka audit sink created",
		zap.String("name", cfg.Name),
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic),
		zap.Bool("tls_enabled", transport.TLS != nil),
		zap.Bool("sasl_enabled", transport.SASL != nil))

	return newKafkaSink(cfg.Name, writer, logger), nil
}

func newKafkaSink(name string, writer messageWriter, logger *zap.Logger) *KafkaSink {
	if name == "" {
		name = "kafka"
	}
	return &KafkaSink{name: name, writer: writer, logger: logger.Named("kafka-audit")}
}

func newKafkaTransport(cfg KafkaSinkConfig) (*kafka.Transport, error) {
	transport := &kafka.Transport{ClientID: cfg.ClientID}
	if cfg.TLS != nil && cfg.TLS.Enabled {
		tlsConfig, err := buildTLSConfig(cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("kafka TLS: %w", err)
		}
		transport.TLS = tlsConfig
	}
	if cfg.SASL != nil && cfg.SASL.Mechanism != "" {
		mechanism, err := buildSASLMechanism(cfg.SASL)
		if err != nil {
			return nil, fmt.Errorf("kafka SASL: %w", err)
		}
		transport.SASL = mechanism
	}
	return transport, nil
}

// messageKey picks the partitioning key of event.
func messageKey(event *Event) []byte {
	if event.ItemID != 0 {
		return []byte(strconv.FormatInt(event.ItemID, 10))
	}
	return []byte(event.ID)
}

// messageHeaders lets consumers filter without decoding the value.
func messageHeaders(event *Event) []kafka.Header {
	headers := []kafka.Header{
		{Key: "event-type", Value: []byte(event.Type)},
		{Key: "severity", Value: []byte(event.Severity)},
	}
	if event.EndpointID != 0 {
		headers = append(headers, kafka.Header{Key: "endpoint-id", Value: []byte(strconv.FormatInt(event.EndpointID, 10))})
	}
	if event.Worker != "" {
		headers = append(headers, kafka.Header{Key: "worker", Value: []byte(event.Worker)})
	}
	return headers
}

func (s *KafkaSink) Write(ctx context.Context, event *Event) error {
	if s.closed.Load() {
		metrics.AuditSinkErrors.WithLabelValues(s.name, "closed").Inc()
		return errors.New("kafka sink is closed")
	}

	value, err := json.Marshal(event)
	if err != nil {
		s.failed.Add(1)
		metrics.AuditSinkErrors.WithLabelValues(s.name, "serialization").Inc()
		return fmt.Errorf("marshal audit event %s: %w", event.ID, err)
	}

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:     messageKey(event),
		Value:   value,
		Headers: messageHeaders(event),
		Time:    event.Timestamp,
	})
	if err == nil {
		s.written.Add(1)
		return nil
	}

	class := classifyKafkaError(err)
	s.failed.Add(1)
	metrics.AuditSinkErrors.WithLabelValues(s.name, class).Inc()

	fields := []zap.Field{
		zap.Error(err),
		zap.String("error_type", class),
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.Int64("item_id", event.ItemID),
	}
	if class == "network" || class == "timeout" {
		s.logger.Warn("Kafka unavailable, audit event dropped", fields...)
	} else {
		s.logger.Error("Failed to write audit event to Kafka", fields...)
	}
	return fmt.Errorf("kafka write (%s): %w", class, err)
}

// Close flushes pending batches. Further writes fail.
func (s *KafkaSink) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	written, failed := s.MessageStats()
	s.logger.Info("Closing Kafka audit sink",
		zap.String("name", s.name),
		zap.Int64("messages_written", written),
		zap.Int64("messages_failed", failed))
	if err := s.writer.Close(); err != nil {
		return fmt.Errorf("close kafka writer: %w", err)
	}
	return nil
}

func (s *KafkaSink) Name() string {
	return s.name
}

func (s *KafkaSink) MessageStats() (written, failed int64) {
	return s.written.Load(), s.failed.Load()
}

// errorMarkers maps substrings of unstructured errors to a class, checked in
// order.
var errorMarkers = []struct {
	class   string
	markers []string
}{
	{"auth", []string{"SASL", "authentication"}},
	{"network", []string{"connection refused", "no such host"}},
	{"broker", []string{"broker", "leader"}},
	{"tls", []string{"TLS", "certificate", "x509"}},
}

// classifyKafkaError buckets err for the sink error metric.
func classifyKafkaError(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	}

	var kerr kafka.Error
	if errors.As(err, &kerr) {
		if kerr == kafka.SASLAuthenticationFailed {
			return "auth"
		}
		return "broker"
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return "timeout"
		}
		return "network"
	}

	msg := err.Error()
	for _, m := range errorMarkers {
		for _, marker := range m.markers {
			if strings.Contains(msg, marker) {
				return m.class
			}
		}
	}
	return "other"
}

func buildTLSConfig(cfg *KafkaTLSConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // opt-in for test brokers
	}

	pem := cfg.CACert
	if cfg.CAFile != "" {
		data, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}
		pem = append(append([]byte{}, pem...), data...)
	}
	if len(pem) > 0 {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.New("no valid CA certificate found")
		}
		tlsConfig.RootCAs = pool
	}
	return tlsConfig, nil
}

var scramAlgorithms = map[string]scram.Algorithm{
	"SCRAM-SHA-256": scram.SHA256,
	"SCRAM-SHA-512": scram.SHA512,
}

func buildSASLMechanism(cfg *KafkaSASLConfig) (sasl.Mechanism, error) {
	name := strings.ToUpper(cfg.Mechanism)
	if name == "PLAIN" {
		return plain.Mechanism{Username: cfg.Username, Password: cfg.Password}, nil
	}
	algo, ok := scramAlgorithms[name]
	if !ok {
		return nil, fmt.Errorf("unsupported SASL mechanism %q", cfg.Mechanism)
	}
	mechanism, err := scram.Mechanism(algo, cfg.Username, cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return mechanism, nil
}
