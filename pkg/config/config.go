package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/telekom/mail-dispatcher/pkg/endpoint"
)

// EnvConfigPath overrides the default config file location.
const EnvConfigPath = "MAIL_DISPATCHER_CONFIG"

const defaultConfigPath = "./config.yaml"

type Server struct {
	ListenAddress string `yaml:"listenAddress"`
	TLSCertFile   string `yaml:"tlsCertFile"`
	TLSKeyFile    string `yaml:"tlsKeyFile"`
	// AllowedOrigins enables CORS for the listed origins. Empty disables CORS.
	AllowedOrigins []string  `yaml:"allowedOrigins"`
	RateLimit      RateLimit `yaml:"rateLimit"`
	// ShutdownTimeout bounds graceful HTTP shutdown (e.g. "10s").
	ShutdownTimeout string `yaml:"shutdownTimeout"`
}

// RateLimit configures per-client-IP request limiting. A zero rate disables it.
type RateLimit struct {
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
	Burst             int     `yaml:"burst"`
}

type Queue struct {
	WorkerName string `yaml:"workerName"`
	// RunInterval is the minimum time between two drain passes (e.g. "10s").
	RunInterval string `yaml:"runInterval"`
	StartDelay  string `yaml:"startDelay"`
	// ItemDelay throttles delivery: the pause after every item (e.g. "200ms").
	ItemDelay string `yaml:"itemDelay"`
	// ShutdownTimeout is the grace period before workers are terminated.
	ShutdownTimeout    string `yaml:"shutdownTimeout"`
	InsecureSkipVerify bool   `yaml:"insecureSkipVerify"`
}

type Results struct {
	// Retention prunes uncollected outcomes older than this. Empty or zero
	// keeps them until collected.
	Retention     string `yaml:"retention"`
	PruneInterval string `yaml:"pruneInterval"`
}

type Audit struct {
	Enabled bool `yaml:"enabled"`
	// QueueSize bounds the in-memory buffer in front of each sink.
	QueueSize int   `yaml:"queueSize"`
	Kafka     Kafka `yaml:"kafka"`
}

type Kafka struct {
	Brokers  []string `yaml:"brokers"`
	Topic    string   `yaml:"topic"`
	ClientID string   `yaml:"clientID"`
	TLS      bool     `yaml:"tls"`
	// CAFile verifies the brokers against a private CA.
	CAFile string `yaml:"caFile"`
	// InsecureSkipVerify disables broker certificate verification.
	InsecureSkipVerify bool `yaml:"insecureSkipVerify"`
	SASL               SASL `yaml:"sasl"`
}

// SASL authenticates against the brokers. An empty mechanism disables it.
type SASL struct {
	// Mechanism is PLAIN, SCRAM-SHA-256 or SCRAM-SHA-512.
	Mechanism string `yaml:"mechanism"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
}

type Config struct {
	Server    Server            `yaml:"server"`
	Queue     Queue             `yaml:"queue"`
	Results   Results           `yaml:"results"`
	Audit     Audit             `yaml:"audit"`
	Endpoints []endpoint.Config `yaml:"endpoints"`
}

// Defaults returns the configuration used when a field is not set.
func Defaults() Config {
	return Config{
		Server: Server{
			ListenAddress:   ":8080",
			ShutdownTimeout: "10s",
		},
		Queue: Queue{
			WorkerName:      "mail dispatch worker",
			RunInterval:     "10s",
			StartDelay:      "0s",
			ItemDelay:       "200ms",
			ShutdownTimeout: "5s",
		},
		Results: Results{
			PruneInterval: "1m",
		},
		Audit: Audit{
			QueueSize: 1000,
		},
	}
}

// Load reads the configuration from the given path, the path named by
// MAIL_DISPATCHER_CONFIG, or ./config.yaml, in that order. Values missing
// from the file keep their defaults.
func Load(configPath ...string) (Config, error) {
	path := defaultConfigPath
	if env := os.Getenv(EnvConfigPath); env != "" {
		path = env
	}
	if len(configPath) > 0 && configPath[0] != "" {
		path = configPath[0]
	}

	config := Defaults()

	content, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("trying to open mail dispatcher config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(content, &config); err != nil {
		return config, fmt.Errorf("error unmarshaling YAML %s: %w", path, err)
	}
	return config, nil
}

// ParseDurationOrDefault parses value, returning def when it is empty,
// invalid or not positive.
func ParseDurationOrDefault(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// parseDurationOrZero is ParseDurationOrDefault for settings where zero is a
// legitimate value.
func parseDurationOrZero(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

func (q Queue) RunIntervalDuration() time.Duration {
	return ParseDurationOrDefault(q.RunInterval, 10*time.Second)
}

func (q Queue) StartDelayDuration() time.Duration {
	return parseDurationOrZero(q.StartDelay)
}

func (q Queue) ItemDelayDuration() time.Duration {
	if q.ItemDelay == "" {
		return 200 * time.Millisecond
	}
	return parseDurationOrZero(q.ItemDelay)
}

func (q Queue) ShutdownTimeoutDuration() time.Duration {
	return ParseDurationOrDefault(q.ShutdownTimeout, 5*time.Second)
}

func (r Results) RetentionDuration() time.Duration {
	return parseDurationOrZero(r.Retention)
}

func (r Results) PruneIntervalDuration() time.Duration {
	return ParseDurationOrDefault(r.PruneInterval, time.Minute)
}

func (s Server) ShutdownTimeoutDuration() time.Duration {
	return ParseDurationOrDefault(s.ShutdownTimeout, 10*time.Second)
}
