package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/telekom/mail-dispatcher/pkg/api"
	"github.com/telekom/mail-dispatcher/pkg/audit"
	"github.com/telekom/mail-dispatcher/pkg/config"
	"github.com/telekom/mail-dispatcher/pkg/dispatcher"
	"github.com/telekom/mail-dispatcher/pkg/mail"
	"github.com/telekom/mail-dispatcher/pkg/system"
	"github.com/telekom/mail-dispatcher/pkg/version"
	"github.com/telekom/mail-dispatcher/pkg/worker"
)

func NewServeCommand() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dispatcher and its HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			log, err := system.NewLogger(debug)
			if err != nil {
				return fmt.Errorf("failed to build logger: %w", err)
			}
			defer func() { _ = log.Sync() }()

			log.Sugar().With("version", version.Version).Infof("Starting %s", version.Name)

			srv, err := newServer(cfg, mail.NewSMTPTransport(mail.SMTPOptions{
				InsecureSkipVerify: cfg.Queue.InsecureSkipVerify,
			}, log.Sugar()), log, debug)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return srv.run(ctx)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to the config file (default $"+config.EnvConfigPath+" or ./config.yaml)")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")

	return cmd
}

// server bundles the long-running pieces started by serve.
type server struct {
	cfg        config.Config
	dispatcher *dispatcher.Dispatcher
	http       *api.Server
	recorder   *audit.Recorder
	log        *zap.Logger
}

func newServer(cfg config.Config, transport mail.Transport, log *zap.Logger, debug bool) (*server, error) {
	sugar := log.Sugar()

	d := dispatcher.New(worker.NewRegistry(sugar), transport, dispatcher.Options{
		Queue: mail.QueueConfig{
			WorkerName:  cfg.Queue.WorkerName,
			RunInterval: cfg.Queue.RunIntervalDuration(),
			StartDelay:  cfg.Queue.StartDelayDuration(),
			ItemDelay:   cfg.Queue.ItemDelayDuration(),
			Tick:        worker.DefaultTick,
		},
		ResultRetention: cfg.Results.RetentionDuration(),
		PruneInterval:   cfg.Results.PruneIntervalDuration(),
	}, sugar)

	for _, ep := range cfg.Endpoints {
		id, err := d.RegisterEndpoint(ep)
		if err != nil {
			return nil, fmt.Errorf("endpoint %s:%d from config: %w", ep.Host, ep.Port, err)
		}
		sugar.Infow("Registered endpoint from config", "endpointID", id, "host", ep.Host, "database", ep.Database)
	}

	s := &server{cfg: cfg, dispatcher: d, log: log}

	if cfg.Audit.Enabled {
		rec, err := newRecorder(cfg.Audit, log)
		if err != nil {
			return nil, err
		}
		rec.Attach(d.Queue(), d.Queue().Worker())
		s.recorder = rec
	}

	s.http = api.NewServer(log, cfg.Server, debug)
	if s.recorder != nil {
		rec := s.recorder
		s.http.AddHealthCheck("audit", func() (any, bool) {
			sinks, healthy := rec.Health()
			return sinks, healthy
		})
	}
	if err := s.http.RegisterAll([]api.APIController{api.NewDispatcherController(sugar, d)}); err != nil {
		return nil, err
	}
	return s, nil
}

func newRecorder(cfg config.Audit, log *zap.Logger) (*audit.Recorder, error) {
	queued := audit.DefaultQueuedSinkConfig()
	if cfg.QueueSize > 0 {
		queued.QueueSize = cfg.QueueSize
	}

	sinks := []audit.Sink{audit.NewQueuedSink(audit.NewLogSink(log), queued, log)}
	if len(cfg.Kafka.Brokers) > 0 {
		ks, err := audit.NewKafkaSink(audit.KafkaSinkConfig{
			Brokers:  cfg.Kafka.Brokers,
			Topic:    cfg.Kafka.Topic,
			ClientID: cfg.Kafka.ClientID,
			TLS: &audit.KafkaTLSConfig{
				Enabled:            cfg.Kafka.TLS,
				CAFile:             cfg.Kafka.CAFile,
				InsecureSkipVerify: cfg.Kafka.InsecureSkipVerify,
			},
			SASL: &audit.KafkaSASLConfig{
				Mechanism: cfg.Kafka.SASL.Mechanism,
				Username:  cfg.Kafka.SASL.Username,
				Password:  cfg.Kafka.SASL.Password,
			},
		}, log)
		if err != nil {
			for _, s := range sinks {
				_ = s.Close()
			}
			return nil, fmt.Errorf("failed to create kafka audit sink: %w", err)
		}
		sinks = append(sinks, audit.NewQueuedSink(ks, queued, log))
	}
	return audit.NewRecorder(audit.NewMultiSink(sinks, log), log), nil
}

// run serves until ctx is done, then stops the API before draining the
// dispatcher so no request races the shutdown.
func (s *server) run(ctx context.Context) error {
	sugar := s.log.Sugar()
	s.dispatcher.Start()

	errCh := make(chan error, 1)
	go func() { errCh <- s.http.Listen() }()

	var serveErr error
	select {
	case <-ctx.Done():
		sugar.Info("Shutdown requested")
	case serveErr = <-errCh:
		if serveErr != nil {
			sugar.Errorw("HTTP server failed", "error", serveErr)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeoutDuration())
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		sugar.Warnw("HTTP shutdown incomplete", "error", err)
	}

	if killed := s.dispatcher.Shutdown(s.cfg.Queue.ShutdownTimeoutDuration()); killed > 0 {
		sugar.Warnw("Workers terminated after grace period", "count", killed)
	}

	if s.recorder != nil {
		if err := s.recorder.Close(); err != nil {
			serveErr = errors.Join(serveErr, fmt.Errorf("closing audit sinks: %w", err))
		}
	}
	sugar.Info("Stopped")
	return serveErr
}
