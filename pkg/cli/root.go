package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/telekom/mail-dispatcher/pkg/client"
	"github.com/telekom/mail-dispatcher/pkg/output"
)

const defaultServer = "http://localhost:8080"

type Config struct {
	OutputWriter io.Writer
}

type runtimeState struct {
	server       string
	outputFormat string
	timeout      time.Duration
	caFile       string
	insecure     bool
	writer       io.Writer
}

type runtimeKey struct{}

func DefaultConfig() Config {
	return Config{OutputWriter: os.Stdout}
}

func NewRootCommand(cfg Config) *cobra.Command {
	rt := &runtimeState{writer: cfg.OutputWriter}

	root := &cobra.Command{
		Use:           "mail-dispatcher",
		Short:         "Queued SMTP mail dispatcher",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if rt.writer == nil {
				rt.writer = os.Stdout
			}
			if rt.server == "" {
				rt.server = os.Getenv("MAIL_DISPATCHER_SERVER")
			}
			if rt.server == "" {
				rt.server = defaultServer
			}
			if rt.outputFormat == "" {
				rt.outputFormat = os.Getenv("MAIL_DISPATCHER_OUTPUT")
			}
			_, err := output.ParseFormat(rt.outputFormat)
			return err
		},
	}

	root.PersistentFlags().StringVar(&rt.server, "server", "", "API server URL (default "+defaultServer+")")
	root.PersistentFlags().StringVarP(&rt.outputFormat, "output", "o", "", "Output format: table, json, yaml")
	root.PersistentFlags().DurationVar(&rt.timeout, "timeout", 30*time.Second, "Request timeout")
	root.PersistentFlags().StringVar(&rt.caFile, "ca-file", "", "CA bundle for the API server certificate")
	root.PersistentFlags().BoolVar(&rt.insecure, "insecure-skip-tls-verify", false, "Skip API server certificate verification")

	root.SetContext(context.WithValue(context.Background(), runtimeKey{}, rt))

	root.AddCommand(
		NewServeCommand(),
		NewEndpointCommand(),
		NewSendCommand(),
		NewResultCommand(),
		NewQueueCommand(),
		NewWorkersCommand(),
		NewVersionCommand(),
	)

	return root
}

func getRuntime(cmd *cobra.Command) (*runtimeState, error) {
	rt, ok := cmd.Context().Value(runtimeKey{}).(*runtimeState)
	if !ok || rt == nil {
		return nil, errors.New("runtime not initialized")
	}
	return rt, nil
}

func (rt *runtimeState) Writer() io.Writer {
	if rt.writer == nil {
		return os.Stdout
	}
	return rt.writer
}

func (rt *runtimeState) Format() output.Format {
	f, _ := output.ParseFormat(rt.outputFormat)
	return f
}

func (rt *runtimeState) Client() (*client.Client, error) {
	opts := []client.Option{
		client.WithServer(rt.server),
		client.WithTimeout(rt.timeout),
	}
	if rt.caFile != "" || rt.insecure {
		opts = append(opts, client.WithTLSConfig(rt.caFile, rt.insecure))
	}
	return client.New(opts...)
}

// clientFor resolves the runtime and its API client for cmd.
func clientFor(cmd *cobra.Command) (*runtimeState, *client.Client, error) {
	rt, err := getRuntime(cmd)
	if err != nil {
		return nil, nil, err
	}
	c, err := rt.Client()
	if err != nil {
		return nil, nil, err
	}
	return rt, c, nil
}
