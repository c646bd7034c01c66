package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/telekom/mail-dispatcher/pkg/api"
	"github.com/telekom/mail-dispatcher/pkg/output"
)

func NewEndpointCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "endpoint",
		Aliases: []string{"endpoints", "ep"},
		Short:   "Manage SMTP endpoints",
	}
	cmd.AddCommand(newEndpointRegisterCommand(), newEndpointListCommand(), newEndpointRemoveCommand())
	return cmd
}

func newEndpointRegisterCommand() *cobra.Command {
	var req api.RegisterEndpointRequest

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register an SMTP endpoint and print its id",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, c, err := clientFor(cmd)
			if err != nil {
				return err
			}
			id, err := c.RegisterEndpoint(cmd.Context(), req)
			if err != nil {
				return err
			}
			if rt.Format() == output.FormatTable {
				_, err = fmt.Fprintln(rt.Writer(), id)
				return err
			}
			return output.WriteObject(rt.Writer(), rt.Format(), map[string]int64{"id": id})
		},
	}

	cmd.Flags().StringVar(&req.Host, "host", "", "SMTP host")
	cmd.Flags().IntVar(&req.Port, "port", 25, "SMTP port")
	cmd.Flags().IntVar(&req.SecurityMode, "security", 0, "Security mode: 0 none, 1 STARTTLS, 2 SSL, 3 default")
	cmd.Flags().StringVar(&req.User, "user", "", "SMTP user")
	cmd.Flags().StringVar(&req.Password, "password", "", "SMTP password")
	cmd.Flags().StringVar(&req.Database, "database", "", "Database namespace of items sent through this endpoint")
	cmd.Flags().StringVar(&req.Banner, "banner", "", "X-Mailer header value")

	return cmd
}

func newEndpointListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, c, err := clientFor(cmd)
			if err != nil {
				return err
			}
			endpoints, err := c.ListEndpoints(cmd.Context())
			if err != nil {
				return err
			}
			if rt.Format() == output.FormatTable {
				output.WriteEndpointTable(rt.Writer(), endpoints)
				return nil
			}
			return output.WriteObject(rt.Writer(), rt.Format(), endpoints)
		},
	}
}

func newEndpointRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove ID",
		Short: "Remove an endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			_, c, err := clientFor(cmd)
			if err != nil {
				return err
			}
			return c.RemoveEndpoint(cmd.Context(), id)
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return id, nil
}
