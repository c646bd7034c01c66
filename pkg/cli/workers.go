package cli

import (
	"github.com/spf13/cobra"

	"github.com/telekom/mail-dispatcher/pkg/output"
)

func NewWorkersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "workers",
		Short: "List the server's background workers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, c, err := clientFor(cmd)
			if err != nil {
				return err
			}
			workers, err := c.Workers(cmd.Context())
			if err != nil {
				return err
			}
			if rt.Format() == output.FormatTable {
				output.WriteWorkerTable(rt.Writer(), workers)
				return nil
			}
			return output.WriteObject(rt.Writer(), rt.Format(), workers)
		},
	}
}
