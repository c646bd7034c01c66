package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/telekom/mail-dispatcher/pkg/api"
	"github.com/telekom/mail-dispatcher/pkg/output"
)

func NewQueueCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and cancel queued items per database",
	}
	cmd.AddCommand(newQueueCountCommand(), newQueueCancelCommand())
	return cmd
}

func newQueueCountCommand() *cobra.Command {
	var (
		cancel bool
		wait   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "count DATABASE",
		Short: "Count queued and in-flight items of a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, c, err := clientFor(cmd)
			if err != nil {
				return err
			}
			n, err := c.QueueCount(cmd.Context(), args[0], cancel, wait)
			if err != nil {
				return err
			}
			if rt.Format() == output.FormatTable {
				_, err = fmt.Fprintln(rt.Writer(), n)
				return err
			}
			return output.WriteObject(rt.Writer(), rt.Format(), api.CountResponse{Database: args[0], Count: n})
		},
	}

	cmd.Flags().BoolVar(&cancel, "cancel", false, "Drop the counted items")
	cmd.Flags().DurationVar(&wait, "wait", 0, "Back off up to this long (max 1s) when items remain")

	return cmd
}

func newQueueCancelCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel DATABASE",
		Short: "Drop every queued item of a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, c, err := clientFor(cmd)
			if err != nil {
				return err
			}
			return c.CancelQueued(cmd.Context(), args[0])
		},
	}
}
