package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telekom/mail-dispatcher/pkg/output"
)

func NewResultCommand() *cobra.Command {
	var (
		endpointID int64
		itemID     int64
		keep       bool
	)

	cmd := &cobra.Command{
		Use:   "result",
		Short: "Collect the delivery outcome of an item",
		Long:  "Collect the delivery outcome of an item. The outcome is removed from the server unless --keep is set.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, c, err := clientFor(cmd)
			if err != nil {
				return err
			}
			res, err := c.Result(cmd.Context(), endpointID, itemID, !keep)
			if err != nil {
				return err
			}
			if rt.Format() == output.FormatTable {
				_, err = fmt.Fprintf(rt.Writer(), "%d %s %d %q\n", int(res.Status), res.Status, res.ErrorCode, res.ErrorText)
				return err
			}
			return output.WriteObject(rt.Writer(), rt.Format(), res)
		},
	}

	cmd.Flags().Int64Var(&endpointID, "endpoint", 0, "Endpoint id")
	cmd.Flags().Int64Var(&itemID, "item", 0, "Item id")
	cmd.Flags().BoolVar(&keep, "keep", false, "Leave the outcome on the server")
	_ = cmd.MarkFlagRequired("endpoint")
	_ = cmd.MarkFlagRequired("item")

	return cmd
}
