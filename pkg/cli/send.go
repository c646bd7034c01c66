package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/telekom/mail-dispatcher/pkg/api"
	"github.com/telekom/mail-dispatcher/pkg/client"
	"github.com/telekom/mail-dispatcher/pkg/output"
)

type sendResult struct {
	ItemID int64  `json:"itemId" yaml:"itemId"`
	Result int    `json:"result" yaml:"result"`
	Code   string `json:"code" yaml:"code"`
}

func NewSendCommand() *cobra.Command {
	var (
		endpointID int64
		bodyFile   string
		req        api.SendItemRequest
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Submit a mail item to an endpoint",
		Long: "Submit a mail item. Queued items report 0 once accepted; collect the " +
			"delivery outcome with `result`. With --immediate the item is delivered " +
			"before the command returns and the delivery status is printed.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if bodyFile != "" {
				body, err := readBody(cmd, bodyFile)
				if err != nil {
					return err
				}
				req.Body = body
			}

			rt, c, err := clientFor(cmd)
			if err != nil {
				return err
			}
			code, err := c.Send(cmd.Context(), endpointID, req)
			var httpErr *client.HTTPError
			if err != nil && !errors.As(err, &httpErr) {
				return err
			}
			// A rejected item still prints its result code before failing.
			res := sendResult{ItemID: req.ItemID, Result: int(code), Code: code.String()}
			if rt.Format() == output.FormatTable {
				_, _ = fmt.Fprintf(rt.Writer(), "%d %s\n", res.Result, res.Code)
			} else if werr := output.WriteObject(rt.Writer(), rt.Format(), res); werr != nil {
				return werr
			}
			return err
		},
	}

	cmd.Flags().Int64Var(&endpointID, "endpoint", 0, "Endpoint id")
	cmd.Flags().Int64Var(&req.ItemID, "item", 0, "Caller-assigned item id")
	cmd.Flags().StringVar(&req.SenderName, "from-name", "", "Sender display name")
	cmd.Flags().StringVar(&req.SenderAddress, "from", "", "Sender address")
	cmd.Flags().StringVar(&req.RecipientName, "to-name", "", "Recipient display name")
	cmd.Flags().StringVar(&req.RecipientAddress, "to", "", "Recipient address")
	cmd.Flags().StringVar(&req.Subject, "subject", "", "Subject, at least 10 characters")
	cmd.Flags().StringVar(&req.Body, "body", "", "Body; HTML is detected automatically")
	cmd.Flags().StringVar(&bodyFile, "body-file", "", "Read the body from a file, - for stdin")
	cmd.Flags().IntVar(&req.Priority, "priority", 1, "Priority: 0 low, 1 normal, 2 high")
	cmd.Flags().BoolVar(&req.Immediate, "immediate", false, "Deliver now instead of queueing")
	_ = cmd.MarkFlagRequired("endpoint")
	_ = cmd.MarkFlagRequired("item")

	return cmd
}

func readBody(cmd *cobra.Command, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read body: %w", err)
	}
	return string(data), nil
}
