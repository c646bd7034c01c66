package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telekom/mail-dispatcher/pkg/output"
	"github.com/telekom/mail-dispatcher/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version of this binary or, with --remote, of the server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}

			info := version.GetBuildInfo()
			if remote {
				_, c, err := clientFor(cmd)
				if err != nil {
					return err
				}
				if info, err = c.Version(cmd.Context()); err != nil {
					return err
				}
			}

			if rt.Format() == output.FormatTable {
				_, err := fmt.Fprintln(rt.Writer(), info.String())
				return err
			}
			return output.WriteObject(rt.Writer(), rt.Format(), info)
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "Query the server's build info")

	return cmd
}
