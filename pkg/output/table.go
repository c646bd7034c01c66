package output

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/telekom/mail-dispatcher/pkg/endpoint"
	"github.com/telekom/mail-dispatcher/pkg/worker"
)

func WriteEndpointTable(w io.Writer, endpoints []endpoint.Config) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tHOST\tPORT\tSECURITY\tUSER\tDATABASE")
	for _, e := range endpoints {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\n", e.ID, e.Host, e.Port, e.Security, e.User, e.Database)
	}
	_ = tw.Flush()
}

func WriteWorkerTable(w io.Writer, workers []worker.Info) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tSTATE\tPRIORITY\tSTARTED\tCANCELLED")
	for _, i := range workers {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\n", i.ID, i.Name, i.State, i.Priority, formatTime(i.StartedAt), formatTime(i.CancelledAt))
	}
	_ = tw.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}
