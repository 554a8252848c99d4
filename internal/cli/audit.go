package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var auditLimit int

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the arbitration audit trail",
}

var auditTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Show recent arbitration events, newest first",
	Run: func(cmd *cobra.Command, args []string) {
		e := requireEnv()
		defer e.close()

		events, err := e.audits.Tail(context.Background(), auditLimit)
		if err != nil {
			fmtErr("read audit log: %v", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(events)
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tACTOR\tACTION\tTARGET\tDETAIL")
		for _, ev := range events {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				ev.Time.Local().Format(time.RFC3339),
				ev.Actor.Display(),
				ev.Action,
				ev.TargetHolder,
				ev.Detail)
		}
		w.Flush()
	},
}

func init() {
	auditTailCmd.Flags().IntVarP(&auditLimit, "limit", "n", 20, "number of events to show")
	auditCmd.AddCommand(auditTailCmd)
	rootCmd.AddCommand(auditCmd)
}
