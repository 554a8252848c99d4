package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/propsync/propsync/pkg/color"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show who holds the write lock",
	Run: func(cmd *cobra.Command, args []string) {
		e := requireEnv()
		defer e.close()

		ctx := context.Background()
		id := requireIdentity(ctx, e)

		st, err := e.arb.Status(ctx, id)
		if err != nil {
			fmtErr("check lock status: %v", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(st)
			return
		}

		if !st.IsLocked {
			fmt.Println(color.Success("Write lock is free"))
			if st.MarkerPresent {
				fmt.Println(color.Dim("  (stale marker file present; it will be reconciled on the next acquisition)"))
			}
			return
		}

		holder := st.Holder
		fmt.Printf("Write lock held by %s\n", color.Holder(holder.HolderDisplay()))
		fmt.Printf("  Acquired:       %s\n", holder.AcquiredAt.Local().Format(time.RFC3339))
		fmt.Printf("  Last heartbeat: %s (%s ago)\n",
			holder.LastHeartbeat.Local().Format(time.RFC3339),
			time.Since(holder.LastHeartbeat).Round(time.Second))
		if holder.IsStale(time.Now(), e.cfg.LockPolicy().StalenessTimeout) {
			fmt.Println(color.Warning("  Heartbeat is stale; the lock is eligible for reclamation"))
		}
		if st.CanForceUnlock {
			fmt.Println(color.Dim("  You may force-unlock ('propsync force-unlock')"))
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
