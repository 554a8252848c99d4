package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/propsync/propsync/internal/arbiter"
	"github.com/propsync/propsync/pkg/color"
)

var acquireCmd = &cobra.Command{
	Use:   "acquire",
	Short: "Acquire the write lock",
	Long: `Attempts to acquire the exclusive write lock. On success the session is
saved locally so 'propsync renew' and 'propsync release' can operate on it
from later invocations. Renew before the staleness timeout elapses, or
another client may reclaim the lock; 'propsync run' does this
automatically.`,
	Run: func(cmd *cobra.Command, args []string) {
		e := requireEnv()
		defer e.close()

		ctx := context.Background()
		id := requireIdentity(ctx, e)

		out, err := e.arb.Acquire(ctx, id)
		if err != nil {
			fmtErr("acquire lock: %v", err)
			os.Exit(1)
		}

		switch out.Decision {
		case arbiter.Granted:
			if err := saveLocalSession(out.Session); err != nil {
				e.log.ErrorErr("save local session", err)
			}
			if jsonOutput {
				outputJSON(out)
				return
			}
			fmt.Println(color.Success("Write lock acquired"))
			fmt.Printf("  Session:  %s\n", out.Session.SessionID)
			fmt.Printf("  Identity: %s\n", out.Session.HolderDisplay())
			fmt.Printf("  Renew within %s or the lock goes stale\n",
				e.cfg.LockPolicy().StalenessTimeout)

		default:
			if jsonOutput {
				outputJSON(out)
				os.Exit(1)
			}
			if out.Holder != nil {
				fmt.Printf("%s %s\n",
					color.Warning("Write lock held by"),
					color.Holder(out.Holder.HolderDisplay()))
				fmt.Printf("  Since: %s\n", out.Holder.AcquiredAt.Local().Format(time.RFC3339))
			}
			fmtErr("%v", out.Err())
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(acquireCmd)
}
