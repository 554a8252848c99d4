package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/propsync/propsync/pkg/color"
	"github.com/propsync/propsync/pkg/errclass"
)

var forceUnlockYes bool

var forceUnlockCmd = &cobra.Command{
	Use:   "force-unlock",
	Short: "Forcibly remove the current write lock (admin only)",
	Long: `Removes the active write lock regardless of heartbeat freshness. The
displaced holder's client demotes itself to read-only on its next
heartbeat. Requires an active admin user; the action is audited with both
identities.`,
	Run: func(cmd *cobra.Command, args []string) {
		e := requireEnv()
		defer e.close()

		ctx := context.Background()
		id := requireIdentity(ctx, e)

		if !forceUnlockYes {
			st, err := e.arb.Status(ctx, id)
			if err != nil {
				fmtErr("check lock status: %v", err)
				os.Exit(1)
			}
			if !st.IsLocked {
				fmt.Println("No write lock is held.")
				return
			}
			fmt.Printf("Force-unlock will displace %s. The holder loses write access mid-session.\n",
				color.Holder(st.Holder.HolderDisplay()))
			fmt.Print("Proceed? [y/N]: ")
			line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
			if ans := strings.ToLower(strings.TrimSpace(line)); ans != "y" && ans != "yes" {
				fmt.Println("Aborted.")
				return
			}
		}

		prior, err := e.arb.ForceUnlock(ctx, id)
		if err != nil {
			if errors.Is(err, errclass.ErrUnauthorized) {
				fmtErr("force-unlock requires an active admin user")
				os.Exit(1)
			}
			fmtErr("force-unlock: %v", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(map[string]any{"displaced": prior})
			return
		}
		if prior == nil {
			fmt.Println("No write lock was held.")
			return
		}
		fmt.Printf("%s (displaced %s)\n",
			color.Success("Write lock removed"),
			color.Holder(prior.HolderDisplay()))
	},
}

func init() {
	forceUnlockCmd.Flags().BoolVarP(&forceUnlockYes, "yes", "y", false, "skip the confirmation prompt")
	rootCmd.AddCommand(forceUnlockCmd)
}
