package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/propsync/propsync/pkg/color"
	"github.com/propsync/propsync/pkg/errclass"
)

var renewCmd = &cobra.Command{
	Use:   "renew",
	Short: "Renew the heartbeat on the held write lock",
	Run: func(cmd *cobra.Command, args []string) {
		e := requireEnv()
		defer e.close()

		ctx := context.Background()
		id := requireIdentity(ctx, e)

		ls, err := loadLocalSession()
		if err != nil {
			fmtErr("no local session (run 'propsync acquire' first)")
			os.Exit(1)
		}

		if err := e.arb.RenewOrDetectTheft(ctx, id, ls.SessionID); err != nil {
			if errors.Is(err, errclass.ErrSessionSuperseded) {
				clearLocalSession()
				fmtErr("write lock lost: the session was reclaimed by another client")
				os.Exit(1)
			}
			fmtErr("renew heartbeat: %v", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(map[string]any{"session_id": ls.SessionID, "renewed": true})
			return
		}
		fmt.Println(color.Success("Heartbeat renewed"))
	},
}

var releaseCmd = &cobra.Command{
	Use:   "release",
	Short: "Release the held write lock",
	Run: func(cmd *cobra.Command, args []string) {
		e := requireEnv()
		defer e.close()

		ctx := context.Background()
		id := requireIdentity(ctx, e)

		ls, err := loadLocalSession()
		if err != nil {
			fmtErr("no local session to release")
			os.Exit(1)
		}

		// Release is idempotent: if the session was already reclaimed the
		// delete matches nothing, and the new holder is untouched.
		if err := e.arb.Release(ctx, id, ls.SessionID); err != nil {
			fmtErr("release lock: %v", err)
			os.Exit(1)
		}
		clearLocalSession()

		if jsonOutput {
			outputJSON(map[string]any{"session_id": ls.SessionID, "released": true})
			return
		}
		fmt.Println(color.Success("Write lock released"))
	},
}

func init() {
	rootCmd.AddCommand(renewCmd)
	rootCmd.AddCommand(releaseCmd)
}
