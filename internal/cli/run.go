package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/propsync/propsync/internal/marker"
	"github.com/propsync/propsync/internal/mode"
	"github.com/propsync/propsync/pkg/color"
	"github.com/propsync/propsync/pkg/model"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run in the foreground, maintaining the write lock",
	Long: `Runs the full client loop: acquire the write lock when possible, keep it
alive with heartbeats, demote to read-only when it is lost, and retry on
the poll interval (immediately when the marker file changes). Ctrl-C
releases the lock and exits.`,
	Run: func(cmd *cobra.Command, args []string) {
		e := requireEnv()
		defer e.close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		id := requireIdentity(ctx, e)
		ctrl := mode.NewController(e.arb, id, e.cfg.LockPolicy(), e.log)
		ctrl.Subscribe(printTransition)

		// Marker changes trigger an immediate retry; polling still runs
		// underneath for filesystems that drop fsnotify events.
		if w, err := marker.NewWatcher(e.mk, e.log); err != nil {
			e.log.ErrorErr("marker watcher unavailable, polling only", err)
		} else {
			defer w.Close()
			go w.Run(ctx)
			go func() {
				for range w.Changes() {
					ctrl.RequestRetry()
				}
			}()
		}

		ctrl.Start(ctx)
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := ctrl.Shutdown(shutdownCtx); err != nil {
			fmtErr("shutdown: %v", err)
			os.Exit(1)
		}
	},
}

func printTransition(tr mode.Transition) {
	if jsonOutput {
		data, err := json.Marshal(tr)
		if err != nil {
			return
		}
		fmt.Println(string(data))
		return
	}

	switch {
	case tr.To == model.ModeWrite:
		fmt.Println(color.Success("Write mode: you hold the lock"))
	case tr.Reason == mode.ReasonLockLost:
		fmt.Println(color.Warning("Write lock lost; now read-only"))
	case tr.Reason == mode.ReasonStoreDegraded:
		fmt.Println(color.Warning("Store unreachable; read-only until it recovers"))
	case tr.To == model.ModeReadOnly && tr.Holder != nil:
		fmt.Printf("Read-only: lock held by %s\n", color.Holder(tr.Holder.HolderDisplay()))
	case tr.Reason == mode.ReasonShutdown:
		fmt.Println(color.Dim("Released and shut down"))
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
}
