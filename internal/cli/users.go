package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/propsync/propsync/pkg/color"
)

var (
	userDisplayName string
	userIsAdmin     bool
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage the user registry",
}

var usersAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Register a user",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		e := requireEnv()
		defer e.close()

		u, err := e.users.Create(context.Background(), args[0], userDisplayName, userIsAdmin)
		if err != nil {
			fmtErr("add user: %v", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(u)
			return
		}
		role := "user"
		if u.IsAdmin {
			role = "admin"
		}
		fmt.Printf("%s %s (%s)\n", color.Success("Added"), u.Username, role)
	},
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered users",
	Run: func(cmd *cobra.Command, args []string) {
		e := requireEnv()
		defer e.close()

		users, err := e.users.List(context.Background())
		if err != nil {
			fmtErr("list users: %v", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(users)
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "USERNAME\tDISPLAY NAME\tADMIN\tACTIVE")
		for _, u := range users {
			fmt.Fprintf(w, "%s\t%s\t%v\t%v\n", u.Username, u.DisplayName, u.IsAdmin, u.IsActive)
		}
		w.Flush()
	},
}

func init() {
	usersAddCmd.Flags().StringVar(&userDisplayName, "display-name", "", "human-readable name")
	usersAddCmd.Flags().BoolVar(&userIsAdmin, "admin", false, "grant force-unlock permission")
	usersCmd.AddCommand(usersAddCmd)
	usersCmd.AddCommand(usersListCmd)
	rootCmd.AddCommand(usersCmd)
}
