package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/agentrun/internal/session"
)

// sessionsListCmd returns the "sessions" command group, whose only
// subcommand today is "list".
func sessionsListCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect session history",
	}
	root.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every session, most recently active first",
		Run: func(cmd *cobra.Command, args []string) {
			sessionsRoot := os.Getenv("AGENTRUN_SESSIONS_DIR")
			if sessionsRoot == "" {
				sessionsRoot = "sessions"
			}
			metas, err := session.New(sessionsRoot).List()
			if err != nil {
				fmt.Fprintf(os.Stderr, "agentrun: list sessions: %v\n", err)
				os.Exit(1)
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSOURCE\tMODEL\tMESSAGES\tLAST ACTIVE")
			for _, m := range metas {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
					m.ID, m.Name, m.Source, m.Model, m.MessageCount, m.LastMessageAt.Format("2006-01-02 15:04"))
			}
			w.Flush()
		},
	})
	return root
}
