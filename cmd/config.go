package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/agentrun/internal/config"
)

// configValidateCmd returns the "config" command group, whose only
// subcommand today is "validate".
func configValidateCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate configuration",
	}
	root.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load and validate the config file without starting the server",
		Run: func(cmd *cobra.Command, args []string) {
			path := resolveConfigPath()
			cfg, err := config.Load(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "agentrun: %s: invalid: %v\n", path, err)
				os.Exit(1)
			}
			fmt.Printf("agentrun: %s: ok (model=%s provider=%s cron_jobs=%d workflows_dir=%q)\n",
				path, cfg.Model.Name, cfg.Model.Provider, len(cfg.Cron.Jobs), cfg.Workflows.Dir)
		},
	})
	return root
}
