package cli

import (
	"github.com/spf13/cobra"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "savings",
	Short: "Commitment-savings ledger",
	Long: "Savings runs a goal-account ledger: deposits decay while they stop arriving, " +
		"freeze once the goal is reached, and the operator collects what decayed away.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(routingTagCmd)
}
