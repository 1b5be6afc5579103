package cli

import (
	"fmt"
	"strconv"

	"github.com/sheikh-saqib/commitment-savings-ledger/internal/config"
	"github.com/sheikh-saqib/commitment-savings-ledger/internal/ledger"
	"github.com/sheikh-saqib/commitment-savings-ledger/internal/storage"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(envFile)
		if err != nil {
			return err
		}
		if cfg.Storage.Driver == config.StorageMemory {
			fmt.Fprintln(cmd.OutOrStdout(), "memory storage has no schema")
			return nil
		}

		backend, err := storage.Open(cmd.Context(), cfg.Storage)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		defer backend.Close()

		fmt.Fprintf(cmd.OutOrStdout(), "%s schema is up to date\n", backend.Driver)
		return nil
	},
}

var routingTagCmd = &cobra.Command{
	Use:   "routing-tag <account-id>",
	Short: "Print the routing tag senders attach to credit an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil || id == 0 {
			return fmt.Errorf("invalid account id %q", args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), ledger.FormatRoutingTag(id))
		return nil
	},
}
