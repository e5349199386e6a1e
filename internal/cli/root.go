// Package cli wires the cobra command tree for the rewards-hub binary:
// the long-running server, database migrations, and one-shot reward
// pipeline commands for operators.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "rewards-hub",
	Short: "Monthly ranking and reward pipeline",
	Long: `rewards-hub freezes monthly rankings into snapshots and pays out
tiered rewards in resumable batches. It exposes admin trigger endpoints
for external cron plus public read endpoints for reward history and the
frozen leaderboard.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(rewardsCmd)
	rootCmd.AddCommand(hashKeyCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// hashKeyCmd generates the bcrypt hash operators put in
// REWARDS_API_KEY_HASH.
var hashKeyCmd = &cobra.Command{
	Use:   "hash-key <key>",
	Short: "Generate a bcrypt hash for an admin API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := hashAPIKey(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}
