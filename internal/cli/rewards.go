package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/quizhub/rewards-hub/internal/application/command"
	"github.com/quizhub/rewards-hub/internal/application/query"
	"github.com/quizhub/rewards-hub/internal/domain/ranking"
)

var rewardsCmd = &cobra.Command{
	Use:   "rewards",
	Short: "Operate the reward pipeline from the command line",
}

var (
	rewardsInitMonth      int
	rewardsInitYear       int
	rewardsInitCategories []string

	rewardsProcessBudget time.Duration

	rewardsStatusLimit int
)

var rewardsInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Freeze rankings and create reward jobs for a period",
	Long: `Freezes the live rankings into a snapshot per category and creates
the reward jobs that process will advance. Defaults to the previous
calendar month and is safe to re-run: an existing period is reused.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		c := command.InitMonthCommand{
			Month: rewardsInitMonth,
			Year:  rewardsInitYear,
		}
		for _, cat := range rewardsInitCategories {
			c.Categories = append(c.Categories, ranking.Category(cat))
		}

		result, err := a.initMonth.Handle(cmd.Context(), c)
		if err != nil {
			return err
		}
		if err := printJSON(cmd, result); err != nil {
			return err
		}
		if result.Failed() {
			return fmt.Errorf("initialization failed for every category")
		}
		return nil
	},
}

var rewardsProcessCmd = &cobra.Command{
	Use:   "process",
	Short: "Advance claimable reward jobs within the wall-clock budget",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.processJobs.Handle(cmd.Context(), command.ProcessJobsCommand{
			Budget: rewardsProcessBudget,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd, result)
	},
}

var rewardsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show reward job counts and recent progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.jobStatus.Handle(cmd.Context(), query.JobStatusQuery{Limit: rewardsStatusLimit})
		if err != nil {
			return err
		}
		return printJSON(cmd, result)
	},
}

func init() {
	rewardsInitCmd.Flags().IntVar(&rewardsInitMonth, "month", 0, "period month (1-12, requires --year; default: previous month)")
	rewardsInitCmd.Flags().IntVar(&rewardsInitYear, "year", 0, "period year (requires --month)")
	rewardsInitCmd.Flags().StringSliceVar(&rewardsInitCategories, "category", nil, "categories to initialize (default: all)")

	rewardsProcessCmd.Flags().DurationVar(&rewardsProcessBudget, "budget", 0, "wall-clock budget for this pass (default: REWARDS_PROCESS_BUDGET)")

	rewardsStatusCmd.Flags().IntVar(&rewardsStatusLimit, "limit", query.DefaultRecentJobs, "number of recent jobs to show")

	rewardsCmd.AddCommand(rewardsInitCmd)
	rewardsCmd.AddCommand(rewardsProcessCmd)
	rewardsCmd.AddCommand(rewardsStatusCmd)
}

func printJSON(cmd *cobra.Command, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(raw))
	return nil
}
