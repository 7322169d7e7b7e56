package main

import (
	"context"

	"github.com/spf13/cobra"

	"turnkeep/internal/app"
)

var campaignCmd = &cobra.Command{
	Use:   "campaign",
	Short: "Manage campaigns",
}

var campaignCreateCmd = &cobra.Command{
	Use:   "create [ID]",
	Short: "Create a campaign",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		id := ""
		if len(args) > 0 {
			id = args[0]
		}
		return runApp(cmd, func(ctx context.Context, a *app.TurnkeepApp) (any, error) {
			return a.CreateCampaign(ctx, id, name)
		})
	},
}

var campaignListCmd = &cobra.Command{
	Use:   "list",
	Short: "List campaigns",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApp(cmd, func(ctx context.Context, a *app.TurnkeepApp) (any, error) {
			return a.ListCampaigns()
		})
	},
}

var campaignLoadCmd = &cobra.Command{
	Use:   "load ID",
	Short: "Load a campaign, recovering it if needed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApp(cmd, func(ctx context.Context, a *app.TurnkeepApp) (any, error) {
			return a.LoadCampaign(ctx, args[0])
		})
	},
}

var campaignBranchCmd = &cobra.Command{
	Use:   "branch SOURCE CHILD",
	Short: "Fork a campaign at its latest committed turn",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		return runApp(cmd, func(ctx context.Context, a *app.TurnkeepApp) (any, error) {
			return a.Branch(ctx, args[0], args[1], name)
		})
	},
}

var campaignValidateCmd = &cobra.Command{
	Use:   "validate ID",
	Short: "Check a campaign's store, log, snapshot and checkpoints",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApp(cmd, func(ctx context.Context, a *app.TurnkeepApp) (any, error) {
			return a.Validate(ctx, args[0])
		})
	},
}

var campaignRepairLogCmd = &cobra.Command{
	Use:   "repair-log ID",
	Short: "Append committed events missing from the event log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		return runApp(cmd, func(ctx context.Context, a *app.TurnkeepApp) (any, error) {
			return a.RepairLog(ctx, args[0], dryRun)
		})
	},
}

var campaignRecoverCmd = &cobra.Command{
	Use:   "recover ID",
	Short: "Run crash recovery on a campaign",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApp(cmd, func(ctx context.Context, a *app.TurnkeepApp) (any, error) {
			return a.Recover(ctx, args[0])
		})
	},
}

func init() {
	campaignCmd.AddCommand(campaignCreateCmd)
	campaignCreateCmd.Flags().String("name", "", "Display name")
	campaignCmd.AddCommand(campaignListCmd)
	campaignCmd.AddCommand(campaignLoadCmd)
	campaignCmd.AddCommand(campaignBranchCmd)
	campaignBranchCmd.Flags().String("name", "", "Display name of the branch")
	campaignCmd.AddCommand(campaignValidateCmd)
	campaignCmd.AddCommand(campaignRepairLogCmd)
	campaignRepairLogCmd.Flags().Bool("dry-run", false, "Report what would be appended without writing")
	campaignCmd.AddCommand(campaignRecoverCmd)
}
