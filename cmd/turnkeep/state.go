package main

import (
	"context"

	"github.com/spf13/cobra"

	"turnkeep/internal/app"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Read live campaign state",
}

var stateGetCmd = &cobra.Command{
	Use:   "get CAMPAIGN [KIND [ID]]",
	Short: "Print live state, a kind, or one entity",
	Args:  cobra.RangeArgs(1, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		var kind, id string
		if len(args) > 1 {
			kind = args[1]
		}
		if len(args) > 2 {
			id = args[2]
		}
		return runApp(cmd, func(ctx context.Context, a *app.TurnkeepApp) (any, error) {
			return a.State(ctx, args[0], kind, id)
		})
	},
}

func init() {
	stateCmd.AddCommand(stateGetCmd)
}
