package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"turnkeep/internal/app"
	"turnkeep/internal/turn"
)

var turnCmd = &cobra.Command{
	Use:   "turn",
	Short: "Begin, record and end turns",
}

var turnBeginCmd = &cobra.Command{
	Use:   "begin CAMPAIGN",
	Short: "Open a new turn",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApp(cmd, func(ctx context.Context, a *app.TurnkeepApp) (any, error) {
			return a.BeginTurn(ctx, args[0])
		})
	},
}

var turnRecordCmd = &cobra.Command{
	Use:   "record CAMPAIGN COMMAND [PAYLOAD]",
	Short: "Record a command in the open turn",
	Long:  "Record a command in the open turn. The JSON payload is read from stdin when not given.",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		stageOnly, _ := cmd.Flags().GetBool("stage-only")
		var payload json.RawMessage
		if len(args) == 3 {
			payload = json.RawMessage(args[2])
		} else {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			payload = json.RawMessage(data)
		}
		return runApp(cmd, func(ctx context.Context, a *app.TurnkeepApp) (any, error) {
			if !json.Valid(payload) {
				return nil, turn.NewError(turn.CodeValidation, "record", "payload is not valid JSON")
			}
			return a.Record(ctx, args[0], args[1], payload, stageOnly)
		})
	},
}

var turnCommitCmd = &cobra.Command{
	Use:   "commit CAMPAIGN",
	Short: "Commit the open turn",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		summary, _ := cmd.Flags().GetString("summary")
		return runApp(cmd, func(ctx context.Context, a *app.TurnkeepApp) (any, error) {
			return a.CommitTurn(ctx, args[0], summary)
		})
	},
}

var turnRollbackCmd = &cobra.Command{
	Use:   "rollback CAMPAIGN",
	Short: "Discard the open turn",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApp(cmd, func(ctx context.Context, a *app.TurnkeepApp) (any, error) {
			return a.RollbackTurn(ctx, args[0])
		})
	},
}

var turnDiffCmd = &cobra.Command{
	Use:   "diff CAMPAIGN [TURN_ID]",
	Short: "Show the diff of a committed turn",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("recent")
		turnID := ""
		if len(args) == 2 {
			turnID = args[1]
		}
		return runApp(cmd, func(ctx context.Context, a *app.TurnkeepApp) (any, error) {
			if limit > 0 {
				return a.RecentDiffs(ctx, args[0], limit)
			}
			return a.Diff(ctx, args[0], turnID)
		})
	},
}

var turnUndoCmd = &cobra.Command{
	Use:   "undo CAMPAIGN",
	Short: "Revert the latest committed turn with a compensating turn",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		summary, _ := cmd.Flags().GetString("summary")
		return runApp(cmd, func(ctx context.Context, a *app.TurnkeepApp) (any, error) {
			return a.Undo(ctx, args[0], summary)
		})
	},
}

var turnStatusCmd = &cobra.Command{
	Use:   "status CAMPAIGN",
	Short: "Show the open and latest committed turn",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApp(cmd, func(ctx context.Context, a *app.TurnkeepApp) (any, error) {
			return a.Status(ctx, args[0])
		})
	},
}

var turnCommandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "List the commands a turn can record",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApp(cmd, func(ctx context.Context, a *app.TurnkeepApp) (any, error) {
			return a.Commands(), nil
		})
	},
}

func init() {
	turnCmd.AddCommand(turnBeginCmd)
	turnCmd.AddCommand(turnRecordCmd)
	turnRecordCmd.Flags().Bool("stage-only", false, "Stage the event without applying it to live state")
	turnCmd.AddCommand(turnCommitCmd)
	turnCommitCmd.Flags().StringP("summary", "m", "", "Turn summary")
	turnCmd.AddCommand(turnRollbackCmd)
	turnCmd.AddCommand(turnDiffCmd)
	turnDiffCmd.Flags().IntP("recent", "n", 0, "Show the last N diffs instead")
	turnCmd.AddCommand(turnUndoCmd)
	turnUndoCmd.Flags().StringP("summary", "m", "", "Summary of the undo turn")
	turnCmd.AddCommand(turnStatusCmd)
	turnCmd.AddCommand(turnCommandsCmd)
}
