package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"turnkeep/internal/app"
	"turnkeep/internal/turn"
)

// PassphraseEnv supplies the archive passphrase without a prompt.
const PassphraseEnv = "TURNKEEP_PASSPHRASE"

// readPassphrase takes the passphrase from the environment or prompts for it
// on the terminal. confirm asks twice.
func readPassphrase(cmd *cobra.Command, confirm bool) (string, error) {
	if p := os.Getenv(PassphraseEnv); p != "" {
		return p, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", turn.NewError(turn.CodeValidation, "passphrase", "no terminal to prompt on; set %s", PassphraseEnv)
	}

	prompt := func(label string) (string, error) {
		fmt.Fprint(cmd.ErrOrStderr(), label)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		return string(b), nil
	}

	p, err := prompt("Passphrase: ")
	if err != nil {
		return "", err
	}
	if confirm {
		again, err := prompt("Confirm passphrase: ")
		if err != nil {
			return "", err
		}
		if again != p {
			return "", turn.NewError(turn.CodeValidation, "passphrase", "passphrases do not match")
		}
	}
	return p, nil
}

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Copy encrypted snapshots to a vault",
}

var archiveKeygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate the archive key pair",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase, err := readPassphrase(cmd, true)
		if err != nil {
			return report(cmd, "archive keygen", nil, err)
		}
		return runApp(cmd, func(ctx context.Context, a *app.TurnkeepApp) (any, error) {
			return nil, a.SetupKeys(passphrase)
		})
	},
}

var archivePushCmd = &cobra.Command{
	Use:   "push CAMPAIGN",
	Short: "Archive the live snapshot of a campaign",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vaultName, _ := cmd.Flags().GetString("vault")
		return runApp(cmd, func(ctx context.Context, a *app.TurnkeepApp) (any, error) {
			return a.ArchivePush(ctx, args[0], vaultName)
		})
	},
}

var archiveListCmd = &cobra.Command{
	Use:   "list CAMPAIGN",
	Short: "List archived snapshots",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vaultName, _ := cmd.Flags().GetString("vault")
		return runApp(cmd, func(ctx context.Context, a *app.TurnkeepApp) (any, error) {
			return a.ArchiveList(ctx, args[0], vaultName)
		})
	},
}

var archiveVerifyCmd = &cobra.Command{
	Use:   "verify CAMPAIGN",
	Short: "Download and check an archived snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vaultName, _ := cmd.Flags().GetString("vault")
		turnNumber, _ := cmd.Flags().GetInt64("turn")
		passphrase, err := readPassphrase(cmd, false)
		if err != nil {
			return report(cmd, "archive verify", nil, err)
		}
		return runApp(cmd, func(ctx context.Context, a *app.TurnkeepApp) (any, error) {
			return a.ArchiveVerify(ctx, args[0], vaultName, turnNumber, passphrase)
		})
	},
}

func init() {
	archiveCmd.AddCommand(archiveKeygenCmd)
	archiveCmd.AddCommand(archivePushCmd)
	archivePushCmd.Flags().String("vault", "", "Vault name (default: first configured)")
	archiveCmd.AddCommand(archiveListCmd)
	archiveListCmd.Flags().String("vault", "", "Vault name (default: first configured)")
	archiveCmd.AddCommand(archiveVerifyCmd)
	archiveVerifyCmd.Flags().String("vault", "", "Vault name (default: first configured)")
	archiveVerifyCmd.Flags().Int64("turn", 0, "Turn number to verify (default: latest)")
}
