package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"turnkeep/internal/app"
	"turnkeep/internal/config"
)

// errReported marks a failure whose envelope has already been printed.
var errReported = errors.New("reported")

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// loadConfig reads the config file named by the defaults.
func loadConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}
	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// runApp opens the app for one command, runs fn and prints the result as a
// JSON envelope on stdout.
func runApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.TurnkeepApp) (any, error)) error {
	name := cmd.CommandPath()[len(cmd.Root().Name())+1:]
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return report(cmd, name, nil, err)
	}
	a, err := app.NewTurnkeepApp(ctx, cfg, name, app.WithStderr(cmd.ErrOrStderr()))
	if err != nil {
		return report(cmd, name, nil, err)
	}

	data, err := fn(ctx, a)
	a.Finish(err)
	if cerr := a.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return report(cmd, name, data, err)
}

// report prints the envelope for data or err.
func report(cmd *cobra.Command, name string, data any, err error, warnings ...string) error {
	env := app.Success(name, data, warnings...)
	if err != nil {
		env = app.Failure(name, err)
	}
	if werr := env.Write(cmd.OutOrStdout()); werr != nil {
		return werr
	}
	if err != nil {
		return errReported
	}
	return nil
}

var rootCmd = &cobra.Command{
	Use:           "turnkeep",
	Short:         "Turn transactions for tabletop campaign state",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(campaignCmd)
	rootCmd.AddCommand(turnCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(archiveCmd)
}
