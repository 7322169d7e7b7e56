package main

import (
	"github.com/spf13/cobra"

	"turnkeep/internal/app"
	"turnkeep/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return report(cmd, "config init", nil, err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return report(cmd, "config init", nil, err)
		}
		return report(cmd, "config init", map[string]string{
			"config_path": defaults["config_path"],
			"data_dir":    cfg.DataDir,
			"log_dir":     cfg.LogDir,
		}, nil)
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return report(cmd, "config list", nil, err)
		}
		m, err := config.AsMap(cfg)
		return report(cmd, "config list", m, err)
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List configuration keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return report(cmd, "config keys", nil, err)
		}
		keys, err := config.Keys(cfg)
		return report(cmd, "config keys", keys, err)
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configKeysCmd)
}
