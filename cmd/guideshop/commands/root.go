// Package commands is the guideshop command line.
package commands

import (
	"github.com/spf13/cobra"

	corecmd "github.com/m3rciful/guideshop/core/cmd"
	"github.com/m3rciful/guideshop/internal/config"
)

const defaultConfigPath = "config.yaml"

var configPath string

// Execute runs the root command. Without a subcommand it starts the bot.
func Execute() error {
	root := &cobra.Command{
		Use:           "guideshop",
		Short:         "Telegram shop for guides and courses",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runBot,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $CONFIG_PATH or "+defaultConfigPath+")")

	root.AddCommand(runCmd(), migrateCmd(), versionCmd())
	return root.Execute()
}

func loadConfig() (*config.Config, error) {
	path, err := corecmd.ResolveConfigPath(configPath, "", defaultConfigPath)
	if err != nil {
		return nil, err
	}
	return config.Load(path)
}
