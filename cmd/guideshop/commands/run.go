package commands

import (
	"github.com/spf13/cobra"

	corecmd "github.com/m3rciful/guideshop/core/cmd"
	"github.com/m3rciful/guideshop/internal/app"
	"github.com/m3rciful/guideshop/internal/config"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the bot",
		Args:  cobra.NoArgs,
		RunE:  runBot,
	}
}

func runBot(*cobra.Command, []string) error {
	return corecmd.Run(corecmd.Options{
		ConfigPath:        configPath,
		DefaultConfigPath: defaultConfigPath,
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return config.Load(path)
		},
		Bootstrap: app.Bootstrap,
	})
}
