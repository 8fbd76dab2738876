package main

import (
	"github.com/spf13/cobra"

	"prelaunch/internal/platform/config"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:          "prelaunch",
		Short:        "Pre-launch landing page and lead capture service",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "optional YAML config file; PRELAUNCH_* env vars override it")

	cmd.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newAdminTokenCmd(opts),
		newFormatPhoneCmd(),
	)
	return cmd
}

func (o *rootOptions) load() (config.Config, error) {
	return config.Load(o.configPath)
}
