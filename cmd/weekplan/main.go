package main

import (
	"os"

	"github.com/spf13/cobra"

	appLog "weekplan/internal/log"
)

const defaultConfigPath = "/etc/weekplan/config.yaml"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "weekplan",
		Short:         "Interactive engine for a weekly time-block planner.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().String("config", defaultConfigPath, "Path to config file")

	addServe(cmd)
	addSnapshot(cmd)
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		appLog.Error("command failed", err)
		os.Exit(1)
	}
}
