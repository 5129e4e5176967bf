package main

import (
	"github.com/spf13/cobra"

	"github.com/aisandeep/superai-sdk/pkg/logger"
	"github.com/aisandeep/superai-sdk/version"
)

func newRootCmd() *cobra.Command {
	opts := logger.Config{}

	cmd := &cobra.Command{
		Use:     "superai-launcher",
		Short:   "build and serve superai model images",
		Version: version.Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := bindEnv("SUPERAI_", cmd); err != nil {
				return err
			}
			if opts.Level == "" {
				opts.Level = "info"
			}
			logger.SetLogrus(opts)
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.Level, "level", "l", "",
		"set the logging level (can be one of: debug, info, warn, error, or fatal)")
	cmd.PersistentFlags().BoolVar(&opts.Color, "color", true, "enable colored output")

	cmd.AddCommand(newCompletionCmd())
	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newAssembleCmd())
	cmd.AddCommand(newSaveArtifactsCmd())
	cmd.AddCommand(newBuildCmd())

	return cmd
}
