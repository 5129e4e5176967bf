package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/aisandeep/superai-sdk/internal/artifacts"
	"github.com/aisandeep/superai-sdk/internal/options"
)

func newSaveArtifactsCmd() *cobra.Command {
	opts := options.DefaultSaveOptions()

	cmd := &cobra.Command{
		Use:   "save-artifacts",
		Short: "stream the dependency cache to stdout (the image's save-artifacts script)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.Resolve()
			// Only the tar stream may reach stdout; s2i consumes it directly.
			return artifacts.Save(os.Stdout, *opts)
		},
	}

	cmd.Flags().StringVar(&opts.PipCacheDir, "pip-cache-dir", "",
		"pip download cache directory to stream")

	return cmd
}
