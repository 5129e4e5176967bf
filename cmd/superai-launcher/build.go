package main

import (
	"encoding/json"
	"fmt"

	dockerclient "github.com/docker/docker/client"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/aisandeep/superai-sdk/internal/build"
	"github.com/aisandeep/superai-sdk/pkg/docker"
)

func newBuildCmd() *cobra.Command {
	opts := build.Options{}
	configFile := ""

	cmd := &cobra.Command{
		Use:   "build",
		Short: "build a serving image from a build configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := build.LoadConfig(configFile)
			if err != nil {
				return err
			}

			cl, err := dockerclient.NewClientWithOpts(
				dockerclient.FromEnv, dockerclient.WithAPIVersionNegotiation())
			if err != nil {
				return errors.Wrap(err, "connecting to docker daemon")
			}

			builder := build.NewBuilder(cfg, docker.NewClient(cl), opts)
			imageName, properties, err := builder.Build(cmd.Context())
			if err != nil {
				return err
			}

			log.Infof("built image %s", imageName)
			bs, err := json.MarshalIndent(properties, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(bs))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configFile, "config-file", "c", "config.yml",
		"location of the build configuration file")
	flags.StringVar(&opts.Location, "location", ".",
		"source directory handed to s2i")
	flags.StringVar(&opts.CacheRoot, "cache-root", "",
		"directory holding the build change tracking state")
	flags.BoolVar(&opts.BuildAllLayers, "build-all-layers", false,
		"rebuild the dependency layer even without changes")
	flags.BoolVar(&opts.DownloadBase, "download-base", false,
		"pull the newest base image before building")
	flags.BoolVar(&opts.SkipBuild, "skip-build", false,
		"resolve the image name and properties without building")
	flags.IntVar(&opts.WorkerCount, "worker-count", 1,
		"number of serving workers started in the image")
	flags.IntVar(&opts.LambdaCacheSize, "lambda-cache-size", 32,
		"model cache size of the Lambda handler")
	flags.StringToStringVar(&opts.Envs, "env", nil,
		"extra KEY=VALUE pairs seeded into the build env file")

	return cmd
}
