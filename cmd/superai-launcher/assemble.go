package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/aisandeep/superai-sdk/internal/assemble"
	"github.com/aisandeep/superai-sdk/internal/options"
	"github.com/aisandeep/superai-sdk/pkg/check"
)

func newAssembleCmd() *cobra.Command {
	v := newViper()
	defaults := options.DefaultAssembleOptions()

	cmd := &cobra.Command{
		Use:   "assemble",
		Short: "install the model dependencies (the image's assemble script)",
		Args:  cobra.NoArgs,
	}

	flags := cmd.Flags()
	name := func(components ...string) configKey { return components }
	registerString(v, flags, name("config-file"), "", "location of config file")
	registerString(v, flags, name("model-name"), "", "name of the model class being packaged")
	registerString(v, flags, name("conda-env-name"), defaults.CondaEnvName,
		"conda environment to create for the dependencies")
	registerString(v, flags, name("build-pip"), "", "set to false to skip the dependency build")
	registerString(v, flags, name("source-dir"), defaults.SourceDir,
		"directory holding the uploaded model sources")
	registerString(v, flags, name("artifacts-dir"), defaults.ArtifactsDir,
		"directory s2i restores saved artifacts into")
	registerString(v, flags, name("pip-cache-dir"), "", "pip download cache directory")
	registerString(v, flags, name("base-requirements"), defaults.BaseRequirements,
		"requirements file baked into the base image")

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		opts := &options.AssembleOptions{}
		if err := unmarshalViper(v, opts); err != nil {
			return err
		}

		bs, err := readConfigFile(opts.ConfigFile, defaultServeConfigPath)
		if err != nil {
			return err
		}
		if err := mergeConfigIntoViper(v, bs); err != nil {
			return err
		}
		opts = &options.AssembleOptions{}
		if err := unmarshalViper(v, opts); err != nil {
			return err
		}

		// The container contract overrides everything else.
		opts.FromEnv()
		opts.Resolve()

		if err := check.Validate(*opts); err != nil {
			return errors.Wrap(err, "assemble configuration is invalid")
		}

		return assemble.New(*opts).Assemble(cmd.Context())
	}

	return cmd
}
