package main

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/aisandeep/superai-sdk/internal/dispatch"
	"github.com/aisandeep/superai-sdk/internal/options"
	"github.com/aisandeep/superai-sdk/pkg/check"
)

const defaultServeConfigPath = "/etc/superai/launcher.yaml"

func newRunCmd() *cobra.Command {
	v := newViper()
	defaults := options.DefaultServeOptions()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "serve the model (the image's run script)",
		Args:  cobra.NoArgs,
	}

	flags := cmd.Flags()
	name := func(components ...string) configKey { return components }
	registerString(v, flags, name("config-file"), "", "location of config file")
	registerString(v, flags, name("model-name"), "", "name of the model class to serve")
	registerString(v, flags, name("model-class-path"), "", "dotted module path of the model class")
	registerString(v, flags, name("conda-env-name"), defaults.CondaEnvName,
		"conda environment holding the dependencies")
	registerString(v, flags, name("lambda-mode"), "", "serve through the Lambda runtime when non-empty")
	registerString(v, flags, name("lambda-runtime-api"), "", "Lambda runtime API endpoint, set by AWS")
	registerString(v, flags, name("lambda-handler"), defaults.LambdaHandler, "Lambda handler entrypoint")
	registerString(v, flags, name("seldon-mode"), "", "serve through the seldon microservice when non-empty")
	registerString(v, flags, name("service-type"), "", "seldon service type")
	registerString(v, flags, name("persistence"), "", "seldon persistence setting")
	registerString(v, flags, name("work-dir"), defaults.WorkDir, "working directory of the model server")

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		opts := &options.ServeOptions{}
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
		opts = &options.ServeOptions{}
		if err := unmarshalViper(v, opts); err != nil {
			return err
		}

		// The container contract overrides everything else.
		opts.FromEnv()
		opts.Resolve()

		if err := check.Validate(*opts); err != nil {
			return errors.Wrap(err, "serve configuration is invalid")
		}
		if printable, err := opts.Printable(); err == nil {
			log.Infof("serve options: %s", printable)
		}

		return dispatch.New(*opts).Dispatch(cmd.Context())
	}

	return cmd
}
