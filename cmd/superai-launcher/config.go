package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// viperKeyDelimiter marks nested values in the configuration. ".." is used
// instead of the default "." so that config keys themselves may contain dots
// without viper splitting them into objects.
const viperKeyDelimiter = ".."

type configKey []string

func (c configKey) AccessPath() string {
	return strings.ReplaceAll(strings.Join(c, viperKeyDelimiter), "-", "_")
}

func (c configKey) FlagName() string {
	return strings.Join(c, "-")
}

func newViper() *viper.Viper {
	v := viper.NewWithOptions(viper.KeyDelimiter(viperKeyDelimiter))
	v.SetTypeByDefaultValue(true)
	return v
}

func registerString(v *viper.Viper, flags *pflag.FlagSet, name configKey, value, usage string) {
	flags.String(name.FlagName(), value, usage)
	_ = v.BindPFlag(name.AccessPath(), flags.Lookup(name.FlagName()))
	v.SetDefault(name.AccessPath(), value)
}

// unmarshalViper round-trips the viper settings through JSON into the options
// struct, rejecting keys the struct does not know about.
func unmarshalViper(v *viper.Viper, opts interface{}) error {
	bs, err := json.Marshal(v.AllSettings())
	if err != nil {
		return errors.Wrap(err, "cannot marshal configuration map into json bytes")
	}
	if err = yaml.Unmarshal(bs, opts, yaml.DisallowUnknownFields); err != nil {
		return errors.Wrap(err, "cannot unmarshal configuration")
	}
	return nil
}

// mergeConfigIntoViper layers the config file under the flag values already
// bound to viper, so the effective precedence is flag > config > default.
func mergeConfigIntoViper(v *viper.Viper, bs []byte) error {
	if bs == nil {
		return nil
	}
	var configMap map[string]interface{}
	if err := yaml.Unmarshal(bs, &configMap); err != nil {
		return errors.Wrap(err, "cannot unmarshal yaml configuration file")
	}
	if err := v.MergeConfigMap(configMap); err != nil {
		return errors.Wrap(err, "can't merge configuration to viper")
	}
	return nil
}

func readConfigFile(configPath, defaultPath string) ([]byte, error) {
	isDefault := configPath == ""
	if isDefault {
		configPath = defaultPath
	}

	var err error
	if _, err = os.Stat(configPath); err != nil {
		if isDefault && os.IsNotExist(err) {
			log.Debugf("no configuration file at %s, skipping", configPath)
			return nil, nil
		}
		return nil, errors.Wrap(err, "error finding configuration file")
	}
	bs, err := os.ReadFile(configPath) // #nosec G304
	if err != nil {
		return nil, errors.Wrap(err, "error reading configuration file")
	}
	return bs, nil
}
