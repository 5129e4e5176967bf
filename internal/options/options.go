// Package options holds the configurable options of every launcher lifecycle
// command, bound from flags, config files, and the container environment.
package options

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/aisandeep/superai-sdk/pkg/check"
	"github.com/aisandeep/superai-sdk/pkg/logger"
)

// Environment variables making up the serving container contract. They are
// consumed unprefixed because the build system and the orchestration platform
// set them on the container directly.
const (
	// ModelNameEnv names the model to serve. Required everywhere.
	ModelNameEnv = "MODEL_NAME"
	// ModelClassPathEnv is the dotted module path prefix of the model class.
	ModelClassPathEnv = "MODEL_CLASS_PATH"
	// CondaEnvNameEnv names the conda environment dependencies live in.
	CondaEnvNameEnv = "CONDA_ENV_NAME"
	// LambdaModeEnv selects the Lambda serving backend when non-empty.
	LambdaModeEnv = "LAMBDA_MODE"
	// LambdaRuntimeAPIEnv is set by the deployed Lambda environment; its
	// absence means we are emulating locally.
	LambdaRuntimeAPIEnv = "AWS_LAMBDA_RUNTIME_API"
	// SeldonModeEnv selects the Seldon serving backend when non-empty.
	SeldonModeEnv = "SELDON_MODE"
	// ServiceTypeEnv is the Seldon service type, required with SeldonModeEnv.
	ServiceTypeEnv = "SERVICE_TYPE"
	// PersistenceEnv is passed through to the Seldon microservice when set.
	PersistenceEnv = "PERSISTENCE"
	// BuildPipEnv set to "false" skips the dependency build entirely.
	BuildPipEnv = "BUILD_PIP"
)

// DefaultCondaEnvName is used when the container contract does not name one.
const DefaultCondaEnvName = "env"

// ServeOptions stores all the configurable options of the serve-time
// dispatcher.
type ServeOptions struct {
	ConfigFile string `json:"config_file"`

	Log logger.Config `json:"log"`

	ModelName      string `json:"model_name"`
	ModelClassPath string `json:"model_class_path"`
	CondaEnvName   string `json:"conda_env_name"`

	// LambdaMode and SeldonMode keep the raw environment values; like the
	// container contract, any non-empty value selects the backend.
	LambdaMode       string `json:"lambda_mode"`
	LambdaRuntimeAPI string `json:"lambda_runtime_api"`
	LambdaHandler    string `json:"lambda_handler"`

	SeldonMode  string `json:"seldon_mode"`
	ServiceType string `json:"service_type"`
	Persistence string `json:"persistence"`

	WorkDir string `json:"work_dir"`
}

// DefaultServeOptions returns the default serve options.
func DefaultServeOptions() *ServeOptions {
	return &ServeOptions{
		Log:           *logger.DefaultConfig(),
		CondaEnvName:  DefaultCondaEnvName,
		LambdaHandler: "handler.handler",
		WorkDir:       ".",
	}
}

// FromEnv overlays the container environment onto the options.
func (o *ServeOptions) FromEnv() {
	setFromEnv(&o.ModelName, ModelNameEnv)
	setFromEnv(&o.ModelClassPath, ModelClassPathEnv)
	setFromEnv(&o.CondaEnvName, CondaEnvNameEnv)
	setFromEnv(&o.LambdaMode, LambdaModeEnv)
	setFromEnv(&o.LambdaRuntimeAPI, LambdaRuntimeAPIEnv)
	setFromEnv(&o.SeldonMode, SeldonModeEnv)
	setFromEnv(&o.ServiceType, ServiceTypeEnv)
	setFromEnv(&o.Persistence, PersistenceEnv)
}

// LambdaEnabled reports whether the Lambda backend was requested.
func (o ServeOptions) LambdaEnabled() bool { return o.LambdaMode != "" }

// SeldonEnabled reports whether the Seldon backend was requested.
func (o ServeOptions) SeldonEnabled() bool { return o.SeldonMode != "" }

// Validate implements the check.Validatable interface.
func (o ServeOptions) Validate() []error {
	errs := []error{
		check.NotEmpty(o.ModelName, "%s must be set", ModelNameEnv),
	}
	if o.SeldonEnabled() && !o.LambdaEnabled() {
		errs = append(errs, check.NotEmpty(o.ServiceType,
			"%s must be set when %s is set", ServiceTypeEnv, SeldonModeEnv))
	}
	return errs
}

// Resolve fully resolves the serve options, handling dynamic defaults.
func (o *ServeOptions) Resolve() {
	if o.CondaEnvName == "" {
		o.CondaEnvName = DefaultCondaEnvName
	}
	if o.WorkDir == "" {
		o.WorkDir = "."
	}
}

// Printable returns a printable string.
func (o ServeOptions) Printable() ([]byte, error) {
	optJSON, err := json.Marshal(o)
	if err != nil {
		return nil, errors.Wrap(err, "unable to convert options to JSON")
	}
	return optJSON, nil
}

// AssembleOptions stores all the configurable options of the build-time
// assembler.
type AssembleOptions struct {
	ConfigFile string `json:"config_file"`

	Log logger.Config `json:"log"`

	ModelName    string `json:"model_name"`
	CondaEnvName string `json:"conda_env_name"`

	// BuildPip mirrors BUILD_PIP; the literal value "false" skips the
	// dependency build (the base image already carries the pip layer).
	BuildPip string `json:"build_pip"`

	SourceDir        string `json:"source_dir"`
	ArtifactsDir     string `json:"artifacts_dir"`
	PipCacheDir      string `json:"pip_cache_dir"`
	BaseRequirements string `json:"base_requirements"`
}

// DefaultAssembleOptions returns the default assemble options.
func DefaultAssembleOptions() *AssembleOptions {
	return &AssembleOptions{
		Log:              *logger.DefaultConfig(),
		CondaEnvName:     DefaultCondaEnvName,
		SourceDir:        ".",
		ArtifactsDir:     "/tmp/artifacts",
		BaseRequirements: "/opt/superai/base-requirements.txt",
	}
}

// FromEnv overlays the container environment onto the options.
func (o *AssembleOptions) FromEnv() {
	setFromEnv(&o.ModelName, ModelNameEnv)
	setFromEnv(&o.CondaEnvName, CondaEnvNameEnv)
	setFromEnv(&o.BuildPip, BuildPipEnv)
}

// SkipDependencyBuild reports whether the whole dependency build is bypassed.
func (o AssembleOptions) SkipDependencyBuild() bool {
	return strings.EqualFold(o.BuildPip, "false")
}

// Validate implements the check.Validatable interface.
func (o AssembleOptions) Validate() []error {
	return []error{
		check.NotEmpty(o.ModelName, "%s must be set", ModelNameEnv),
	}
}

// Resolve fully resolves the assemble options, handling dynamic defaults.
func (o *AssembleOptions) Resolve() {
	if o.CondaEnvName == "" {
		o.CondaEnvName = DefaultCondaEnvName
	}
	if o.SourceDir == "" {
		o.SourceDir = "."
	}
	if o.PipCacheDir == "" {
		o.PipCacheDir = defaultPipCacheDir()
	}
}

// SaveOptions stores the configurable options of the artifact saver.
type SaveOptions struct {
	PipCacheDir string `json:"pip_cache_dir"`
}

// DefaultSaveOptions returns the default save-artifacts options.
func DefaultSaveOptions() *SaveOptions {
	return &SaveOptions{}
}

// Resolve fully resolves the save options, handling dynamic defaults.
func (o *SaveOptions) Resolve() {
	if o.PipCacheDir == "" {
		o.PipCacheDir = defaultPipCacheDir()
	}
}

func defaultPipCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "/root"
	}
	return filepath.Join(home, ".cache", "pip")
}

func setFromEnv(dst *string, key string) {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		*dst = value
	}
}
