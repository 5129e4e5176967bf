package build

import (
	"os"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"

	"github.com/aisandeep/superai-sdk/pkg/check"
)

// Config is the build configuration file: what model to package, which
// instance of it, and where it will be deployed.
type Config struct {
	Template TemplateConfig `json:"template"`
	Instance InstanceConfig `json:"instance"`
	Deploy   *DeployConfig  `json:"deploy"`

	// Training switches validation to the training orchestrator subset.
	Training bool `json:"training"`
}

// TemplateConfig describes the model being packaged.
type TemplateConfig struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	ModelClass     string `json:"model_class"`
	ModelClassPath string `json:"model_class_path"`
	Requirements   string `json:"requirements"`
	CondaEnv       string `json:"conda_env"`
	SetupScript    string `json:"setup_script"`
}

// InstanceConfig describes the concrete model instance and image version.
type InstanceConfig struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// DeployConfig describes the deployment target.
type DeployConfig struct {
	Orchestrator Orchestrator           `json:"orchestrator"`
	Properties   map[string]interface{} `json:"properties"`

	EnableCuda  bool `json:"enable_cuda"`
	CudaDevel   bool `json:"cuda_devel"`
	EnableEIA   bool `json:"enable_eia"`
	UseInternal bool `json:"use_internal"`
}

// LoadConfig reads and validates a build configuration file.
func LoadConfig(path string) (*Config, error) {
	bs, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, errors.Wrap(err, "error reading build configuration file")
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(bs, cfg, yaml.DisallowUnknownFields); err != nil {
		return nil, errors.Wrap(err, "cannot unmarshal build configuration")
	}
	if err := check.Validate(*cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate implements the check.Validatable interface.
func (c Config) Validate() []error {
	errs := []error{
		check.NotEmpty(c.Template.Name, "template name must be provided"),
		check.NotEmpty(c.Template.ModelClass, "template model_class must be provided"),
		check.NotEmpty(c.Instance.Name, "instance name must be provided"),
		check.True(c.Deploy != nil, "deploy section must be provided"),
	}
	if c.Deploy == nil {
		return errs
	}

	allowed := Orchestrators
	if c.Training {
		allowed = TrainingOrchestrators
	}
	errs = append(errs, check.True(in(c.Deploy.Orchestrator, allowed),
		"invalid orchestrator %q, should be one of %v", c.Deploy.Orchestrator, allowed))
	return errs
}

// Version returns the image version tag, defaulting to latest.
func (c Config) Version() string {
	if c.Instance.Version == "" {
		return "latest"
	}
	return c.Instance.Version
}
