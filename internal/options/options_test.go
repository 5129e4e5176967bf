package options

import (
	"testing"

	"github.com/ghodss/yaml"
	"gotest.tools/assert"

	"github.com/aisandeep/superai-sdk/pkg/check"
	"github.com/aisandeep/superai-sdk/pkg/logger"
)

func TestUnmarshalServeOptions(t *testing.T) {
	type serveOptionsTestCase struct {
		name     string
		raw      string
		expected ServeOptions
	}

	tests := []serveOptionsTestCase{
		{
			name: "seldon_config",
			raw: `
model_name: MyModel
model_class_path: models.my_model
seldon_mode: "true"
service_type: MODEL
persistence: "0"
`,
			expected: ServeOptions{
				ModelName:      "MyModel",
				ModelClassPath: "models.my_model",
				SeldonMode:     "true",
				ServiceType:    "MODEL",
				Persistence:    "0",
			},
		},
		{
			name: "lambda_config_with_log",
			raw: `
model_name: MyModel
lambda_mode: "true"
log:
    level: debug
    color: false
`,
			expected: ServeOptions{
				ModelName:  "MyModel",
				LambdaMode: "true",
				Log: logger.Config{
					Level: "debug",
					Color: false,
				},
			},
		},
		{
			name: "default_options_config",
			raw: `
log:
    level: info
    color: true
conda_env_name: env
lambda_handler: handler.handler
work_dir: .
`,
			expected: *DefaultServeOptions(),
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			unmarshaled := ServeOptions{}
			err := yaml.Unmarshal([]byte(test.raw), &unmarshaled, yaml.DisallowUnknownFields)
			assert.NilError(t, err)
			assert.DeepEqual(t, test.expected, unmarshaled)
		})
	}
}

func TestServeOptionsFromEnv(t *testing.T) {
	t.Setenv(ModelNameEnv, "MyModel")
	t.Setenv(ModelClassPathEnv, "models.my_model")
	t.Setenv(SeldonModeEnv, "true")
	t.Setenv(ServiceTypeEnv, "MODEL")

	opts := DefaultServeOptions()
	opts.FromEnv()
	opts.Resolve()

	assert.Equal(t, opts.ModelName, "MyModel")
	assert.Equal(t, opts.ModelClassPath, "models.my_model")
	assert.Assert(t, opts.SeldonEnabled())
	assert.Assert(t, !opts.LambdaEnabled())
	assert.Equal(t, opts.ServiceType, "MODEL")
	assert.Equal(t, opts.CondaEnvName, DefaultCondaEnvName)
	assert.NilError(t, check.Validate(*opts))
}

func TestServeOptionsValidation(t *testing.T) {
	opts := DefaultServeOptions()
	opts.Resolve()
	assert.ErrorContains(t, check.Validate(*opts), "MODEL_NAME must be set")

	opts.ModelName = "MyModel"
	opts.SeldonMode = "true"
	assert.ErrorContains(t, check.Validate(*opts),
		"SERVICE_TYPE must be set when SELDON_MODE is set")

	// Lambda takes priority over Seldon, so a missing SERVICE_TYPE is fine.
	opts.LambdaMode = "true"
	assert.NilError(t, check.Validate(*opts))
}

func TestAssembleOptionsSkip(t *testing.T) {
	opts := DefaultAssembleOptions()
	opts.ModelName = "MyModel"
	assert.Assert(t, !opts.SkipDependencyBuild())

	for _, raw := range []string{"false", "False", "FALSE"} {
		opts.BuildPip = raw
		assert.Assert(t, opts.SkipDependencyBuild())
	}

	opts.BuildPip = "true"
	assert.Assert(t, !opts.SkipDependencyBuild())
}

func TestAssembleOptionsValidation(t *testing.T) {
	opts := DefaultAssembleOptions()
	opts.Resolve()
	assert.ErrorContains(t, check.Validate(*opts), "MODEL_NAME must be set")

	opts.ModelName = "MyModel"
	assert.NilError(t, check.Validate(*opts))
	assert.Assert(t, opts.PipCacheDir != "")
}

func TestSaveOptionsResolve(t *testing.T) {
	opts := DefaultSaveOptions()
	opts.Resolve()
	assert.Assert(t, opts.PipCacheDir != "")
}
