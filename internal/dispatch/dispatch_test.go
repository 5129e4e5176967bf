package dispatch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gotest.tools/assert"

	"github.com/aisandeep/superai-sdk/internal/options"
)

func testDispatcher(opts options.ServeOptions) (*Dispatcher, *[]string, *[]string) {
	d := New(opts)
	var execed []string
	var hooks []string
	d.lookPath = func(file string) (string, error) { return "/usr/bin/" + file, nil }
	d.execve = func(argv0 string, argv []string, envv []string) error {
		execed = append([]string{argv0}, argv...)
		return nil
	}
	d.runHook = func(ctx context.Context, path string) error {
		hooks = append(hooks, path)
		return nil
	}
	return d, &execed, &hooks
}

func TestModelIdentifier(t *testing.T) {
	tests := []struct {
		name      string
		classPath string
		modelName string
		want      string
	}{
		{name: "bare name", modelName: "Model", want: "Model"},
		{name: "with class path", classPath: "pkg", modelName: "Model", want: "pkg.Model.Model"},
		{name: "nested class path", classPath: "a.b", modelName: "M", want: "a.b.M.M"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ModelIdentifier(options.ServeOptions{
				ModelName:      tt.modelName,
				ModelClassPath: tt.classPath,
			})
			assert.Equal(t, got, tt.want)
		})
	}
}

func TestSelectBackendPriority(t *testing.T) {
	base := *options.DefaultServeOptions()
	base.ModelName = "Model"

	t.Run("lambda local when no runtime API", func(t *testing.T) {
		opts := base
		opts.LambdaMode = "true"
		d, _, _ := testDispatcher(opts)
		backend, argv := d.Select()
		assert.Equal(t, backend, BackendLambdaLocal)
		assert.DeepEqual(t, argv, []string{
			"/usr/local/bin/aws-lambda-rie", "python", "-m", "awslambdaric", "handler.handler",
		})
	})

	t.Run("lambda deployed when runtime API present", func(t *testing.T) {
		opts := base
		opts.LambdaMode = "true"
		opts.LambdaRuntimeAPI = "127.0.0.1:9001"
		d, _, _ := testDispatcher(opts)
		backend, argv := d.Select()
		assert.Equal(t, backend, BackendLambdaDeployed)
		assert.DeepEqual(t, argv, []string{"python", "-m", "awslambdaric", "handler.handler"})
	})

	t.Run("lambda beats seldon", func(t *testing.T) {
		opts := base
		opts.LambdaMode = "true"
		opts.SeldonMode = "true"
		opts.ServiceType = "MODEL"
		d, _, _ := testDispatcher(opts)
		backend, _ := d.Select()
		assert.Equal(t, backend, BackendLambdaLocal)
	})

	t.Run("seldon without persistence keeps tracing", func(t *testing.T) {
		opts := base
		opts.SeldonMode = "true"
		opts.ServiceType = "MODEL"
		opts.ModelClassPath = "pkg"
		d, _, _ := testDispatcher(opts)
		backend, argv := d.Select()
		assert.Equal(t, backend, BackendSeldon)
		assert.DeepEqual(t, argv, []string{
			"conda", "run", "--no-capture-output", "-n", "env",
			"seldon-core-microservice", "pkg.Model.Model",
			"--service-type", "MODEL", "--tracing",
		})
	})

	t.Run("seldon with persistence", func(t *testing.T) {
		opts := base
		opts.SeldonMode = "true"
		opts.ServiceType = "MODEL"
		opts.Persistence = "1"
		d, _, _ := testDispatcher(opts)
		_, argv := d.Select()
		joined := strings.Join(argv, " ")
		require.Contains(t, joined, "--persistence 1")
		require.Contains(t, joined, "--tracing")
	})

	t.Run("default fallthrough serves", func(t *testing.T) {
		d, _, _ := testDispatcher(base)
		backend, argv := d.Select()
		assert.Equal(t, backend, BackendDefault)
		assert.DeepEqual(t, argv, []string{
			"conda", "run", "--no-capture-output", "-n", "env",
			"python", "dockerd-entrypoint.py", "Model", "serve",
		})
	})

	t.Run("no conda wrap without env name", func(t *testing.T) {
		opts := base
		opts.CondaEnvName = ""
		d, _, _ := testDispatcher(opts)
		_, argv := d.Select()
		assert.Equal(t, argv[0], "python")
	})
}

func TestDispatchRequiresModelName(t *testing.T) {
	opts := *options.DefaultServeOptions()
	d, execed, hooks := testDispatcher(opts)

	err := d.Dispatch(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "MODEL_NAME must be set")
	require.Empty(t, *execed)
	require.Empty(t, *hooks)
}

func TestDispatchExecsSelectedBackend(t *testing.T) {
	opts := *options.DefaultServeOptions()
	opts.ModelName = "Model"
	opts.WorkDir = t.TempDir()
	d, execed, _ := testDispatcher(opts)

	require.NoError(t, d.Dispatch(context.Background()))
	require.NotEmpty(t, *execed)
	assert.Equal(t, (*execed)[0], "/usr/bin/conda")
	assert.Equal(t, (*execed)[1], "conda")
}

func TestBeforeRunHook(t *testing.T) {
	t.Run("executable hook runs first", func(t *testing.T) {
		dir := t.TempDir()
		hook := filepath.Join(dir, "before-run")
		require.NoError(t, os.WriteFile(hook, []byte("#!/bin/sh\n"), 0o755))

		opts := *options.DefaultServeOptions()
		opts.ModelName = "Model"
		opts.WorkDir = dir
		d, execed, hooks := testDispatcher(opts)

		require.NoError(t, d.Dispatch(context.Background()))
		require.Equal(t, []string{hook}, *hooks)
		require.NotEmpty(t, *execed)
	})

	t.Run("non-executable hook is skipped", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "before-run"), []byte("x"), 0o644))

		opts := *options.DefaultServeOptions()
		opts.ModelName = "Model"
		opts.WorkDir = dir
		d, _, hooks := testDispatcher(opts)

		require.NoError(t, d.Dispatch(context.Background()))
		require.Empty(t, *hooks)
	})

	t.Run("hook failure aborts dispatch", func(t *testing.T) {
		dir := t.TempDir()
		hook := filepath.Join(dir, "before-run")
		require.NoError(t, os.WriteFile(hook, []byte("#!/bin/sh\n"), 0o755))

		opts := *options.DefaultServeOptions()
		opts.ModelName = "Model"
		opts.WorkDir = dir
		d, execed, _ := testDispatcher(opts)
		d.runHook = func(context.Context, string) error {
			return os.ErrPermission
		}

		err := d.Dispatch(context.Background())
		require.Error(t, err)
		require.Contains(t, err.Error(), "before-run hook failed")
		require.Empty(t, *execed)
	})
}
