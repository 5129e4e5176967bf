package assemble

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/aisandeep/superai-sdk/internal/options"
)

type recordedCommand struct {
	name string
	args []string
}

func (c recordedCommand) String() string {
	return strings.Join(append([]string{c.name}, c.args...), " ")
}

func testAssembler(t *testing.T, opts options.AssembleOptions) (*Assembler, *[]recordedCommand) {
	t.Helper()
	a := New(opts)
	var commands []recordedCommand
	a.run = func(ctx context.Context, name string, args ...string) error {
		commands = append(commands, recordedCommand{name: name, args: args})
		return nil
	}
	return a, &commands
}

func testOptions(t *testing.T) options.AssembleOptions {
	t.Helper()
	opts := *options.DefaultAssembleOptions()
	opts.ModelName = "Model"
	opts.SourceDir = t.TempDir()
	opts.ArtifactsDir = filepath.Join(t.TempDir(), "artifacts")
	opts.PipCacheDir = filepath.Join(t.TempDir(), "cache")
	opts.BaseRequirements = ""
	return opts
}

func writeSourceFile(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("# test\n"), 0o644))
}

func TestAssembleRequiresModelName(t *testing.T) {
	opts := testOptions(t)
	opts.ModelName = ""
	a, commands := testAssembler(t, opts)

	err := a.Assemble(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "MODEL_NAME must be set")
	require.Empty(t, *commands)
}

func TestAssembleSkipsWhenPipLayerBaked(t *testing.T) {
	opts := testOptions(t)
	opts.BuildPip = "false"
	writeSourceFile(t, opts.SourceDir, "requirements.txt")
	writeSourceFile(t, opts.SourceDir, "setup.sh")
	a, commands := testAssembler(t, opts)

	require.NoError(t, a.Assemble(context.Background()))
	require.Empty(t, *commands)
}

func TestAssemblePipOnly(t *testing.T) {
	opts := testOptions(t)
	writeSourceFile(t, opts.SourceDir, "requirements.txt")
	a, commands := testAssembler(t, opts)

	require.NoError(t, a.Assemble(context.Background()))
	require.Len(t, *commands, 1)
	cmd := (*commands)[0]
	require.Equal(t, "pip", cmd.name)
	require.Contains(t, cmd.String(), "install --cache-dir "+opts.PipCacheDir)
	require.Contains(t, cmd.String(), "-r "+filepath.Join(opts.SourceDir, "requirements.txt"))
}

func TestAssembleCondaEnvironment(t *testing.T) {
	opts := testOptions(t)
	writeSourceFile(t, opts.SourceDir, "environment.yml")
	writeSourceFile(t, opts.SourceDir, "requirements.txt")
	writeSourceFile(t, opts.SourceDir, "setup.sh")
	a, commands := testAssembler(t, opts)

	require.NoError(t, a.Assemble(context.Background()))

	var rendered []string
	for _, cmd := range *commands {
		rendered = append(rendered, cmd.String())
	}
	require.Len(t, rendered, 4)
	require.Contains(t, rendered[0],
		"conda env create -n env -f "+filepath.Join(opts.SourceDir, "environment.yml"))
	require.Contains(t, rendered[1], "conda run -n env pip install")
	require.Contains(t, rendered[1], "superai")
	require.Contains(t, rendered[2], "-r "+filepath.Join(opts.SourceDir, "requirements.txt"))
	require.Contains(t, rendered[3], "bash "+filepath.Join(opts.SourceDir, "setup.sh"))
}

func TestAssembleBaseRequirements(t *testing.T) {
	opts := testOptions(t)
	writeSourceFile(t, opts.SourceDir, "environment.yml")
	baseReq := filepath.Join(t.TempDir(), "base-requirements.txt")
	require.NoError(t, os.WriteFile(baseReq, []byte("requests\n"), 0o644))
	opts.BaseRequirements = baseReq
	a, commands := testAssembler(t, opts)

	require.NoError(t, a.Assemble(context.Background()))
	require.Len(t, *commands, 3)
	require.Contains(t, (*commands)[1].String(), "-r "+baseReq)
}

func TestAssembleRestoresCache(t *testing.T) {
	opts := testOptions(t)
	require.NoError(t, os.MkdirAll(filepath.Join(opts.ArtifactsDir, "wheels"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(opts.ArtifactsDir, "wheels", "a.whl"), []byte("wheel"), 0o644))
	a, _ := testAssembler(t, opts)

	require.NoError(t, a.Assemble(context.Background()))

	restored, err := os.ReadFile(filepath.Join(opts.PipCacheDir, "wheels", "a.whl"))
	require.NoError(t, err)
	require.Equal(t, "wheel", string(restored))
}

func TestAssembleNoManifests(t *testing.T) {
	opts := testOptions(t)
	a, commands := testAssembler(t, opts)

	require.NoError(t, a.Assemble(context.Background()))
	require.Empty(t, *commands)
}

func TestAssembleFailFast(t *testing.T) {
	opts := testOptions(t)
	writeSourceFile(t, opts.SourceDir, "environment.yml")
	writeSourceFile(t, opts.SourceDir, "setup.sh")
	a, _ := testAssembler(t, opts)
	var calls int
	a.run = func(ctx context.Context, name string, args ...string) error {
		calls++
		return errors.New("conda exploded")
	}

	err := a.Assemble(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "creating conda environment")
	require.Equal(t, 1, calls)
}
