// Package assemble implements the build-time half of the image lifecycle:
// restoring the dependency cache, installing dependencies from the injected
// source tree, and running the optional customization hook.
package assemble

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/aisandeep/superai-sdk/internal/options"
)

// Well-known files of the injected source tree. Presence is the only contract;
// content is owned by the tools consuming them.
const (
	environmentFile  = "environment.yml"
	requirementsFile = "requirements.txt"
	setupScript      = "setup.sh"
)

// packagingLibrary is installed into every conda environment so the generated
// entry points can import the model wrapper at serve time.
const packagingLibrary = "superai"

// Assembler prepares the image's dependency set from the source tree handed
// to it by the s2i build.
type Assembler struct {
	opts options.AssembleOptions
	log  *logrus.Entry

	// run is the external command seam, swapped out in tests.
	run func(ctx context.Context, name string, args ...string) error
}

// New returns an assembler for the given options.
func New(opts options.AssembleOptions) *Assembler {
	return &Assembler{
		opts: opts,
		log:  logrus.WithField("component", "assembler"),
		run:  runCommand,
	}
}

// Assemble installs the application dependencies. Any failing external
// command aborts the image build with that command's error.
func (a *Assembler) Assemble(ctx context.Context) error {
	if a.opts.ModelName == "" {
		return errors.Errorf("%s must be set", options.ModelNameEnv)
	}

	if a.opts.SkipDependencyBuild() {
		a.log.Infof("%s=false, dependencies already baked into the base image", options.BuildPipEnv)
		return nil
	}

	if err := a.restoreCache(); err != nil {
		return err
	}

	switch {
	case a.sourceFileExists(environmentFile):
		if err := a.createCondaEnv(ctx); err != nil {
			return err
		}
	case a.sourceFileExists(requirementsFile):
		a.log.Infof("installing %s", requirementsFile)
		if err := a.run(ctx, "pip", "install",
			"--cache-dir", a.opts.PipCacheDir,
			"-r", a.sourcePath(requirementsFile)); err != nil {
			return errors.Wrapf(err, "installing %s", requirementsFile)
		}
	default:
		a.log.Info("no dependency manifest in source, skipping installation")
	}

	if a.sourceFileExists(setupScript) {
		a.log.Infof("running %s customization hook", setupScript)
		if err := a.run(ctx, "bash", a.sourcePath(setupScript)); err != nil {
			return errors.Wrapf(err, "%s failed", setupScript)
		}
	}
	return nil
}

// createCondaEnv builds the named environment from environment.yml, installs
// the launcher base requirements and the packaging library into it, and then
// the model's own requirements.txt when present.
func (a *Assembler) createCondaEnv(ctx context.Context) error {
	env := a.opts.CondaEnvName
	a.log.Infof("creating conda environment %q from %s", env, environmentFile)
	if err := a.run(ctx, "conda", "env", "create",
		"-n", env, "-f", a.sourcePath(environmentFile)); err != nil {
		return errors.Wrap(err, "creating conda environment")
	}

	pip := func(args ...string) error {
		argv := append([]string{"run", "-n", env, "pip", "install",
			"--cache-dir", a.opts.PipCacheDir}, args...)
		return a.run(ctx, "conda", argv...)
	}

	if a.opts.BaseRequirements != "" {
		if _, err := os.Stat(a.opts.BaseRequirements); err == nil {
			if err := pip("-r", a.opts.BaseRequirements); err != nil {
				return errors.Wrap(err, "installing base requirements")
			}
		}
	}
	if err := pip(packagingLibrary); err != nil {
		return errors.Wrapf(err, "installing %s", packagingLibrary)
	}

	if a.sourceFileExists(requirementsFile) {
		if err := pip("-r", a.sourcePath(requirementsFile)); err != nil {
			return errors.Wrapf(err, "installing %s", requirementsFile)
		}
	}
	return nil
}

// restoreCache merges a previously saved artifacts directory into the local
// pip cache. An absent or empty restore directory is the first-build case,
// not an error.
func (a *Assembler) restoreCache() error {
	src := a.opts.ArtifactsDir
	entries, err := os.ReadDir(src)
	if err != nil {
		if os.IsNotExist(err) {
			a.log.Debug("no restored artifacts, cold cache")
			return nil
		}
		return errors.Wrapf(err, "reading restored artifacts at %s", src)
	}
	if len(entries) == 0 {
		a.log.Debug("restored artifacts directory is empty, cold cache")
		return nil
	}

	a.log.Infof("restoring %d cached entries into %s", len(entries), a.opts.PipCacheDir)
	if err := copyTree(src, a.opts.PipCacheDir); err != nil {
		return errors.Wrap(err, "restoring dependency cache")
	}
	return nil
}

func (a *Assembler) sourcePath(name string) string {
	return filepath.Join(a.opts.SourceDir, name)
}

func (a *Assembler) sourceFileExists(name string) bool {
	info, err := os.Stat(a.sourcePath(name))
	return err == nil && !info.IsDir()
}

// copyTree copies src into dst recursively, overwriting existing files.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return copyFile(p, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
