// Package dispatch implements the serve-time entry point of the container: it
// validates the serving contract, picks exactly one backend, and replaces the
// launcher process with it.
package dispatch

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/aisandeep/superai-sdk/internal/options"
)

// Backend identifies the serving process the dispatcher hands the container
// over to.
type Backend string

// Available serving backends, in selection priority order.
const (
	BackendLambdaLocal    Backend = "lambda-local"
	BackendLambdaDeployed Backend = "lambda"
	BackendSeldon         Backend = "seldon"
	BackendDefault        Backend = "sagemaker"
)

const (
	// lambdaEmulator is the Lambda runtime interface emulator shipped in the
	// lambda base images, used when no real runtime API endpoint exists.
	lambdaEmulator = "/usr/local/bin/aws-lambda-rie"
	// lambdaRuntimeModule is the Lambda runtime interface client.
	lambdaRuntimeModule = "awslambdaric"
	// seldonMicroservice is the entry point installed by seldon-core.
	seldonMicroservice = "seldon-core-microservice"
	// defaultEntrypoint is the SageMaker-style serving script written into
	// the image at build time.
	defaultEntrypoint = "dockerd-entrypoint.py"
	// beforeRunHook is an optional executable run before backend selection.
	beforeRunHook = "before-run"
)

// Dispatcher selects and starts a serving backend. Its terminal action
// replaces the current process image; it never supervises the backend.
type Dispatcher struct {
	opts options.ServeOptions
	log  *logrus.Entry

	// Process control seams, swapped out in tests.
	lookPath func(file string) (string, error)
	execve   func(argv0 string, argv []string, envv []string) error
	runHook  func(ctx context.Context, path string) error
}

// New returns a dispatcher for the given options.
func New(opts options.ServeOptions) *Dispatcher {
	return &Dispatcher{
		opts:     opts,
		log:      logrus.WithField("component", "dispatcher"),
		lookPath: exec.LookPath,
		execve:   unix.Exec,
		runHook:  runHookCommand,
	}
}

// ModelIdentifier resolves the opaque identifier handed to the backend. With a
// class path it is `path.Name.Name`: the module path of the generated model
// wrapper followed by the class name, which equals the model name.
func ModelIdentifier(opts options.ServeOptions) string {
	if opts.ModelClassPath == "" {
		return opts.ModelName
	}
	return opts.ModelClassPath + "." + opts.ModelName + "." + opts.ModelName
}

// Dispatch runs the optional before-run hook, selects the backend, and execs
// into it. On success it does not return.
func (d *Dispatcher) Dispatch(ctx context.Context) error {
	if d.opts.ModelName == "" {
		return errors.Errorf("%s must be set", options.ModelNameEnv)
	}

	if err := d.runBeforeHook(ctx); err != nil {
		return err
	}

	backend, argv := d.Select()
	d.log.WithFields(logrus.Fields{
		"backend": backend,
		"model":   ModelIdentifier(d.opts),
	}).Infof("starting serving backend: %v", argv)

	argv0, err := d.lookPath(argv[0])
	if err != nil {
		return errors.Wrapf(err, "backend executable %s not found", argv[0])
	}
	return errors.Wrapf(d.execve(argv0, argv, os.Environ()), "starting %s backend", backend)
}

// Select picks the backend and builds its argument vector. Selection is
// mutually exclusive and checked in fixed priority order.
func (d *Dispatcher) Select() (Backend, []string) {
	opts := d.opts
	switch {
	case opts.LambdaEnabled() && opts.LambdaRuntimeAPI == "":
		return BackendLambdaLocal, []string{
			lambdaEmulator, "python", "-m", lambdaRuntimeModule, opts.LambdaHandler,
		}
	case opts.LambdaEnabled():
		return BackendLambdaDeployed, []string{
			"python", "-m", lambdaRuntimeModule, opts.LambdaHandler,
		}
	case opts.SeldonEnabled():
		argv := []string{seldonMicroservice, ModelIdentifier(opts),
			"--service-type", opts.ServiceType}
		if opts.Persistence != "" {
			argv = append(argv, "--persistence", opts.Persistence)
		}
		argv = append(argv, "--tracing")
		return BackendSeldon, d.condaRun(argv)
	default:
		argv := []string{"python", defaultEntrypoint, ModelIdentifier(opts), "serve"}
		return BackendDefault, d.condaRun(argv)
	}
}

// condaRun wraps an argument vector so the backend starts inside the conda
// environment the assembler installed into. The lambda paths never go through
// here; the lambda base images are pip-only.
func (d *Dispatcher) condaRun(argv []string) []string {
	if d.opts.CondaEnvName == "" {
		return argv
	}
	return append([]string{"conda", "run", "--no-capture-output", "-n", d.opts.CondaEnvName}, argv...)
}

func (d *Dispatcher) runBeforeHook(ctx context.Context) error {
	hook := filepath.Join(d.opts.WorkDir, beforeRunHook)
	info, err := os.Stat(hook)
	switch {
	case os.IsNotExist(err):
		return nil
	case err != nil:
		return errors.Wrapf(err, "checking %s hook", beforeRunHook)
	case info.IsDir() || info.Mode().Perm()&0o111 == 0:
		d.log.Debugf("%s exists but is not executable, skipping", hook)
		return nil
	}

	d.log.Infof("running %s hook", hook)
	return errors.Wrapf(d.runHook(ctx, hook), "%s hook failed", beforeRunHook)
}

func runHookCommand(ctx context.Context, path string) error {
	cmd := exec.CommandContext(ctx, path)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	return cmd.Run()
}
