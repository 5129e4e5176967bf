package build

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/aisandeep/superai-sdk/pkg/docker"
)

// s2iBinary is the source-to-image CLI the builder shells out to.
const s2iBinary = "s2i"

// pipLayerSuffix tags the intermediate image carrying the installed
// dependencies. The final image builds incrementally on top of it.
const pipLayerSuffix = "-pip-layer"

// ImageClient is the slice of the docker client the builder needs.
type ImageClient interface {
	ImageExists(ctx context.Context, name string) (bool, error)
	PullImage(ctx context.Context, name string) error
	TagImage(ctx context.Context, source, target string) error
}

// Options tunes a single build invocation on top of the configuration file.
type Options struct {
	// Location is the source directory handed to s2i.
	Location string
	// CacheRoot stores the change tracking state between builds.
	CacheRoot string

	// BuildAllLayers forces the pip layer to be rebuilt even without changes.
	BuildAllLayers bool
	// DownloadBase pulls the newest base image before building.
	DownloadBase bool
	// SkipBuild resolves the image name and properties without building.
	SkipBuild bool

	// Envs are extra variables seeded into the build env file.
	Envs map[string]string

	WorkerCount     int
	LambdaCacheSize int
}

func (o Options) workerCount() int {
	if o.WorkerCount <= 0 {
		return 1
	}
	return o.WorkerCount
}

func (o Options) lambdaCacheSize() int {
	if o.LambdaCacheSize <= 0 {
		return 32
	}
	return o.LambdaCacheSize
}

// Builder turns a validated build configuration into a serving image via a
// two-phase s2i build: a dependency layer first, then the model code on top.
type Builder struct {
	cfg     *Config
	opts    Options
	docker  ImageClient
	tracker *ChangeTracker
	log     *logrus.Entry

	// Seams for tests.
	runS2I   func(ctx context.Context, dir string, args ...string) error
	lookPath func(file string) (string, error)
	registry func(ctx context.Context) (string, error)
}

// NewBuilder wires a builder from the configuration and per-invocation
// options.
func NewBuilder(cfg *Config, cl ImageClient, opts Options) *Builder {
	if opts.Location == "" {
		opts.Location = "."
	}
	if opts.CacheRoot == "" {
		opts.CacheRoot = filepath.Join(os.TempDir(), ".superai", "cache")
	}
	return &Builder{
		cfg:     cfg,
		opts:    opts,
		docker:  cl,
		tracker: NewChangeTracker(opts.CacheRoot),
		log: logrus.WithFields(logrus.Fields{
			"component": "image-builder",
			"build-id":  uuid.New().String()[:8],
		}),
		runS2I:   runCommand,
		lookPath: exec.LookPath,
		registry: docker.DefaultECRRegistry,
	}
}

// Build prepares the source tree, builds the image, and returns the full
// image name together with its deployment properties.
func (b *Builder) Build(ctx context.Context) (string, map[string]interface{}, error) {
	deploy := *b.cfg.Deploy
	name, version := b.cfg.Instance.Name, b.cfg.Version()

	if err := prepareEntrypoints(b.opts.Location, deploy.Orchestrator, entrypointParams{
		ModelIdentifier: b.modelIdentifier(),
		LambdaCacheSize: b.opts.lambdaCacheSize(),
		WorkerCount:     b.opts.workerCount(),
	}); err != nil {
		return "", nil, err
	}
	if deploy.Orchestrator.K8sMode() {
		if err := writeKubernetesConfig(
			b.opts.Location, name, kubernetesConfig(deploy)); err != nil {
			return "", nil, err
		}
	}

	imageName := fmt.Sprintf("%s:%s", name, version)
	if b.opts.SkipBuild {
		b.log.Infof("skipping build of %s", imageName)
		return imageName, DeploymentProperties(b.cfg, imageName), nil
	}

	if err := b.buildImage(ctx, name, version); err != nil {
		return "", nil, err
	}
	return imageName, DeploymentProperties(b.cfg, imageName), nil
}

// modelIdentifier mirrors the serving-side naming: with a class path the
// identifier is path.Class.Class, otherwise the bare class name.
func (b *Builder) modelIdentifier() string {
	t := b.cfg.Template
	if t.ModelClassPath != "" {
		return fmt.Sprintf("%s.%s.%s", t.ModelClassPath, t.ModelClass, t.ModelClass)
	}
	return t.ModelClass
}

func (b *Builder) buildImage(ctx context.Context, name, version string) error {
	start := time.Now()
	deploy := *b.cfg.Deploy

	changed, err := b.tracker.Track(
		name, version, deploy.Orchestrator, b.manifestFiles())
	if err != nil {
		return err
	}
	fromScratch := b.opts.BuildAllLayers || changed

	baseImage, err := BaseImageName(deploy)
	if err != nil {
		return err
	}
	if err := b.ensureBaseImage(ctx, baseImage); err != nil {
		return err
	}
	if b.opts.DownloadBase {
		fromScratch = true
	}

	if _, err := b.lookPath(s2iBinary); err != nil {
		return errors.New("s2i is not installed: install source-to-image " +
			"(https://github.com/openshift/source-to-image#installation) and retry")
	}

	envFile, err := b.seedEnvFile(deploy)
	if err != nil {
		return err
	}

	pipLayer := fmt.Sprintf("%s%s:%s", name, pipLayerSuffix, version)
	if !fromScratch {
		exists, err := b.docker.ImageExists(ctx, pipLayer)
		if err != nil {
			return err
		}
		if exists {
			b.log.Infof("no change in dependencies, reusing pip layer %s", pipLayer)
		} else {
			b.log.Info("pip layer image not found, rebuilding")
			fromScratch = true
		}
	}

	if fromScratch {
		envFile.Delete("BUILD_PIP")
		if err := envFile.Save(); err != nil {
			return err
		}
		if err := b.s2iBuild(ctx, envFile, baseImage, pipLayer); err != nil {
			return err
		}
	}

	envFile.Set("BUILD_PIP", "false")
	if err := envFile.Save(); err != nil {
		return err
	}
	imageName := fmt.Sprintf("%s:%s", name, version)
	if err := b.s2iBuild(ctx, envFile, pipLayer, imageName); err != nil {
		return err
	}

	b.log.Infof("built image %s in %s", imageName, time.Since(start).Round(time.Second))
	return nil
}

// manifestFiles lists the dependency manifests present in the configuration;
// changes to any of them invalidate the pip layer.
func (b *Builder) manifestFiles() []string {
	var files []string
	if b.cfg.Template.Requirements != "" {
		files = append(files, filepath.Join(b.opts.Location, "requirements.txt"))
	}
	if b.cfg.Template.CondaEnv != "" {
		files = append(files, filepath.Join(b.opts.Location, "environment.yml"))
	}
	if b.cfg.Template.SetupScript != "" {
		files = append(files, filepath.Join(b.opts.Location, "setup.sh"))
	}
	return files
}

// ensureBaseImage makes the serving base image available locally, pulling it
// from the caller's ECR registry and retagging when needed.
func (b *Builder) ensureBaseImage(ctx context.Context, baseImage string) error {
	if !b.opts.DownloadBase {
		exists, err := b.docker.ImageExists(ctx, baseImage)
		if err != nil {
			return err
		}
		if exists {
			b.log.Infof("base image %s found locally", baseImage)
			return nil
		}
		b.log.Infof("base image %s not found locally, downloading", baseImage)
	}

	registry, err := b.registry(ctx)
	if err != nil {
		return err
	}
	remote := fmt.Sprintf("%s/%s", registry, baseImage)
	if err := b.docker.PullImage(ctx, remote); err != nil {
		return err
	}
	return b.docker.TagImage(ctx, remote, baseImage)
}

// seedEnvFile writes the serving contract of the orchestrator into the env
// file handed to s2i with -E.
func (b *Builder) seedEnvFile(deploy DeployConfig) (*EnvFile, error) {
	path := filepath.Join(b.opts.Location, ".s2i", "environment")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "creating .s2i directory")
	}
	envFile, err := LoadEnvFile(path)
	if err != nil {
		return nil, err
	}

	envFile.Set("MODEL_NAME", b.cfg.Template.ModelClass)
	if b.cfg.Template.ModelClassPath != "" {
		envFile.Set("MODEL_CLASS_PATH", b.cfg.Template.ModelClassPath)
	}
	envFile.Set("SUPERAI_CONFIG_ROOT", "/tmp/.superai")
	switch {
	case deploy.Orchestrator.LambdaMode():
		envFile.Set("LAMBDA_MODE", "true")
	case deploy.Orchestrator.K8sMode():
		envFile.Set("SERVICE_TYPE", "MODEL")
		envFile.Set("PERSISTENCE", "0")
		envFile.Set("API_TYPE", "REST")
		envFile.Set("SELDON_MODE", "true")
	}
	for k, v := range b.opts.Envs {
		envFile.Set(k, v)
	}
	return envFile, nil
}

func (b *Builder) s2iBuild(ctx context.Context, envFile *EnvFile, baseImage, tag string) error {
	b.log.Infof("building %s from %s", tag, baseImage)
	args := []string{s2iBinary, "build", "-E", envFile.Location()}
	if home, err := os.UserHomeDir(); err == nil {
		// Credentials the install scripts need inside the build container.
		args = append(args,
			"-v", filepath.Join(home, ".aws")+":/root/.aws",
			"-v", filepath.Join(home, ".superai")+":/root/.superai",
		)
	}
	args = append(args, "--incremental=true", ".", baseImage, tag)
	return b.runS2I(ctx, b.opts.Location, args...)
}

func runCommand(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, args[0], args[1:]...) // #nosec G204
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return errors.Wrapf(cmd.Run(), "running %s", args[0])
}
