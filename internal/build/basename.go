package build

import (
	"fmt"

	"github.com/pkg/errors"
)

// baseImageFamily is the shared prefix of every serving base image.
const baseImageFamily = "superai-model-s2i-python3711"

// baseImageVersion tags the current generation of base images.
const baseImageVersion = 1

// BaseImageName resolves the serving base image for a deploy configuration.
// The CPU SageMaker image is the default; hardware and orchestrator variants
// are expressed as name suffixes.
func BaseImageName(deploy DeployConfig) (string, error) {
	if deploy.EnableEIA && (deploy.Orchestrator.LambdaMode() ||
		deploy.EnableCuda || deploy.Orchestrator.K8sMode()) {
		return "", errors.New("cannot use EIA with other options")
	}
	if deploy.EnableCuda && deploy.Orchestrator.LambdaMode() {
		return "", errors.New("cannot use CUDA with Lambda")
	}

	name := baseImageFamily
	switch {
	case deploy.CudaDevel:
		name += "-gpu-devel"
	case deploy.EnableCuda:
		name += "-gpu"
	case deploy.EnableEIA:
		name += "-eia"
	default:
		name += "-cpu"
	}

	if deploy.UseInternal {
		name += "-internal"
	}

	switch {
	case deploy.Orchestrator.LambdaMode():
		name += "-lambda"
	case deploy.Orchestrator.K8sMode():
		name += "-seldon"
	}

	return fmt.Sprintf("%s:%d", name, baseImageVersion), nil
}
