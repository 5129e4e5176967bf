package build

// Orchestrator determines the build strategy and the deployment target of the
// image being built.
type Orchestrator string

// Available orchestrators.
const (
	LocalDocker       Orchestrator = "LOCAL_DOCKER"
	LocalDockerLambda Orchestrator = "LOCAL_DOCKER_LAMBDA"
	LocalDockerK8s    Orchestrator = "LOCAL_DOCKER_K8S"
	Minikube          Orchestrator = "MINIKUBE"
	AWSSageMaker      Orchestrator = "AWS_SAGEMAKER"
	AWSSageMakerAsync Orchestrator = "AWS_SAGEMAKER_ASYNC"
	AWSLambda         Orchestrator = "AWS_LAMBDA"
	AWSEKS            Orchestrator = "AWS_EKS"
)

// Orchestrators lists every orchestrator valid for prediction builds.
var Orchestrators = []Orchestrator{
	LocalDocker, LocalDockerLambda, LocalDockerK8s, Minikube,
	AWSSageMaker, AWSSageMakerAsync, AWSLambda, AWSEKS,
}

// TrainingOrchestrators lists the subset valid for training builds.
var TrainingOrchestrators = []Orchestrator{LocalDockerK8s, AWSEKS}

// LambdaMode reports whether the orchestrator deploys as a Lambda function.
func (o Orchestrator) LambdaMode() bool {
	return o == LocalDockerLambda || o == AWSLambda
}

// K8sMode reports whether the orchestrator deploys onto Kubernetes.
func (o Orchestrator) K8sMode() bool {
	return o == LocalDockerK8s || o == AWSEKS
}

// SageMakerMode reports whether the orchestrator uses the SageMaker-style
// entry point.
func (o Orchestrator) SageMakerMode() bool {
	switch o {
	case LocalDocker, AWSSageMaker, AWSSageMakerAsync:
		return true
	default:
		return false
	}
}

func in(o Orchestrator, list []Orchestrator) bool {
	for _, candidate := range list {
		if o == candidate {
			return true
		}
	}
	return false
}
