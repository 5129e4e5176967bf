package build

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// KubernetesConfig is the autoscaling contract written next to the build
// output for kubernetes deployments. Replica bounds of min=0 allow the
// deployment to scale to zero when idle.
type KubernetesConfig struct {
	MaxReplicaCount             int     `json:"maxReplicaCount"`
	MinReplicaCount             int     `json:"minReplicaCount"`
	CooldownPeriod              int     `json:"cooldownPeriod"`
	TargetAverageUtilization    float64 `json:"targetAverageUtilization"`
	GPUTargetAverageUtilization float64 `json:"gpuTargetAverageUtilization"`
	TargetMemoryRequirement     string  `json:"targetMemoryRequirement"`
	TargetMemoryLimit           string  `json:"targetMemoryLimit"`
	VolumeMountName             string  `json:"volumeMountName"`
	MountPath                   string  `json:"mountPath"`
	NumThreads                  int     `json:"numThreads"`
	EnableCuda                  bool    `json:"enableCuda"`
}

// defaultKubernetesConfig returns the scaling defaults for a serving pod.
func defaultKubernetesConfig() KubernetesConfig {
	return KubernetesConfig{
		MaxReplicaCount:             5,
		MinReplicaCount:             0,
		CooldownPeriod:              1800,
		TargetAverageUtilization:    0.5,
		GPUTargetAverageUtilization: 60,
		TargetMemoryRequirement:     "512Mi",
		TargetMemoryLimit:           "4Gi",
		VolumeMountName:             "efs-vpc",
		MountPath:                   "/shared",
		NumThreads:                  1,
	}
}

// kubernetesConfig merges user overrides from the deploy properties into the
// defaults. Overrides use the request-side key names (maxReplicas,
// minReplicas, worker_count) rather than the rendered ones.
func kubernetesConfig(deploy DeployConfig) KubernetesConfig {
	cfg := defaultKubernetesConfig()
	cfg.EnableCuda = deploy.EnableCuda

	overrides, _ := deploy.Properties["kubernetes_config"].(map[string]interface{})
	if overrides == nil {
		return cfg
	}
	overrideInt(overrides, "maxReplicas", &cfg.MaxReplicaCount)
	overrideInt(overrides, "minReplicas", &cfg.MinReplicaCount)
	overrideInt(overrides, "cooldownPeriod", &cfg.CooldownPeriod)
	overrideFloat(overrides, "targetAverageUtilization", &cfg.TargetAverageUtilization)
	overrideFloat(overrides, "gpuTargetAverageUtilization", &cfg.GPUTargetAverageUtilization)
	overrideString(overrides, "targetMemoryRequirement", &cfg.TargetMemoryRequirement)
	overrideString(overrides, "targetMemoryLimit", &cfg.TargetMemoryLimit)
	overrideString(overrides, "volumeMountName", &cfg.VolumeMountName)
	overrideString(overrides, "mountPath", &cfg.MountPath)
	overrideInt(overrides, "worker_count", &cfg.NumThreads)
	return cfg
}

func overrideInt(m map[string]interface{}, key string, dst *int) {
	switch v := m[key].(type) {
	case int:
		*dst = v
	case float64:
		// JSON and YAML decoders surface numbers as float64.
		*dst = int(v)
	}
}

func overrideFloat(m map[string]interface{}, key string, dst *float64) {
	switch v := m[key].(type) {
	case float64:
		*dst = v
	case int:
		*dst = float64(v)
	}
}

func overrideString(m map[string]interface{}, key string, dst *string) {
	if v, ok := m[key].(string); ok {
		*dst = v
	}
}

// writeKubernetesConfig renders the scaling config as <name>_config.json in
// the source location so the deployment tooling can pick it up.
func writeKubernetesConfig(location, name string, cfg KubernetesConfig) error {
	bs, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(location, name+"_config.json")
	return errors.Wrapf(os.WriteFile(path, bs, 0o644), "writing %s", path)
}

// DeploymentProperties describes how the built image should be deployed. The
// map form mirrors what the deployment backends consume.
func DeploymentProperties(cfg *Config, imageName string) map[string]interface{} {
	deploy := *cfg.Deploy
	properties := map[string]interface{}{}
	for k, v := range deploy.Properties {
		properties[k] = v
	}

	if deploy.Orchestrator.K8sMode() {
		properties["kubernetes_config"] = kubernetesConfig(deploy)
	}
	if in(deploy.Orchestrator, []Orchestrator{LocalDocker, LocalDockerLambda, LocalDockerK8s}) {
		properties["image_name"] = imageName
		properties["lambda_mode"] = deploy.Orchestrator.LambdaMode()
		properties["enable_cuda"] = deploy.EnableCuda
		if deploy.Orchestrator == LocalDockerK8s {
			properties["k8s_mode"] = true
		}
	}
	return properties
}
