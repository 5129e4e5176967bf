package build

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gotest.tools/assert"
)

func TestPrepareEntrypointsSageMaker(t *testing.T) {
	dir := t.TempDir()
	err := prepareEntrypoints(dir, AWSSageMaker, entrypointParams{
		ModelIdentifier: "models.my_model.MyModel.MyModel",
		WorkerCount:     2,
	})
	assert.NilError(t, err)

	handler, err := os.ReadFile(filepath.Join(dir, handlerFileName))
	assert.NilError(t, err)
	assert.Assert(t, strings.Contains(string(handler), "models.my_model.MyModel.MyModel"))
	assert.Assert(t, strings.Contains(string(handler), "sagemaker_handler"))
	assert.Assert(t, !strings.Contains(string(handler), "lambda_handler"))

	entrypoint, err := os.ReadFile(filepath.Join(dir, entrypointFileName))
	assert.NilError(t, err)
	assert.Assert(t, strings.Contains(string(entrypoint), "worker_count=2"))
}

func TestPrepareEntrypointsLambda(t *testing.T) {
	dir := t.TempDir()
	err := prepareEntrypoints(dir, AWSLambda, entrypointParams{
		ModelIdentifier: "MyModel",
		LambdaCacheSize: 32,
	})
	assert.NilError(t, err)

	handler, err := os.ReadFile(filepath.Join(dir, handlerFileName))
	assert.NilError(t, err)
	assert.Assert(t, strings.Contains(string(handler), "lambda_handler(cache_size=32)"))

	_, err = os.Stat(filepath.Join(dir, entrypointFileName))
	assert.Assert(t, os.IsNotExist(err))
}

func TestPrepareEntrypointsK8s(t *testing.T) {
	dir := t.TempDir()
	assert.NilError(t, prepareEntrypoints(dir, AWSEKS, entrypointParams{}))

	// The seldon microservice loads the model directly, no files needed.
	entries, err := os.ReadDir(dir)
	assert.NilError(t, err)
	assert.Equal(t, len(entries), 0)
}

func TestPrepareEntrypointsUnknownOrchestrator(t *testing.T) {
	err := prepareEntrypoints(t.TempDir(), Minikube, entrypointParams{})
	assert.ErrorContains(t, err, "no entrypoint strategy")
}
