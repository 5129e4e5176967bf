package docker

import (
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/assert"
)

func TestParseDockerConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	assert.NilError(t, os.WriteFile(path, []byte(`{
  "credHelpers": {
    "123456789012.dkr.ecr.us-east-1.amazonaws.com": "ecr-login",
    "gcr.io": "gcloud"
  },
  "auths": {
    "registry.example.com": {"auth": "dXNlcjpwYXNz"}
  }
}`), 0o600))

	stores, auths, err := parseDockerConfig(path)
	assert.NilError(t, err)

	assert.Equal(t, len(stores), 2)
	store, ok := stores["gcr.io"]
	assert.Assert(t, ok)
	assert.Equal(t, store.registry, "gcr.io")
	assert.Assert(t, store.program != nil)

	auth, ok := auths["registry.example.com"]
	assert.Assert(t, ok)
	assert.Equal(t, auth.Auth, "dXNlcjpwYXNz")
}

func TestParseDockerConfigMissing(t *testing.T) {
	_, _, err := parseDockerConfig(filepath.Join(t.TempDir(), "config.json"))
	assert.ErrorContains(t, err, "can't read docker config")
}

func TestParseDockerConfigMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	assert.NilError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, _, err := parseDockerConfig(path)
	assert.ErrorContains(t, err, "can't parse docker config")
}
