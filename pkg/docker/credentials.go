package docker

import (
	"encoding/json"
	"os"
	"path/filepath"

	hclient "github.com/docker/docker-credential-helpers/client"
	"github.com/docker/docker/api/types"
	"github.com/pkg/errors"
)

const (
	//nolint:gosec // It thinks these are credentials...
	credentialHelperPrefix = "docker-credential-"
	tokenUsername          = "<token>"
)

// dockerConfig is the subset of ~/.docker/config.json the client cares about.
type dockerConfig struct {
	CredHelpers map[string]string           `json:"credHelpers"`
	Auths       map[string]types.AuthConfig `json:"auths"`
}

// credentialStore resolves credentials for one registry through its
// configured helper binary.
type credentialStore struct {
	registry string
	program  hclient.ProgramFunc
}

// processDockerConfig reads the user's docker config and returns the
// per-registry credential helpers and the static auths section.
func processDockerConfig() (map[string]*credentialStore, map[string]types.AuthConfig, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, nil, errors.Wrap(err, "unable to find user's HOME directory")
	}
	return parseDockerConfig(filepath.Join(home, ".docker", "config.json"))
}

func parseDockerConfig(path string) (map[string]*credentialStore, map[string]types.AuthConfig, error) {
	bs, err := os.ReadFile(path) // #nosec: G304
	if err != nil {
		return nil, nil, errors.Wrap(err, "can't read docker config")
	}

	var config dockerConfig
	if err := json.Unmarshal(bs, &config); err != nil {
		return nil, nil, errors.Wrap(err, "can't parse docker config")
	}

	stores := make(map[string]*credentialStore, len(config.CredHelpers))
	for registry, helper := range config.CredHelpers {
		stores[registry] = &credentialStore{
			registry: registry,
			program:  hclient.NewShellProgramFunc(credentialHelperPrefix + helper),
		}
	}
	return stores, config.Auths, nil
}

// get runs the helper binary and shapes its answer into an AuthConfig. Helpers
// signal a token credential with the "<token>" username.
func (s *credentialStore) get() (types.AuthConfig, error) {
	creds, err := hclient.Get(s.program, s.registry)
	if err != nil {
		return types.AuthConfig{}, errors.Wrapf(err, "credential helper failed for %s", s.registry)
	}

	auth := types.AuthConfig{ServerAddress: s.registry}
	if creds.Username == tokenUsername {
		auth.IdentityToken = creds.Secret
	} else {
		auth.Username = creds.Username
		auth.Password = creds.Secret
	}
	return auth, nil
}
