package build

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	hashFileName         = ".hash.json"
	orchestratorFileName = ".orchestrator.json"
)

// ChangeTracker decides whether the pip layer must be rebuilt from scratch by
// hashing the dependency manifests and remembering the orchestrator of the
// previous build.
type ChangeTracker struct {
	cacheRoot string
	log       *logrus.Entry
}

// NewChangeTracker returns a tracker storing its state under cacheRoot.
func NewChangeTracker(cacheRoot string) *ChangeTracker {
	return &ChangeTracker{
		cacheRoot: cacheRoot,
		log:       logrus.WithField("component", "build-tracker"),
	}
}

// Track hashes the given files for the name/version build and compares them
// and the orchestrator with the previous invocation. It returns true when
// anything changed, which forces a from-scratch pip layer.
func (t *ChangeTracker) Track(
	name, version string, orchestrator Orchestrator, files []string,
) (bool, error) {
	cacheDir := filepath.Join(t.cacheRoot, name, version)
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return false, errors.Wrap(err, "creating build cache directory")
	}

	changed, err := t.trackHashes(cacheDir, files)
	if err != nil {
		return false, err
	}

	orchChanged, err := t.trackOrchestrator(cacheDir, orchestrator)
	if err != nil {
		return false, err
	}
	return changed || orchChanged, nil
}

func (t *ChangeTracker) trackHashes(cacheDir string, files []string) (bool, error) {
	hashFile := filepath.Join(cacheDir, hashFileName)
	previous := map[string]string{}
	if bs, err := os.ReadFile(hashFile); err == nil { // #nosec G304
		if err := json.Unmarshal(bs, &previous); err != nil {
			// A corrupt hash file only costs us a rebuild.
			t.log.WithError(err).Warnf("ignoring unreadable %s", hashFileName)
			previous = map[string]string{}
		}
	}

	changed := false
	next := map[string]string{}
	for k, v := range previous {
		next[k] = v
	}
	for _, file := range files {
		sum, err := hashFileContent(file)
		if err != nil {
			return false, err
		}
		if sum != previous[file] {
			t.log.Infof("detected changes in %s, rebuilding pip layer", file)
			changed = true
		}
		next[file] = sum
	}

	bs, err := json.Marshal(next)
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(hashFile, bs, 0o644); err != nil {
		return false, errors.Wrapf(err, "writing %s", hashFileName)
	}
	return changed, nil
}

func (t *ChangeTracker) trackOrchestrator(
	cacheDir string, orchestrator Orchestrator,
) (bool, error) {
	stateFile := filepath.Join(cacheDir, orchestratorFileName)
	var previous struct {
		Orchestrator Orchestrator `json:"orchestrator"`
	}
	changed := true
	if bs, err := os.ReadFile(stateFile); err == nil { // #nosec G304
		if err := json.Unmarshal(bs, &previous); err == nil {
			changed = previous.Orchestrator != orchestrator
		}
	}
	if changed {
		t.log.Info("orchestrator changed, rebuilding pip layer")
	}

	previous.Orchestrator = orchestrator
	bs, err := json.Marshal(previous)
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(stateFile, bs, 0o644); err != nil {
		return false, errors.Wrapf(err, "writing %s", orchestratorFileName)
	}
	return changed, nil
}

func hashFileContent(path string) (string, error) {
	bs, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return "", errors.Wrapf(err, "hashing %s", path)
	}
	sum := sha256.Sum256(bs)
	return hex.EncodeToString(sum[:]), nil
}
