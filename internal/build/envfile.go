package build

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// EnvFile is the ordered KEY=VALUE file handed to the s2i build with -E. The
// builder seeds it with the serving contract of the chosen orchestrator.
type EnvFile struct {
	path  string
	keys  []string
	items map[string]string
}

// NewEnvFile returns an empty env file that will be saved at path.
func NewEnvFile(path string) *EnvFile {
	return &EnvFile{
		path:  path,
		items: map[string]string{},
	}
}

// LoadEnvFile reads an existing env file; a missing file yields an empty one.
func LoadEnvFile(path string) (*EnvFile, error) {
	e := NewEnvFile(path)
	bs, err := os.ReadFile(path) // #nosec G304
	if os.IsNotExist(err) {
		return e, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading env file %s", path)
	}

	for _, line := range strings.Split(string(bs), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			return nil, errors.Errorf("malformed env file line %q in %s", line, path)
		}
		e.Set(key, value)
	}
	return e, nil
}

// Location returns the on-disk path of the env file.
func (e *EnvFile) Location() string { return e.path }

// Get returns the value for key and whether it is present.
func (e *EnvFile) Get(key string) (string, bool) {
	value, ok := e.items[key]
	return value, ok
}

// Set adds the key or updates it in place, preserving insertion order.
func (e *EnvFile) Set(key, value string) {
	if _, ok := e.items[key]; !ok {
		e.keys = append(e.keys, key)
	}
	e.items[key] = value
}

// Delete removes the key; deleting an absent key is a no-op.
func (e *EnvFile) Delete(key string) {
	if _, ok := e.items[key]; !ok {
		return
	}
	delete(e.items, key)
	for i, k := range e.keys {
		if k == key {
			e.keys = append(e.keys[:i], e.keys[i+1:]...)
			break
		}
	}
}

// Save writes the env file to its location.
func (e *EnvFile) Save() error {
	var b strings.Builder
	for _, key := range e.keys {
		fmt.Fprintf(&b, "%s=%s\n", key, e.items[key])
	}
	return errors.Wrapf(os.WriteFile(e.path, []byte(b.String()), 0o644),
		"writing env file %s", e.path)
}
