// Package secrets resolves named credential maps for the storage and
// telemetry collaborators.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when a secret name is absent from the backend.
var ErrNotFound = errors.New("secret not found")

// Store resolves a named secret to a string map.
type Store interface {
	Get(ctx context.Context, name string) (map[string]string, error)
}

// FileStore reads secrets from a single YAML document of named maps:
//
//	modtrack/database:
//	  username: postgres
//	  password: postgres
//	  host: localhost
//	  port: "5432"
//	  dbname: modtrack
//	modtrack/api:
//	  api_url: http://localhost:8000
//	  api_key: test_key
//
// The file is read on every Get so credential rotation does not require a
// restart.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed secret store. The file is not opened
// until the first Get, so bootstrap retries cover a file that appears late.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Get(_ context.Context, name string) (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read secrets file: %w", err)
	}

	var doc map[string]map[string]string
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse secrets file %s: %w", s.path, err)
	}

	secret, ok := doc[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return secret, nil
}
