package repositories

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/desertthunder/readdon/internal/models"
	"github.com/desertthunder/readdon/internal/shared"
	"gopkg.in/yaml.v3"
)

// DesiredStateFile reads and writes the desired addon list.
//
// The format follows the extension: .yaml and .yml are YAML, anything else is JSON. Both hold
// a list of {transportUrl, manifest, flags} objects.
type DesiredStateFile struct {
	path string
}

// NewDesiredStateFile creates a desired-state file at path. A .yaml or .yml extension selects
// YAML, anything else JSON.
func NewDesiredStateFile(path string) *DesiredStateFile {
	return &DesiredStateFile{path: path}
}

// Path returns the backing file path.
func (f *DesiredStateFile) Path() string { return f.path }

func (f *DesiredStateFile) isYAML() bool {
	ext := strings.ToLower(filepath.Ext(f.path))
	return ext == ".yaml" || ext == ".yml"
}

// Exists reports whether the file is present.
func (f *DesiredStateFile) Exists() bool {
	_, err := os.Stat(f.path)
	return err == nil
}

// Load reads the desired state. A missing file returns [shared.ErrMissingDesired].
func (f *DesiredStateFile) Load() (*models.DesiredState, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", shared.ErrMissingDesired, f.path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.path, err)
	}

	if f.isYAML() {
		if data, err = yamlToJSON(data); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", shared.ErrInvalidInput, f.path, err)
		}
	}

	var entries []models.AddonDescriptor
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", shared.ErrInvalidInput, f.path, err)
	}

	ds, err := models.NewDesiredState(entries...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", shared.ErrInvalidManifest, f.path, err)
	}
	return ds, nil
}

// Save writes the desired state atomically.
func (f *DesiredStateFile) Save(ds *models.DesiredState) error {
	entries := ds.Descriptors()
	if entries == nil {
		entries = []models.AddonDescriptor{}
	}

	data, err := json.MarshalIndent(entries, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode desired state: %w", err)
	}
	if f.isYAML() {
		if data, err = jsonToYAML(data); err != nil {
			return fmt.Errorf("failed to encode desired state: %w", err)
		}
	} else {
		data = append(data, '\n')
	}

	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	return shared.WriteFileAtomic(f.path, data, 0o644)
}

// yamlToJSON decodes a YAML document and re-encodes it as JSON so manifests keep every member.
func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(doc)
}

func jsonToYAML(data []byte) ([]byte, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return yaml.Marshal(doc)
}
