package modelstore

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"skincheck/domain/pipeline"

	"gopkg.in/yaml.v3"
)

// Entry maps a registry name onto an artifact file.
type Entry struct {
	Name  string `yaml:"name"`
	Label string `yaml:"label"`
	File  string `yaml:"file"`
}

// Manifest is the registry.yaml document.
type Manifest struct {
	Models []Entry `yaml:"models"`
}

// DefaultManifest lists the four classifiers the application ships with.
func DefaultManifest() Manifest {
	return Manifest{Models: []Entry{
		{Name: "log_reg", Label: "Logistic Regression", File: "pipeline_logistic_regression.json"},
		{Name: "random_forest", Label: "Random Forest", File: "pipeline_random_forest.json"},
		{Name: "gradient_boosting", Label: "Gradient Boosting", File: "pipeline_gradient_boosting.json"},
		{Name: "knn", Label: "K-Nearest Neighbors", File: "pipeline_knn.json"},
	}}
}

// ReadManifest parses a registry file. A missing file yields the default manifest.
func ReadManifest(path string) (Manifest, bool, error) {
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultManifest(), false, nil
	}
	if err != nil {
		return Manifest{}, false, err
	}
	var m Manifest
	if err := yaml.Unmarshal(content, &m); err != nil {
		return Manifest{}, true, fmt.Errorf("parse %s: %w", path, err)
	}
	seen := make(map[string]bool, len(m.Models))
	for i, e := range m.Models {
		if e.Name == "" || e.File == "" {
			return Manifest{}, true, fmt.Errorf("%s: entry %d needs name and file", path, i)
		}
		if seen[e.Name] {
			return Manifest{}, true, fmt.Errorf("%s: duplicate model %q", path, e.Name)
		}
		seen[e.Name] = true
	}
	return m, true, nil
}

// WriteManifest stores a registry file.
func WriteManifest(path string, m Manifest) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// SaveArtifact writes one artifact into dir.
func SaveArtifact(dir, file string, a *pipeline.Artifact) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(dir, file))
	if err != nil {
		return err
	}
	if err := a.Encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
