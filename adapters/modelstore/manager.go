// Package modelstore loads fitted pipelines from disk and caches them by name.
package modelstore

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"skincheck/domain/pipeline"
	"skincheck/internal/errors"
	"skincheck/internal/logging"

	"golang.org/x/sync/errgroup"
)

// Manager is the process-wide model cache. The first call to any accessor
// loads every manifest entry; there is no invalidation afterwards.
type Manager struct {
	dir          string
	manifestPath string
	logger       *logging.Logger

	mu      sync.Mutex
	loaded  bool
	models  map[string]*pipeline.Pipeline
	labels  map[string]string
	ordered []string
}

// NewManager creates a manager reading artifacts from dir.
func NewManager(dir, manifestPath string, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		dir:          dir,
		manifestPath: manifestPath,
		logger:       logger.Named("models"),
		models:       make(map[string]*pipeline.Pipeline),
		labels:       make(map[string]string),
	}
}

// Load populates the cache once. Missing or malformed artifacts are logged and
// skipped; only an unreadable manifest is an error.
func (m *Manager) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loaded {
		return nil
	}

	manifest, found, err := ReadManifest(m.manifestPath)
	if err != nil {
		return errors.Wrap(err, "failed to read model registry")
	}
	if !found {
		m.logger.Debug("no registry at %s, using default model list", m.manifestPath)
	}

	results := make([]*pipeline.Pipeline, len(manifest.Models))
	g, _ := errgroup.WithContext(ctx)
	for i, entry := range manifest.Models {
		g.Go(func() error {
			p, err := m.loadEntry(entry)
			if err != nil {
				m.logger.Error("✗ %v", err)
				return nil
			}
			results[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, entry := range manifest.Models {
		if results[i] == nil {
			continue
		}
		m.models[entry.Name] = results[i]
		m.labels[entry.Name] = entry.Label
		m.ordered = append(m.ordered, entry.Name)
		m.logger.Info("✓ model loaded: %s (%s)", entry.Name, results[i].Kind())
	}
	if len(m.ordered) == 0 {
		m.logger.Warn("no models loaded from %s; run `skincheck-cli train` to fit and save them", m.dir)
	}
	m.loaded = true
	return nil
}

func (m *Manager) loadEntry(entry Entry) (*pipeline.Pipeline, error) {
	path := entry.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(m.dir, path)
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.NotFound("model file " + path)
	}
	if err != nil {
		return nil, errors.ArtifactInvalid(path, err)
	}
	defer f.Close()

	artifact, err := pipeline.DecodeArtifact(f)
	if err != nil {
		return nil, errors.ArtifactInvalid(path, err)
	}
	// the registry name wins over whatever the artifact was saved as
	artifact.Name = entry.Name
	p, err := pipeline.FromArtifact(artifact)
	if err != nil {
		return nil, errors.ArtifactInvalid(path, err)
	}
	return p, nil
}

func (m *Manager) ensure() error {
	return m.Load(context.Background())
}

// Get returns the named pipeline.
func (m *Manager) Get(name string) (*pipeline.Pipeline, error) {
	if err := m.ensure(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.models[name]
	if !ok {
		return nil, errors.ModelUnavailable(name)
	}
	return p, nil
}

// All returns a copy of the cache.
func (m *Manager) All() (map[string]*pipeline.Pipeline, error) {
	if err := m.ensure(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*pipeline.Pipeline, len(m.models))
	for k, v := range m.models {
		out[k] = v
	}
	return out, nil
}

// Names lists loaded models in manifest order.
func (m *Manager) Names() ([]string, error) {
	if err := m.ensure(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.ordered...), nil
}

// Label returns the display label of a model, falling back to its name.
func (m *Manager) Label(name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l := m.labels[name]; l != "" {
		return l
	}
	return name
}
