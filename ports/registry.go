package ports

import (
	"context"

	"skincheck/domain/pipeline"
)

// ModelRegistry resolves fitted pipelines by name
type ModelRegistry interface {
	Load(ctx context.Context) error
	Get(name string) (*pipeline.Pipeline, error)
	All() (map[string]*pipeline.Pipeline, error)
	Names() ([]string, error)
	Label(name string) string
}
