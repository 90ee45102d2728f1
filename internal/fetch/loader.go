package fetch

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"teachcal/internal/model"
)

// Loader produces the raw record list for one schedule load.
type Loader interface {
	Load(ctx context.Context) ([]model.LessonRecord, error)
}

// HTTPLoader loads records from a schedule endpoint.
type HTTPLoader struct {
	Fetcher *Fetcher
	Source  Source
}

func (l HTTPLoader) Load(ctx context.Context) ([]model.LessonRecord, error) {
	return l.Fetcher.Fetch(ctx, l.Source)
}

// FileLoader loads records from a local YAML or JSON file using the same
// field names as the endpoint payload.
type FileLoader struct {
	Path string
}

func (l FileLoader) Load(_ context.Context) ([]model.LessonRecord, error) {
	data, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, err
	}
	var records []model.LessonRecord
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, l.Path, err)
	}
	return records, nil
}
