// Package file provides a JSON-file persistence implementation. It backs
// local development and tests; the guarantees the engine needs (conditional
// publish, conditional task claims) are provided by a single mutex.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pathwave/journey/pkg/models"
	"github.com/pathwave/journey/pkg/persistence"
)

// Persistence implements persistence.Persistence using JSON files under a
// root directory.
type Persistence struct {
	root string

	mu          sync.Mutex
	journeys    map[string]*models.Journey
	versions    map[string]*models.JourneyVersion
	tasks       map[string]*models.JourneyTask
	completions map[string]*models.Completion
}

// NewPersistence creates a file persistence rooted at the given directory.
func NewPersistence(root string) (*Persistence, error) {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	if err := os.MkdirAll(cleanRoot, 0750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	p := &Persistence{
		root:        cleanRoot,
		journeys:    make(map[string]*models.Journey),
		versions:    make(map[string]*models.JourneyVersion),
		tasks:       make(map[string]*models.JourneyTask),
		completions: make(map[string]*models.Completion),
	}

	if err := p.load(); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}

	return p, nil
}

func (p *Persistence) load() error {
	if err := loadFile(p.path("journeys.json"), &p.journeys); err != nil {
		return err
	}

	if err := loadFile(p.path("versions.json"), &p.versions); err != nil {
		return err
	}

	if err := loadFile(p.path("tasks.json"), &p.tasks); err != nil {
		return err
	}

	return loadFile(p.path("completions.json"), &p.completions)
}

func (p *Persistence) path(name string) string {
	return filepath.Join(p.root, name)
}

func loadFile[T any](path string, into *map[string]T) error {
	data, err := os.ReadFile(path) //nolint:gosec // path is under our data dir
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return nil
}

func saveFile(path string, from any) error {
	data, err := json.MarshalIndent(from, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}

// Close flushes all state to disk.
func (p *Persistence) Close(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.flushLocked()
}

func (p *Persistence) flushLocked() error {
	if err := saveFile(p.path("journeys.json"), p.journeys); err != nil {
		return err
	}

	if err := saveFile(p.path("versions.json"), p.versions); err != nil {
		return err
	}

	if err := saveFile(p.path("tasks.json"), p.tasks); err != nil {
		return err
	}

	return saveFile(p.path("completions.json"), p.completions)
}

// HealthCheck verifies the root directory still exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Journeys returns all journeys.
func (p *Persistence) Journeys(_ context.Context) ([]*models.Journey, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	journeys := make([]*models.Journey, 0, len(p.journeys))
	for _, journey := range p.journeys {
		journeys = append(journeys, copyJourney(journey))
	}

	return journeys, nil
}

// JourneyByID returns a journey by id.
func (p *Persistence) JourneyByID(_ context.Context, id string) (*models.Journey, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	journey, ok := p.journeys[id]
	if !ok {
		return nil, persistence.ErrJourneyNotFound
	}

	return copyJourney(journey), nil
}

// SaveJourney stores or replaces a journey.
func (p *Persistence) SaveJourney(_ context.Context, journey *models.Journey) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.journeys[journey.ID] = copyJourney(journey)

	return p.flushLocked()
}

// DeleteJourney removes a journey, rejecting while versions reference it.
func (p *Persistence) DeleteJourney(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.journeys[id]; !ok {
		return persistence.ErrJourneyNotFound
	}

	for _, version := range p.versions {
		if version.JourneyID == id {
			return persistence.ErrJourneyHasVersions
		}
	}

	delete(p.journeys, id)

	return p.flushLocked()
}

func copyJourney(journey *models.Journey) *models.Journey {
	copied := *journey

	if journey.PublishedVersion != nil {
		version := *journey.PublishedVersion
		copied.PublishedVersion = &version
	}

	return &copied
}

func copyVersion(version *models.JourneyVersion) *models.JourneyVersion {
	copied := *version

	if version.PublishedAt != nil {
		at := *version.PublishedAt
		copied.PublishedAt = &at
	}

	// Graph snapshots are immutable once saved; re-encode to keep callers
	// from aliasing stored nodes.
	data, err := json.Marshal(version.Graph)
	if err == nil {
		var graph models.Graph
		if json.Unmarshal(data, &graph) == nil {
			copied.Graph = graph
		}
	}

	return &copied
}

func copyTask(task *models.JourneyTask) *models.JourneyTask {
	copied := *task

	if task.ClaimedAt != nil {
		at := *task.ClaimedAt
		copied.ClaimedAt = &at
	}

	data, err := json.Marshal(task.Context)
	if err == nil {
		var taskContext map[string]any
		if json.Unmarshal(data, &taskContext) == nil {
			copied.Context = taskContext
		}
	}

	return &copied
}

var _ persistence.Persistence = (*Persistence)(nil)

// now is indirected for tests.
var now = time.Now
