package journey

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pathwave/journey/pkg/eventbus"
	"github.com/pathwave/journey/pkg/events"
	"github.com/pathwave/journey/pkg/models"
	"github.com/pathwave/journey/pkg/persistence"
	"github.com/pathwave/journey/pkg/senders"
)

// Service is the version store. Drafts may be saved with incomplete graphs;
// publish runs full validation and performs the atomic single-active-version
// transition.
type Service struct {
	persistence persistence.Persistence
	senders     *senders.Registry
	bus         eventbus.EventPublisher
	logger      *slog.Logger
}

func NewService(p persistence.Persistence, registry *senders.Registry, bus eventbus.EventPublisher, logger *slog.Logger) *Service {
	return &Service{
		persistence: p,
		senders:     registry,
		bus:         bus,
		logger:      logger.With("component", "journey_service"),
	}
}

// CreateJourney registers a new automation definition with no versions yet.
func (s *Service) CreateJourney(ctx context.Context, name, description string) (*models.Journey, error) {
	if name == "" {
		return nil, ErrJourneyNameRequired
	}

	journey := &models.Journey{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
	}

	if err := s.persistence.SaveJourney(ctx, journey); err != nil {
		return nil, fmt.Errorf("failed to save journey: %w", err)
	}

	return journey, nil
}

// Journeys lists all journeys.
func (s *Service) Journeys(ctx context.Context) ([]*models.Journey, error) {
	return s.persistence.Journeys(ctx)
}

// JourneyByID returns one journey.
func (s *Service) JourneyByID(ctx context.Context, id string) (*models.Journey, error) {
	return s.persistence.JourneyByID(ctx, id)
}

// SaveDraft allocates the next version number and stores the graph as a
// draft. Only node-id uniqueness and edge referential integrity are
// enforced here; authors may save in-progress graphs.
func (s *Service) SaveDraft(ctx context.Context, journeyID string, graph models.Graph) (*models.JourneyVersion, error) {
	if _, err := s.persistence.JourneyByID(ctx, journeyID); err != nil {
		return nil, err
	}

	if err := graph.CheckReferences(); err != nil {
		return nil, err
	}

	number, err := s.persistence.NextVersionNumber(ctx, journeyID)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate version number: %w", err)
	}

	version := &models.JourneyVersion{
		ID:        uuid.New().String(),
		JourneyID: journeyID,
		Version:   number,
		Status:    models.VersionStatusDraft,
		Graph:     graph,
	}

	if err := s.persistence.CreateVersion(ctx, version); err != nil {
		return nil, fmt.Errorf("failed to save draft: %w", err)
	}

	s.logger.InfoContext(ctx, "Draft saved", "journey_id", journeyID, "version", number)

	return version, nil
}

// Publish validates the version's graph and atomically makes it the
// journey's single published version, archiving the prior one and any
// competing drafts. A concurrent publish race surfaces as
// ErrPublishConflict with no side effects; the loser's target is archived
// by the winner, so a retry conflicts again until a fresh draft is saved.
func (s *Service) Publish(ctx context.Context, versionID string) (*models.JourneyVersion, error) {
	version, err := s.persistence.VersionByID(ctx, versionID)
	if err != nil {
		return nil, err
	}

	if err := s.validateForPublishing(&version.Graph); err != nil {
		return nil, err
	}

	published, err := s.persistence.PublishVersion(ctx, versionID, time.Now())
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Version published",
		"journey_id", published.JourneyID,
		"version", published.Version,
	)

	s.publishEvent(ctx, published)

	return published, nil
}

// GetPublished is the engine's read path for a journey's active graph.
func (s *Service) GetPublished(ctx context.Context, journeyID string) (*models.JourneyVersion, error) {
	return s.persistence.PublishedVersion(ctx, journeyID)
}

// Versions lists all versions of a journey, oldest first.
func (s *Service) Versions(ctx context.Context, journeyID string) ([]*models.JourneyVersion, error) {
	if _, err := s.persistence.JourneyByID(ctx, journeyID); err != nil {
		return nil, err
	}

	return s.persistence.VersionsByJourney(ctx, journeyID)
}

// validateForPublishing runs the structural validator plus channel payload
// schema checks for every action node.
func (s *Service) validateForPublishing(graph *models.Graph) error {
	if len(graph.Nodes) == 0 {
		return ErrGraphRequired
	}

	if err := graph.Validate(); err != nil {
		return err
	}

	if s.senders == nil {
		return nil
	}

	for _, node := range graph.Nodes {
		if node.Type != models.NodeTypeAction {
			continue
		}

		action, err := node.ActionData()
		if err != nil {
			return &models.ValidationError{NodeID: node.ID, Message: err.Error()}
		}

		if err := s.senders.ValidatePayload(action.Channel, action.Payload); err != nil {
			return &models.ValidationError{NodeID: node.ID, Message: err.Error()}
		}
	}

	return nil
}

func (s *Service) publishEvent(ctx context.Context, version *models.JourneyVersion) {
	if s.bus == nil {
		return
	}

	event := events.JourneyPublished{
		BaseEvent: events.BaseEvent{
			ID:        uuid.New().String(),
			Type:      events.JourneyPublishedEvent,
			Timestamp: time.Now().UTC(),
			JourneyID: version.JourneyID,
		},
		VersionID: version.ID,
		Version:   version.Version,
	}

	if err := s.bus.Publish(ctx, version.JourneyID, event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish lifecycle event", "error", err)
	}
}
