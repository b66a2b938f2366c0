package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pathwave/journey/pkg/eventbus"
	"github.com/pathwave/journey/pkg/events"
	"github.com/pathwave/journey/pkg/models"
	"github.com/pathwave/journey/pkg/persistence"
	"github.com/pathwave/journey/pkg/profiles"
	"github.com/pathwave/journey/pkg/senders"
)

// defaultMaxSteps bounds the synchronous node count of one walk.
const defaultMaxSteps = 1000

// Context keys the engine reserves inside a walk's accumulated context.
const (
	contextKeyWalkID     = "walk_id"
	contextKeyEvent      = "event"
	contextKeyProfile    = "subject_profile"
	contextKeyBranches   = "branches"
	contextKeyDispatches = "dispatches"
)

// WaitScheduler persists a paused execution for later resumption. Implemented
// by the scheduler package; declared here so the engine does not depend on
// it.
type WaitScheduler interface {
	ScheduleWait(ctx context.Context, task *models.JourneyTask) (string, error)
}

// Engine walks journey graphs. It holds no in-memory timers: waits are
// always handed to the WaitScheduler as persisted tasks.
type Engine struct {
	persistence persistence.Persistence
	senders     *senders.Registry
	profiles    profiles.Store
	bus         eventbus.EventPublisher
	scheduler   WaitScheduler
	logger      *slog.Logger
	maxSteps    int
}

func New(p persistence.Persistence, registry *senders.Registry, store profiles.Store, bus eventbus.EventPublisher, logger *slog.Logger) *Engine {
	return &Engine{
		persistence: p,
		senders:     registry,
		profiles:    store,
		bus:         bus,
		logger:      logger.With("component", "engine"),
		maxSteps:    defaultMaxSteps,
	}
}

// SetScheduler wires the wait scheduler. Separate from New because the
// scheduler needs the engine as its resumer.
func (e *Engine) SetScheduler(scheduler WaitScheduler) {
	e.scheduler = scheduler
}

// OnEvent starts a walk for every journey whose published version's trigger
// matches the event. Non-matching and unpublished journeys are skipped
// silently; one journey's walk failure does not stop the others.
func (e *Engine) OnEvent(ctx context.Context, event models.Event) ([]WalkResult, error) {
	journeys, err := e.persistence.Journeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list journeys: %w", err)
	}

	profile, err := e.profiles.Profile(ctx, event.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile for %s: %w", event.SubjectID, err)
	}

	results := make([]WalkResult, 0)

	for _, journey := range journeys {
		version, err := e.persistence.PublishedVersion(ctx, journey.ID)
		if err != nil {
			if errors.Is(err, persistence.ErrPublishedVersionNotFound) {
				continue
			}

			return results, fmt.Errorf("failed to load published version of %s: %w", journey.ID, err)
		}

		trigger := version.Graph.TriggerNode()
		if trigger == nil {
			continue
		}

		walkContext := buildWalkContext(event, profile)

		if !e.triggerMatches(trigger, event, walkContext) {
			continue
		}

		successor := version.Graph.OutgoingEdge(trigger.ID)
		if successor == nil {
			continue
		}

		walkID := uuid.New().String()
		walkContext[contextKeyWalkID] = walkID

		e.publishWalkStarted(ctx, version, event.SubjectID, walkID, successor.Target)

		result := e.walk(ctx, walkParams{
			version:   version,
			subjectID: event.SubjectID,
			walkID:    walkID,
			context:   walkContext,
			startNode: successor.Target,
		})

		results = append(results, result)
	}

	return results, nil
}

// Resume continues a paused execution against its pinned version, which is
// not necessarily the currently published one.
func (e *Engine) Resume(ctx context.Context, task *models.JourneyTask) (WalkResult, error) {
	version, err := e.persistence.VersionByNumber(ctx, task.JourneyID, task.Version)
	if err != nil {
		if errors.Is(err, persistence.ErrVersionNotFound) {
			return WalkResult{}, fmt.Errorf("%w: journey %s version %d", ErrResumeTarget, task.JourneyID, task.Version)
		}

		return WalkResult{}, fmt.Errorf("failed to load version %d of %s: %w", task.Version, task.JourneyID, err)
	}

	if version.Graph.NodeByID(task.NodeID) == nil {
		return WalkResult{}, fmt.Errorf("%w: node %s in version %d", ErrResumeTarget, task.NodeID, task.Version)
	}

	walkContext := task.Context
	if walkContext == nil {
		walkContext = make(map[string]any)
	}

	// Reusing the original walk id keeps idempotency keys stable across
	// duplicate resumes of the same task.
	walkID, _ := walkContext[contextKeyWalkID].(string)
	if walkID == "" {
		walkID = uuid.New().String()
		walkContext[contextKeyWalkID] = walkID
	}

	result := e.walk(ctx, walkParams{
		version:   version,
		subjectID: task.SubjectID,
		walkID:    walkID,
		context:   walkContext,
		startNode: task.NodeID,
	})

	if result.Status == WalkStatusFailed {
		return result, errors.New(result.Error)
	}

	return result, nil
}

// triggerMatches applies the trigger's event or behavior match.
func (e *Engine) triggerMatches(trigger *models.Node, event models.Event, walkContext map[string]any) bool {
	data, err := trigger.TriggerData()
	if err != nil {
		return false
	}

	switch data.Kind {
	case models.TriggerKindEvent:
		return data.EventType != "" && data.EventType == event.EventType
	case models.TriggerKindBehavior:
		return models.Evaluate(walkContext, data.Field, data.Operator, data.Value)
	default:
		return false
	}
}

// buildWalkContext assembles the evaluation context. Profile traits sit at
// the top level so condition paths like "risk_profile" resolve directly;
// the event and the full profile are also reachable under reserved keys.
func buildWalkContext(event models.Event, profile map[string]any) map[string]any {
	walkContext := make(map[string]any, len(profile)+2)

	for key, value := range profile {
		walkContext[key] = value
	}

	walkContext[contextKeyProfile] = profile
	walkContext[contextKeyEvent] = map[string]any{
		"subject_id": event.SubjectID,
		"event_type": event.EventType,
		"timestamp":  event.Timestamp,
		"payload":    event.Payload,
	}

	return walkContext
}

func (e *Engine) publishWalkStarted(ctx context.Context, version *models.JourneyVersion, subjectID, walkID, nodeID string) {
	if e.bus == nil {
		return
	}

	event := events.WalkStarted{
		BaseEvent: events.BaseEvent{
			ID:        uuid.New().String(),
			Type:      events.WalkStartedEvent,
			Timestamp: time.Now().UTC(),
			JourneyID: version.JourneyID,
		},
		WalkID:    walkID,
		Version:   version.Version,
		SubjectID: subjectID,
		NodeID:    nodeID,
	}

	if err := e.bus.Publish(ctx, version.JourneyID, event); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish walk event", "error", err)
	}
}
