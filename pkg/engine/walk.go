package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pathwave/journey/pkg/events"
	"github.com/pathwave/journey/pkg/models"
)

// WalkStatus is the terminal state of one walk invocation.
type WalkStatus string

const (
	WalkStatusCompleted   WalkStatus = "completed"
	WalkStatusWaiting     WalkStatus = "waiting"
	WalkStatusGoalReached WalkStatus = "goal_reached"
	WalkStatusFailed      WalkStatus = "failed"
)

// WalkResult reports how a walk (or a resumed segment of one) ended.
type WalkResult struct {
	WalkID    string     `json:"walk_id"`
	JourneyID string     `json:"journey_id"`
	Version   int        `json:"version"`
	SubjectID string     `json:"subject_id"`
	EndNodeID string     `json:"end_node_id"`
	Steps     int        `json:"steps"`
	Status    WalkStatus `json:"status"`
	TaskID    string     `json:"task_id,omitempty"`
	Error     string     `json:"error,omitempty"`
}

type walkParams struct {
	version   *models.JourneyVersion
	subjectID string
	walkID    string
	context   map[string]any
	startNode string
}

// walk interprets the graph from startNode until it completes, pauses on a
// wait, reaches a goal, or fails. All outcomes are returned as a WalkResult;
// the Error field is set only on failure.
func (e *Engine) walk(ctx context.Context, params walkParams) WalkResult {
	result := WalkResult{
		WalkID:    params.walkID,
		JourneyID: params.version.JourneyID,
		Version:   params.version.Version,
		SubjectID: params.subjectID,
	}

	graph := &params.version.Graph
	currentID := params.startNode

	for {
		if currentID == "" {
			result.Status = WalkStatusCompleted
			e.publishWalkCompleted(ctx, result)

			return result
		}

		if result.Steps >= e.maxSteps {
			result.Status = WalkStatusFailed
			result.Error = fmt.Sprintf("%s after %d steps at node %s", ErrWalkBudgetExceeded, result.Steps, currentID)
			e.publishWalkFailed(ctx, result, currentID)

			return result
		}

		node := graph.NodeByID(currentID)
		if node == nil {
			result.Status = WalkStatusFailed
			result.Error = fmt.Sprintf("walk reached unknown node %s", currentID)
			e.publishWalkFailed(ctx, result, currentID)

			return result
		}

		result.Steps++
		result.EndNodeID = node.ID

		e.logger.DebugContext(ctx, "Walking node",
			"walk_id", params.walkID, "node_id", node.ID, "type", node.Type)

		switch node.Type {
		case models.NodeTypeCondition:
			nextID, err := e.stepCondition(node, graph, params.context)
			if err != nil {
				result.Status = WalkStatusFailed
				result.Error = err.Error()
				e.publishWalkFailed(ctx, result, node.ID)

				return result
			}

			currentID = nextID

		case models.NodeTypeAction:
			if err := e.stepAction(ctx, node, params); err != nil {
				result.Status = WalkStatusFailed
				result.Error = err.Error()
				e.publishWalkFailed(ctx, result, node.ID)

				return result
			}

			currentID = targetOf(graph.OutgoingEdge(node.ID))

		case models.NodeTypeWait:
			taskID, err := e.stepWait(ctx, node, graph, params)
			if err != nil {
				result.Status = WalkStatusFailed
				result.Error = err.Error()
				e.publishWalkFailed(ctx, result, node.ID)

				return result
			}

			result.Status = WalkStatusWaiting
			result.TaskID = taskID

			return result

		case models.NodeTypeGoal:
			if err := e.stepGoal(ctx, node, params); err != nil {
				result.Status = WalkStatusFailed
				result.Error = err.Error()
				e.publishWalkFailed(ctx, result, node.ID)

				return result
			}

			result.Status = WalkStatusGoalReached
			e.publishWalkCompleted(ctx, result)

			return result

		default:
			// Triggers never appear mid-walk on a validated graph.
			result.Status = WalkStatusFailed
			result.Error = fmt.Sprintf("walk cannot execute %s node %s", node.Type, node.ID)
			e.publishWalkFailed(ctx, result, node.ID)

			return result
		}
	}
}

// stepCondition evaluates the node's predicate and picks the labeled branch.
// A missing branch edge ends the walk rather than failing it.
func (e *Engine) stepCondition(node *models.Node, graph *models.Graph, walkContext map[string]any) (string, error) {
	data, err := node.ConditionData()
	if err != nil {
		return "", err
	}

	outcome := models.Evaluate(walkContext, data.Field, data.Operator, data.Value)

	label := models.EdgeLabelFalse
	if outcome {
		label = models.EdgeLabelTrue
	}

	appendContextEntry(walkContext, contextKeyBranches, map[string]any{
		"node_id": node.ID,
		"result":  outcome,
	})

	return targetOf(graph.LabeledEdge(node.ID, label)), nil
}

// stepAction dispatches to the channel sender under the walk's idempotency
// key. The key is recorded in the context only after a successful send, so a
// retried walk re-attempts the node.
func (e *Engine) stepAction(ctx context.Context, node *models.Node, params walkParams) error {
	data, err := node.ActionData()
	if err != nil {
		return err
	}

	key := idempotencyKey(params.version.JourneyID, params.version.Version, node.ID, params.subjectID, params.walkID)

	if err := e.senders.Send(ctx, data.Channel, data.Payload, key); err != nil {
		return &DispatchError{NodeID: node.ID, Channel: string(data.Channel), Err: err}
	}

	appendContextEntry(params.context, contextKeyDispatches, key)

	return nil
}

// stepWait persists a resumption task due after the node's delay. The task
// points at the wait node's successor and pins the walk's version.
func (e *Engine) stepWait(ctx context.Context, node *models.Node, graph *models.Graph, params walkParams) (string, error) {
	data, err := node.WaitData()
	if err != nil {
		return "", err
	}

	successor := targetOf(graph.OutgoingEdge(node.ID))
	if successor == "" {
		return "", fmt.Errorf("wait node %s has no successor", node.ID)
	}

	now := time.Now().UTC()
	task := &models.JourneyTask{
		ID:        uuid.New().String(),
		JourneyID: params.version.JourneyID,
		Version:   params.version.Version,
		NodeID:    successor,
		SubjectID: params.subjectID,
		Context:   params.context,
		DueAt:     now.Add(time.Duration(data.DelaySeconds) * time.Second),
		Status:    models.TaskStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if e.scheduler == nil {
		return "", fmt.Errorf("wait node %s reached without a scheduler", node.ID)
	}

	taskID, err := e.scheduler.ScheduleWait(ctx, task)
	if err != nil {
		return "", fmt.Errorf("failed to schedule wait at %s: %w", node.ID, err)
	}

	return taskID, nil
}

// stepGoal records a completion. The completion id is derived from the walk
// so replays collapse into one row.
func (e *Engine) stepGoal(ctx context.Context, node *models.Node, params walkParams) error {
	completion := &models.Completion{
		ID:          idempotencyKey(params.version.JourneyID, params.version.Version, node.ID, params.subjectID, params.walkID),
		JourneyID:   params.version.JourneyID,
		Version:     params.version.Version,
		SubjectID:   params.subjectID,
		GoalNodeID:  node.ID,
		CompletedAt: time.Now().UTC(),
	}

	if err := e.persistence.SaveCompletion(ctx, completion); err != nil {
		return fmt.Errorf("failed to record completion at %s: %w", node.ID, err)
	}

	if e.bus != nil {
		event := events.GoalReached{
			BaseEvent: events.BaseEvent{
				ID:        uuid.New().String(),
				Type:      events.GoalReachedEvent,
				Timestamp: time.Now().UTC(),
				JourneyID: params.version.JourneyID,
			},
			WalkID:     params.walkID,
			Version:    params.version.Version,
			SubjectID:  params.subjectID,
			GoalNodeID: node.ID,
		}

		if err := e.bus.Publish(ctx, params.version.JourneyID, event); err != nil {
			e.logger.WarnContext(ctx, "Failed to publish goal event", "error", err)
		}
	}

	return nil
}

func (e *Engine) publishWalkCompleted(ctx context.Context, result WalkResult) {
	if e.bus == nil {
		return
	}

	event := events.WalkCompleted{
		BaseEvent: events.BaseEvent{
			ID:        uuid.New().String(),
			Type:      events.WalkCompletedEvent,
			Timestamp: time.Now().UTC(),
			JourneyID: result.JourneyID,
		},
		WalkID:    result.WalkID,
		Version:   result.Version,
		SubjectID: result.SubjectID,
		EndNodeID: result.EndNodeID,
		Steps:     result.Steps,
	}

	if err := e.bus.Publish(ctx, result.JourneyID, event); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish walk event", "error", err)
	}
}

func (e *Engine) publishWalkFailed(ctx context.Context, result WalkResult, nodeID string) {
	e.logger.ErrorContext(ctx, "Walk failed",
		"walk_id", result.WalkID, "journey_id", result.JourneyID,
		"node_id", nodeID, "error", result.Error)

	if e.bus == nil {
		return
	}

	event := events.WalkFailed{
		BaseEvent: events.BaseEvent{
			ID:        uuid.New().String(),
			Type:      events.WalkFailedEvent,
			Timestamp: time.Now().UTC(),
			JourneyID: result.JourneyID,
		},
		WalkID:    result.WalkID,
		Version:   result.Version,
		SubjectID: result.SubjectID,
		NodeID:    nodeID,
		Error:     result.Error,
	}

	if err := e.bus.Publish(ctx, result.JourneyID, event); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish walk event", "error", err)
	}
}

// idempotencyKey identifies one dispatch attempt position. Senders that see
// the same key twice must deliver once.
func idempotencyKey(journeyID string, version int, nodeID, subjectID, walkID string) string {
	return fmt.Sprintf("%s:%d:%s:%s:%s", journeyID, version, nodeID, subjectID, walkID)
}

// appendContextEntry grows a list-valued context key. The []any shape
// survives the JSON round-trip through task storage.
func appendContextEntry(walkContext map[string]any, key string, entry any) {
	list, _ := walkContext[key].([]any)
	walkContext[key] = append(list, entry)
}

func targetOf(edge *models.Edge) string {
	if edge == nil {
		return ""
	}

	return edge.Target
}
