package models

import (
	"fmt"
	"strconv"
)

// NodeType is the closed set of node variants a graph may contain.
type NodeType string

const (
	NodeTypeTrigger   NodeType = "trigger"
	NodeTypeCondition NodeType = "condition"
	NodeTypeAction    NodeType = "action"
	NodeTypeWait      NodeType = "wait"
	NodeTypeGoal      NodeType = "goal"
)

// Trigger variants.
const (
	TriggerKindEvent    = "event"
	TriggerKindBehavior = "behavior"
)

// Channel identifies a delivery mechanism for action nodes.
type Channel string

const (
	ChannelEmail      Channel = "email"
	ChannelSMS        Channel = "sms"
	ChannelPush       Channel = "push"
	ChannelWebhook    Channel = "webhook"
	ChannelEngagement Channel = "engagement"
)

// Edge labels used by condition nodes.
const (
	EdgeLabelTrue  = "true"
	EdgeLabelFalse = "false"
)

// Node is one vertex of a journey graph. Data carries the type-specific
// configuration; Position is opaque editor state passed through unchanged.
type Node struct {
	ID       string         `json:"id"   validate:"required"`
	Type     NodeType       `json:"type" validate:"required"`
	Data     map[string]any `json:"data"`
	Position map[string]any `json:"position,omitempty"`
}

// Edge connects two nodes. Label is only meaningful on condition outputs,
// where it carries "true" or "false".
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
	Label  string `json:"label,omitempty"`
}

// Graph is the node/edge structure defining one workflow.
type Graph struct {
	Nodes []*Node `json:"nodes"`
	Edges []*Edge `json:"edges"`
}

// NodeByID returns the node with the given id, or nil.
func (g *Graph) NodeByID(id string) *Node {
	for _, node := range g.Nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}

// OutgoingEdges returns all edges whose source is the given node.
func (g *Graph) OutgoingEdges(nodeID string) []*Edge {
	edges := make([]*Edge, 0, 2)

	for _, edge := range g.Edges {
		if edge.Source == nodeID {
			edges = append(edges, edge)
		}
	}

	return edges
}

// OutgoingEdge returns the single outgoing edge of a node, or nil when the
// node is terminal. Condition nodes should use LabeledEdge instead.
func (g *Graph) OutgoingEdge(nodeID string) *Edge {
	for _, edge := range g.Edges {
		if edge.Source == nodeID {
			return edge
		}
	}

	return nil
}

// LabeledEdge returns the outgoing edge of a condition node with the given
// label, or nil when that branch has no edge.
func (g *Graph) LabeledEdge(nodeID, label string) *Edge {
	for _, edge := range g.Edges {
		if edge.Source == nodeID && edge.Label == label {
			return edge
		}
	}

	return nil
}

// TriggerNode returns the graph's trigger node, or nil. Validation
// guarantees exactly one trigger on published graphs.
func (g *Graph) TriggerNode() *Node {
	for _, node := range g.Nodes {
		if node.Type == NodeTypeTrigger {
			return node
		}
	}

	return nil
}

// TriggerData is the configuration of a trigger node.
type TriggerData struct {
	Kind      string // "event" or "behavior"
	EventType string // event kind: the event_type to match
	Field     string // behavior kind: condition over the subject profile
	Operator  Operator
	Value     any
}

// ConditionData is the configuration of a condition node.
type ConditionData struct {
	Field    string
	Operator Operator
	Value    any
}

// ActionData is the configuration of an action node.
type ActionData struct {
	Channel Channel
	Payload map[string]any
}

// WaitData is the configuration of a wait node.
type WaitData struct {
	DelaySeconds int64
}

// GoalData is the configuration of a goal node.
type GoalData struct {
	EventType string
}

// TriggerData decodes the node's Data map as trigger configuration.
func (n *Node) TriggerData() (TriggerData, error) {
	if n.Type != NodeTypeTrigger {
		return TriggerData{}, fmt.Errorf("node %s is %s, not trigger", n.ID, n.Type)
	}

	kind, _ := n.Data["kind"].(string)
	if kind == "" {
		kind = TriggerKindEvent
	}

	data := TriggerData{
		Kind:      kind,
		EventType: stringField(n.Data, "event_type"),
		Field:     stringField(n.Data, "field"),
		Operator:  Operator(stringField(n.Data, "operator")),
		Value:     n.Data["value"],
	}

	return data, nil
}

// ConditionData decodes the node's Data map as condition configuration.
func (n *Node) ConditionData() (ConditionData, error) {
	if n.Type != NodeTypeCondition {
		return ConditionData{}, fmt.Errorf("node %s is %s, not condition", n.ID, n.Type)
	}

	data := ConditionData{
		Field:    stringField(n.Data, "field"),
		Operator: Operator(stringField(n.Data, "operator")),
		Value:    n.Data["value"],
	}

	return data, nil
}

// ActionData decodes the node's Data map as action configuration.
func (n *Node) ActionData() (ActionData, error) {
	if n.Type != NodeTypeAction {
		return ActionData{}, fmt.Errorf("node %s is %s, not action", n.ID, n.Type)
	}

	payload, _ := n.Data["payload"].(map[string]any)

	data := ActionData{
		Channel: Channel(stringField(n.Data, "channel")),
		Payload: payload,
	}

	return data, nil
}

// WaitData decodes the node's Data map as wait configuration. Delay values
// arrive as JSON numbers or strings depending on the editor; both are
// accepted. Negative delays are rejected.
func (n *Node) WaitData() (WaitData, error) {
	if n.Type != NodeTypeWait {
		return WaitData{}, fmt.Errorf("node %s is %s, not wait", n.ID, n.Type)
	}

	var delay int64

	switch v := n.Data["delay_seconds"].(type) {
	case float64:
		delay = int64(v)
	case int:
		delay = int64(v)
	case int64:
		delay = v
	case string:
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return WaitData{}, fmt.Errorf("node %s: invalid delay_seconds %q", n.ID, v)
		}

		delay = parsed
	case nil:
		delay = 0
	default:
		return WaitData{}, fmt.Errorf("node %s: invalid delay_seconds type %T", n.ID, v)
	}

	if delay < 0 {
		return WaitData{}, fmt.Errorf("node %s: delay_seconds must be non-negative", n.ID)
	}

	return WaitData{DelaySeconds: delay}, nil
}

// GoalData decodes the node's Data map as goal configuration.
func (n *Node) GoalData() (GoalData, error) {
	if n.Type != NodeTypeGoal {
		return GoalData{}, fmt.Errorf("node %s is %s, not goal", n.ID, n.Type)
	}

	return GoalData{EventType: stringField(n.Data, "event_type")}, nil
}

func stringField(data map[string]any, key string) string {
	value, _ := data[key].(string)

	return value
}
