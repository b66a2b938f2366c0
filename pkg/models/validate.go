package models

import "fmt"

// ValidationError is a structural graph problem, surfaced to the author at
// save or publish time. It names the offending node or edge.
type ValidationError struct {
	NodeID  string
	EdgeID  string
	Message string
}

func (e *ValidationError) Error() string {
	switch {
	case e.NodeID != "":
		return fmt.Sprintf("invalid graph: node %s: %s", e.NodeID, e.Message)
	case e.EdgeID != "":
		return fmt.Sprintf("invalid graph: edge %s: %s", e.EdgeID, e.Message)
	default:
		return "invalid graph: " + e.Message
	}
}

func nodeInvalid(nodeID, message string) *ValidationError {
	return &ValidationError{NodeID: nodeID, Message: message}
}

func edgeInvalid(edgeID, message string) *ValidationError {
	return &ValidationError{EdgeID: edgeID, Message: message}
}

// CheckReferences verifies node-id uniqueness and edge referential
// integrity. This is the minimal bar for saving a draft; authors may save
// otherwise incomplete graphs.
func (g *Graph) CheckReferences() error {
	seen := make(map[string]bool, len(g.Nodes))

	for _, node := range g.Nodes {
		if node.ID == "" {
			return nodeInvalid(node.ID, "node has empty id")
		}

		if seen[node.ID] {
			return nodeInvalid(node.ID, "duplicate node id")
		}

		seen[node.ID] = true
	}

	for _, edge := range g.Edges {
		if !seen[edge.Source] {
			return edgeInvalid(edge.ID, fmt.Sprintf("source %s does not exist", edge.Source))
		}

		if !seen[edge.Target] {
			return edgeInvalid(edge.ID, fmt.Sprintf("target %s does not exist", edge.Target))
		}
	}

	return nil
}

// Validate runs the full structural checks required before a version can be
// published. It is a pure function with no side effects:
//
//   - exactly one trigger node, the unique entry point
//   - every edge endpoint references an existing node
//   - condition nodes have 1-2 outgoing edges labeled "true"/"false" with
//     no duplicate labels
//   - trigger, action, wait and goal nodes have at most one outgoing edge
//   - no cycle reachable from the trigger whose nodes are all wait-free
//     (such a cycle would spin forever within one evaluation)
func (g *Graph) Validate() error {
	if err := g.CheckReferences(); err != nil {
		return err
	}

	var trigger *Node

	for _, node := range g.Nodes {
		switch node.Type {
		case NodeTypeTrigger:
			if trigger != nil {
				return nodeInvalid(node.ID, "graph must have exactly one trigger node")
			}

			trigger = node
		case NodeTypeCondition, NodeTypeAction, NodeTypeWait, NodeTypeGoal:
		default:
			return nodeInvalid(node.ID, fmt.Sprintf("unknown node type %q", node.Type))
		}
	}

	if trigger == nil {
		return &ValidationError{Message: "graph must have exactly one trigger node"}
	}

	for _, node := range g.Nodes {
		if err := g.validateOutgoing(node); err != nil {
			return err
		}
	}

	if err := g.checkWaitFreeCycles(trigger); err != nil {
		return err
	}

	return nil
}

func (g *Graph) validateOutgoing(node *Node) error {
	outgoing := g.OutgoingEdges(node.ID)

	switch node.Type {
	case NodeTypeCondition:
		if len(outgoing) == 0 || len(outgoing) > 2 {
			return nodeInvalid(node.ID, fmt.Sprintf("condition node must have 1-2 outgoing edges, has %d", len(outgoing)))
		}

		labels := make(map[string]bool, 2)

		for _, edge := range outgoing {
			if edge.Label != EdgeLabelTrue && edge.Label != EdgeLabelFalse {
				return edgeInvalid(edge.ID, fmt.Sprintf("condition edge label must be %q or %q, got %q", EdgeLabelTrue, EdgeLabelFalse, edge.Label))
			}

			if labels[edge.Label] {
				return nodeInvalid(node.ID, fmt.Sprintf("condition node has duplicate %q edges", edge.Label))
			}

			labels[edge.Label] = true
		}
	case NodeTypeWait:
		if len(outgoing) > 1 {
			return nodeInvalid(node.ID, fmt.Sprintf("wait node must have at most one outgoing edge, has %d", len(outgoing)))
		}

		if _, err := node.WaitData(); err != nil {
			return nodeInvalid(node.ID, err.Error())
		}
	case NodeTypeAction:
		if len(outgoing) > 1 {
			return nodeInvalid(node.ID, fmt.Sprintf("action node must have at most one outgoing edge, has %d", len(outgoing)))
		}
	case NodeTypeTrigger, NodeTypeGoal:
		if len(outgoing) > 1 {
			return nodeInvalid(node.ID, fmt.Sprintf("%s node must have at most one outgoing edge, has %d", node.Type, len(outgoing)))
		}
	}

	return nil
}

// checkWaitFreeCycles walks everything reachable from the trigger without
// passing through wait nodes. Wait nodes suspend the walk, so any cycle
// found here would spin forever inside a single evaluation.
func (g *Graph) checkWaitFreeCycles(trigger *Node) error {
	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)

	state := make(map[string]int, len(g.Nodes))

	var visit func(nodeID string) error

	visit = func(nodeID string) error {
		state[nodeID] = inStack

		for _, edge := range g.OutgoingEdges(nodeID) {
			target := g.NodeByID(edge.Target)
			if target == nil {
				continue
			}

			// A wait node breaks the synchronous chain.
			if target.Type == NodeTypeWait {
				continue
			}

			switch state[target.ID] {
			case inStack:
				return nodeInvalid(target.ID, "cycle without an intervening wait node")
			case unvisited:
				if err := visit(target.ID); err != nil {
					return err
				}
			}
		}

		state[nodeID] = done

		return nil
	}

	// Wait successors are independent resume points; each begins its own
	// synchronous chain.
	if err := visit(trigger.ID); err != nil {
		return err
	}

	for _, node := range g.Nodes {
		if node.Type != NodeTypeWait {
			continue
		}

		if edge := g.OutgoingEdge(node.ID); edge != nil && state[edge.Target] == unvisited {
			if err := visit(edge.Target); err != nil {
				return err
			}
		}
	}

	return nil
}
