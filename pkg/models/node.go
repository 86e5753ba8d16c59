// Package models defines core node models for workflow graphs
package models

import (
	"math"
	"time"
)

// NodeType tags the kind of a node. The set is closed at runtime but new kinds
// can be registered at startup.
type NodeType string

// Built-in node kinds.
const (
	NodeTypeInitial         NodeType = "INITIAL"
	NodeTypeManualTrigger   NodeType = "MANUAL_TRIGGER"
	NodeTypeHTTPRequest     NodeType = "HTTP_REQUEST"
	NodeTypeScheduleTrigger NodeType = "SCHEDULE_TRIGGER"
)

// DefaultHandle is used for connection endpoints submitted without a handle label.
const DefaultHandle = "main"

// Position is a point on the editor canvas. It has no bounds.
type Position struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

// IsFinite reports whether both coordinates are finite numbers.
func (p Position) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// Node is a typed, positioned vertex of a workflow graph.
type Node struct {
	ID         string         `json:"id"          validate:"required"`
	WorkflowID string         `json:"workflow_id"`
	Type       NodeType       `json:"type"        validate:"required"`
	Position   Position       `json:"position"`
	Name       string         `json:"name"`
	Data       map[string]any `json:"data"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Connection links a source node's output handle to a target node's input handle.
type Connection struct {
	ID         string    `json:"id"           validate:"required"`
	WorkflowID string    `json:"workflow_id"`
	FromNodeID string    `json:"from_node_id" validate:"required"`
	ToNodeID   string    `json:"to_node_id"   validate:"required"`
	FromOutput string    `json:"from_output"`
	ToInput    string    `json:"to_input"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewInitialNode returns the node every new workflow starts with.
func NewInitialNode(id, workflowID string) *Node {
	return &Node{
		ID:         id,
		WorkflowID: workflowID,
		Type:       NodeTypeInitial,
		Position:   Position{X: 0, Y: 0},
		Name:       string(NodeTypeInitial),
		Data:       map[string]any{},
	}
}
