// Package models defines the core domain models for workflow graphs
package models

import "time"

// Workflow represents an owned, named container for a node graph.
type Workflow struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"       validate:"required,min=1"`
	OwnerID   string    `json:"owner_id"   validate:"required"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OwnedBy reports whether principal owns the workflow.
func (w *Workflow) OwnedBy(principal string) bool {
	return w != nil && principal != "" && w.OwnerID == principal
}

// WorkflowGraph is a workflow together with its stored nodes and connections,
// in storage order.
type WorkflowGraph struct {
	Workflow    *Workflow
	Nodes       []*Node
	Connections []*Connection
}
