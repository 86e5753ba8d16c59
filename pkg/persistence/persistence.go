// Package persistence provides the data storage abstraction layer for workflow graphs.
package persistence

import (
	"context"

	"github.com/dukex/nodeflow/pkg/graphview"
	"github.com/dukex/nodeflow/pkg/models"
)

type Persistence interface {
	WorkflowRepository() WorkflowRepository
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}

// WorkflowRepository stores workflows together with their nodes and connections.
type WorkflowRepository interface {
	// Create stores a workflow and its initial nodes in one transaction.
	Create(ctx context.Context, workflow *models.Workflow, nodes []*models.Node) error

	// GetByID returns the workflow or ErrWorkflowNotFound.
	GetByID(ctx context.Context, id string) (*models.Workflow, error)

	// GetGraph returns the workflow with its nodes and connections in storage order.
	GetGraph(ctx context.Context, id string) (*models.WorkflowGraph, error)

	// Rename changes the workflow name, bumps its version and updated_at.
	Rename(ctx context.Context, id, name string) (*models.Workflow, error)

	// Delete removes the workflow and cascades to its nodes and connections.
	Delete(ctx context.Context, id string) (*models.Workflow, error)

	// ApplyPlan applies a reconciliation plan if the stored version still
	// equals expectedVersion, otherwise it returns ErrVersionConflict.
	ApplyPlan(ctx context.Context, plan graphview.Plan, expectedVersion int64) (*models.Workflow, error)

	// ListWorkflows returns one page of an owner's workflows together with the
	// total count of matching rows, both read from the same snapshot.
	ListWorkflows(ctx context.Context, opts ListWorkflowsOptions) (*WorkflowListResult, error)
}

// ListWorkflowsOptions selects a page of workflows.
type ListWorkflowsOptions struct {
	OwnerID string
	Search  string
	Limit   int
	Offset  int
}

// WorkflowListResult holds a page of workflows and the total matching count.
type WorkflowListResult struct {
	Workflows  []*models.Workflow
	TotalCount int64
}
