package services

import (
	"context"
	"fmt"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/persistence"
)

// ownedWorkflow resolves a workflow the principal owns. Absent and foreign
// workflows are both reported as not found.
func (w *Workflow) ownedWorkflow(ctx context.Context, op, principal, id string) (*models.Workflow, error) {
	workflow, err := w.repository().GetByID(ctx, id)
	if err != nil {
		return nil, w.mapPersistenceError(op, err)
	}

	err = w.checkOwner(ctx, op, principal, workflow)
	if err != nil {
		return nil, err
	}

	return workflow, nil
}

// ownedGraph is ownedWorkflow for callers that also need the nodes and connections.
func (w *Workflow) ownedGraph(ctx context.Context, op, principal, id string) (*models.WorkflowGraph, error) {
	graph, err := w.repository().GetGraph(ctx, id)
	if err != nil {
		return nil, w.mapPersistenceError(op, err)
	}

	err = w.checkOwner(ctx, op, principal, graph.Workflow)
	if err != nil {
		return nil, err
	}

	return graph, nil
}

func (w *Workflow) checkOwner(ctx context.Context, op, principal string, workflow *models.Workflow) error {
	if workflow.OwnedBy(principal) {
		return nil
	}

	w.logger.DebugContext(ctx, "Workflow is not owned by principal",
		"op", op,
		"workflow_id", workflow.ID,
		"principal", principal,
	)

	return newNotFoundError(op)
}

func (w *Workflow) mapPersistenceError(op string, err error) error {
	switch {
	case persistence.IsWorkflowNotFound(err):
		return newNotFoundError(op)
	case persistence.IsVersionConflict(err):
		return &ServiceError{
			Op:      op,
			Code:    CodeVersionConflict,
			Message: "workflow was changed since it was loaded",
			Err:     ErrVersionConflict,
		}
	case persistence.IsDanglingConnection(err):
		return NewValidationError(op, CodeInvalidGraph, "edge endpoint is not a node of this workflow")
	default:
		return fmt.Errorf("%s failed: %w", op, err)
	}
}
