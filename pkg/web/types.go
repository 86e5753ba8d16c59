package web

import (
	"time"

	"github.com/dukex/nodeflow/pkg/models"
)

// UpdateWorkflowRequest represents the request body for renaming a workflow.
type UpdateWorkflowRequest struct {
	Name string `json:"name" validate:"required"`
}

// SaveGraphRequest represents the request body for saving an edited graph.
type SaveGraphRequest = models.GraphSubmission

// HealthResponse reports the state of each dependency.
type HealthResponse struct {
	Status    string            `json:"status"`
	Message   string            `json:"message"`
	Checkers  map[string]string `json:"checkers"`
	Timestamp time.Time         `json:"timestamp"`
}
