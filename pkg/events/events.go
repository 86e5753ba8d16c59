// Package events defines event types and structures for workflow lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic carries every workflow lifecycle event.
const Topic = "nodeflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	WorkflowCreatedEvent    EventType = "workflow.created"
	WorkflowRenamedEvent    EventType = "workflow.renamed"
	WorkflowRemovedEvent    EventType = "workflow.removed"
	WorkflowGraphSavedEvent EventType = "workflow.graph_saved"
)

type BaseEvent struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	WorkflowID  string    `json:"workflow_id"`
	PrincipalID string    `json:"principal_id"`
}

func NewBaseEvent(eventType EventType, workflowID, principal string) BaseEvent {
	return BaseEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		WorkflowID:  workflowID,
		PrincipalID: principal,
	}
}

// WorkflowCreated is published after a workflow and its initial node are stored.
type WorkflowCreated struct {
	BaseEvent

	Name string `json:"name"`
}

func (e WorkflowCreated) GetType() EventType {
	return WorkflowCreatedEvent
}

func NewWorkflowCreated(workflowID, principal, name string) WorkflowCreated {
	return WorkflowCreated{
		BaseEvent: NewBaseEvent(WorkflowCreatedEvent, workflowID, principal),
		Name:      name,
	}
}

type WorkflowRenamed struct {
	BaseEvent

	Name    string `json:"name"`
	Version int64  `json:"version"`
}

func (e WorkflowRenamed) GetType() EventType {
	return WorkflowRenamedEvent
}

func NewWorkflowRenamed(workflowID, principal, name string, version int64) WorkflowRenamed {
	return WorkflowRenamed{
		BaseEvent: NewBaseEvent(WorkflowRenamedEvent, workflowID, principal),
		Name:      name,
		Version:   version,
	}
}

type WorkflowRemoved struct {
	BaseEvent
}

func (e WorkflowRemoved) GetType() EventType {
	return WorkflowRemovedEvent
}

func NewWorkflowRemoved(workflowID, principal string) WorkflowRemoved {
	return WorkflowRemoved{
		BaseEvent: NewBaseEvent(WorkflowRemovedEvent, workflowID, principal),
	}
}

// WorkflowGraphSaved is published after a graph save commits.
type WorkflowGraphSaved struct {
	BaseEvent

	Version         int64 `json:"version"`
	NodeCount       int   `json:"node_count"`
	ConnectionCount int   `json:"connection_count"`
}

func (e WorkflowGraphSaved) GetType() EventType {
	return WorkflowGraphSavedEvent
}

func NewWorkflowGraphSaved(workflowID, principal string, version int64, nodeCount, connectionCount int) WorkflowGraphSaved {
	return WorkflowGraphSaved{
		BaseEvent:       NewBaseEvent(WorkflowGraphSavedEvent, workflowID, principal),
		Version:         version,
		NodeCount:       nodeCount,
		ConnectionCount: connectionCount,
	}
}
