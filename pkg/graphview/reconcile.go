package graphview

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/dukex/nodeflow/pkg/models"
)

// ErrInvalidGraph is returned when a submitted graph is structurally unsound.
var ErrInvalidGraph = errors.New("invalid graph")

// Plan is the set of row changes that turns the stored graph into the
// submitted one.
type Plan struct {
	WorkflowID string

	InsertNodes   []*models.Node
	UpdateNodes   []*models.Node
	DeleteNodeIDs []string

	InsertConnections   []*models.Connection
	UpdateConnections   []*models.Connection
	DeleteConnectionIDs []string
}

// IsEmpty reports whether applying the plan would change nothing.
func (p *Plan) IsEmpty() bool {
	return len(p.InsertNodes) == 0 && len(p.UpdateNodes) == 0 && len(p.DeleteNodeIDs) == 0 &&
		len(p.InsertConnections) == 0 && len(p.UpdateConnections) == 0 && len(p.DeleteConnectionIDs) == 0
}

// FromSubmission turns an editor submission into rows for workflowID. Missing
// ids are filled by newID and missing handles default to models.DefaultHandle.
// Every edge must point at a node of the same submission.
func FromSubmission(workflowID string, submission models.GraphSubmission, newID func() string) ([]*models.Node, []*models.Connection, error) {
	nodes := make([]*models.Node, 0, len(submission.Nodes))
	nodeIDs := make(map[string]struct{}, len(submission.Nodes))

	for i, submitted := range submission.Nodes {
		if submitted.Type == "" {
			return nil, nil, fmt.Errorf("%w: node %d has no type", ErrInvalidGraph, i)
		}

		if !submitted.Position.IsFinite() {
			return nil, nil, fmt.Errorf("%w: node %d has a non-finite position", ErrInvalidGraph, i)
		}

		id := submitted.ID
		if id == "" {
			id = newID()
		}

		if _, dup := nodeIDs[id]; dup {
			return nil, nil, fmt.Errorf("%w: duplicate node id %s", ErrInvalidGraph, id)
		}

		nodeIDs[id] = struct{}{}

		name := submitted.Name
		if name == "" {
			name = string(submitted.Type)
		}

		nodes = append(nodes, &models.Node{
			ID:         id,
			WorkflowID: workflowID,
			Type:       submitted.Type,
			Position:   submitted.Position,
			Name:       name,
			Data:       copyData(submitted.Data),
		})
	}

	connections := make([]*models.Connection, 0, len(submission.Edges))
	edgeIDs := make(map[string]struct{}, len(submission.Edges))

	for i, edge := range submission.Edges {
		if _, ok := nodeIDs[edge.Source]; !ok {
			return nil, nil, fmt.Errorf("%w: edge %d source %q is not a node of this workflow", ErrInvalidGraph, i, edge.Source)
		}

		if _, ok := nodeIDs[edge.Target]; !ok {
			return nil, nil, fmt.Errorf("%w: edge %d target %q is not a node of this workflow", ErrInvalidGraph, i, edge.Target)
		}

		id := edge.ID
		if id == "" {
			id = newID()
		}

		if _, dup := edgeIDs[id]; dup {
			return nil, nil, fmt.Errorf("%w: duplicate edge id %s", ErrInvalidGraph, id)
		}

		edgeIDs[id] = struct{}{}

		connections = append(connections, &models.Connection{
			ID:         id,
			WorkflowID: workflowID,
			FromNodeID: edge.Source,
			ToNodeID:   edge.Target,
			FromOutput: handleOrDefault(edge.SourceHandle),
			ToInput:    handleOrDefault(edge.TargetHandle),
		})
	}

	return nodes, connections, nil
}

// Reconcile diffs the submitted rows against the stored ones. Unchanged rows
// appear nowhere in the plan.
func Reconcile(workflowID string, stored *models.WorkflowGraph, nodes []*models.Node, connections []*models.Connection) Plan {
	plan := Plan{WorkflowID: workflowID}

	storedNodes := make(map[string]*models.Node, len(stored.Nodes))
	for _, node := range stored.Nodes {
		storedNodes[node.ID] = node
	}

	submittedNodes := make(map[string]struct{}, len(nodes))

	for _, node := range nodes {
		submittedNodes[node.ID] = struct{}{}

		existing, ok := storedNodes[node.ID]

		switch {
		case !ok:
			plan.InsertNodes = append(plan.InsertNodes, node)
		case nodeChanged(existing, node):
			plan.UpdateNodes = append(plan.UpdateNodes, node)
		}
	}

	for _, node := range stored.Nodes {
		if _, ok := submittedNodes[node.ID]; !ok {
			plan.DeleteNodeIDs = append(plan.DeleteNodeIDs, node.ID)
		}
	}

	storedConnections := make(map[string]*models.Connection, len(stored.Connections))
	for _, connection := range stored.Connections {
		storedConnections[connection.ID] = connection
	}

	submittedConnections := make(map[string]struct{}, len(connections))

	for _, connection := range connections {
		submittedConnections[connection.ID] = struct{}{}

		existing, ok := storedConnections[connection.ID]

		switch {
		case !ok:
			plan.InsertConnections = append(plan.InsertConnections, connection)
		case connectionChanged(existing, connection):
			plan.UpdateConnections = append(plan.UpdateConnections, connection)
		}
	}

	for _, connection := range stored.Connections {
		if _, ok := submittedConnections[connection.ID]; !ok {
			plan.DeleteConnectionIDs = append(plan.DeleteConnectionIDs, connection.ID)
		}
	}

	return plan
}

// Result returns the rows a store holds once the plan is applied, in storage
// order: surviving stored rows keep their place and inserts follow in
// submission order.
func (p *Plan) Result(stored *models.WorkflowGraph) ([]*models.Node, []*models.Connection) {
	nodes := applyRows(stored.Nodes, p.UpdateNodes, p.InsertNodes, p.DeleteNodeIDs,
		func(n *models.Node) string { return n.ID })
	connections := applyRows(stored.Connections, p.UpdateConnections, p.InsertConnections, p.DeleteConnectionIDs,
		func(c *models.Connection) string { return c.ID })

	return nodes, connections
}

func applyRows[T any](stored, updates, inserts []T, deleteIDs []string, id func(T) string) []T {
	updated := make(map[string]T, len(updates))
	for _, row := range updates {
		updated[id(row)] = row
	}

	deleted := make(map[string]struct{}, len(deleteIDs))
	for _, rowID := range deleteIDs {
		deleted[rowID] = struct{}{}
	}

	rows := make([]T, 0, len(stored)+len(inserts))

	for _, row := range stored {
		if _, ok := deleted[id(row)]; ok {
			continue
		}

		if replacement, ok := updated[id(row)]; ok {
			row = replacement
		}

		rows = append(rows, row)
	}

	return append(rows, inserts...)
}

func nodeChanged(before, after *models.Node) bool {
	return before.Type != after.Type ||
		before.Name != after.Name ||
		before.Position != after.Position ||
		!reflect.DeepEqual(copyData(before.Data), copyData(after.Data))
}

func connectionChanged(before, after *models.Connection) bool {
	return before.FromNodeID != after.FromNodeID ||
		before.ToNodeID != after.ToNodeID ||
		before.FromOutput != after.FromOutput ||
		before.ToInput != after.ToInput
}

func handleOrDefault(handle string) string {
	if handle == "" {
		return models.DefaultHandle
	}

	return handle
}
