package graphview_test

import (
	"fmt"
	"math"
	"testing"

	"github.com/dukex/nodeflow/pkg/graphview"
	"github.com/dukex/nodeflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequentialIDs() func() string {
	n := 0

	return func() string {
		n++

		return fmt.Sprintf("gen-%d", n)
	}
}

func TestFromSubmission_FillsDefaults(t *testing.T) {
	t.Parallel()

	submission := models.GraphSubmission{
		Version: 1,
		Nodes: []models.SubmittedNode{
			{ID: "a", Type: models.NodeTypeManualTrigger},
			{Type: models.NodeTypeHTTPRequest, Name: "Call", Data: map[string]any{"method": "GET"}},
		},
		Edges: []models.SubmittedEdge{
			{Source: "a", Target: "gen-1"},
		},
	}

	nodes, connections, err := graphview.FromSubmission("wf-1", submission, sequentialIDs())
	require.NoError(t, err)

	require.Len(t, nodes, 2)
	assert.Equal(t, "a", nodes[0].ID)
	assert.Equal(t, "MANUAL_TRIGGER", nodes[0].Name, "name defaults to the type")
	assert.Equal(t, "wf-1", nodes[0].WorkflowID)
	assert.NotNil(t, nodes[0].Data)
	assert.Equal(t, "gen-1", nodes[1].ID)
	assert.Equal(t, "Call", nodes[1].Name)

	require.Len(t, connections, 1)
	assert.Equal(t, "gen-2", connections[0].ID)
	assert.Equal(t, models.DefaultHandle, connections[0].FromOutput)
	assert.Equal(t, models.DefaultHandle, connections[0].ToInput)
	assert.Equal(t, "wf-1", connections[0].WorkflowID)
}

func TestFromSubmission_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		submission models.GraphSubmission
		wantMsg    string
	}{
		{
			name: "duplicate node id",
			submission: models.GraphSubmission{Nodes: []models.SubmittedNode{
				{ID: "a", Type: models.NodeTypeInitial},
				{ID: "a", Type: models.NodeTypeInitial},
			}},
			wantMsg: "duplicate node id a",
		},
		{
			name: "missing type",
			submission: models.GraphSubmission{Nodes: []models.SubmittedNode{
				{ID: "a"},
			}},
			wantMsg: "has no type",
		},
		{
			name: "non-finite position",
			submission: models.GraphSubmission{Nodes: []models.SubmittedNode{
				{ID: "a", Type: models.NodeTypeInitial, Position: models.Position{X: math.Inf(1)}},
			}},
			wantMsg: "non-finite position",
		},
		{
			name: "edge to unknown node",
			submission: models.GraphSubmission{
				Nodes: []models.SubmittedNode{{ID: "a", Type: models.NodeTypeInitial}},
				Edges: []models.SubmittedEdge{{ID: "e", Source: "a", Target: "other-workflow-node"}},
			},
			wantMsg: "target \"other-workflow-node\"",
		},
		{
			name: "edge from unknown node",
			submission: models.GraphSubmission{
				Nodes: []models.SubmittedNode{{ID: "a", Type: models.NodeTypeInitial}},
				Edges: []models.SubmittedEdge{{ID: "e", Source: "ghost", Target: "a"}},
			},
			wantMsg: "source \"ghost\"",
		},
		{
			name: "duplicate edge id",
			submission: models.GraphSubmission{
				Nodes: []models.SubmittedNode{{ID: "a", Type: models.NodeTypeInitial}},
				Edges: []models.SubmittedEdge{
					{ID: "e", Source: "a", Target: "a"},
					{ID: "e", Source: "a", Target: "a"},
				},
			},
			wantMsg: "duplicate edge id e",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, _, err := graphview.FromSubmission("wf-1", tt.submission, sequentialIDs())
			require.Error(t, err)
			require.ErrorIs(t, err, graphview.ErrInvalidGraph)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestReconcile(t *testing.T) {
	t.Parallel()

	stored := &models.WorkflowGraph{
		Workflow: &models.Workflow{ID: "wf-1"},
		Nodes: []*models.Node{
			{ID: "keep", Type: models.NodeTypeInitial, Name: "INITIAL", Data: nil},
			{ID: "move", Type: models.NodeTypeManualTrigger, Name: "Start", Position: models.Position{X: 1, Y: 1}},
			{ID: "drop", Type: models.NodeTypeManualTrigger, Name: "Old"},
		},
		Connections: []*models.Connection{
			{ID: "c-keep", FromNodeID: "keep", ToNodeID: "move", FromOutput: "main", ToInput: "main"},
			{ID: "c-rewire", FromNodeID: "keep", ToNodeID: "drop", FromOutput: "main", ToInput: "main"},
			{ID: "c-drop", FromNodeID: "drop", ToNodeID: "move", FromOutput: "main", ToInput: "main"},
		},
	}

	nodes := []*models.Node{
		{ID: "keep", Type: models.NodeTypeInitial, Name: "INITIAL", Data: map[string]any{}},
		{ID: "move", Type: models.NodeTypeManualTrigger, Name: "Start", Position: models.Position{X: 5, Y: 1}},
		{ID: "new", Type: models.NodeTypeHTTPRequest, Name: "Call"},
	}

	connections := []*models.Connection{
		{ID: "c-keep", FromNodeID: "keep", ToNodeID: "move", FromOutput: "main", ToInput: "main"},
		{ID: "c-rewire", FromNodeID: "keep", ToNodeID: "new", FromOutput: "main", ToInput: "main"},
		{ID: "c-new", FromNodeID: "move", ToNodeID: "new", FromOutput: "main", ToInput: "main"},
	}

	plan := graphview.Reconcile("wf-1", stored, nodes, connections)

	assert.Equal(t, "wf-1", plan.WorkflowID)
	assert.False(t, plan.IsEmpty())

	require.Len(t, plan.InsertNodes, 1)
	assert.Equal(t, "new", plan.InsertNodes[0].ID)
	require.Len(t, plan.UpdateNodes, 1)
	assert.Equal(t, "move", plan.UpdateNodes[0].ID)
	assert.Equal(t, []string{"drop"}, plan.DeleteNodeIDs)

	require.Len(t, plan.InsertConnections, 1)
	assert.Equal(t, "c-new", plan.InsertConnections[0].ID)
	require.Len(t, plan.UpdateConnections, 1)
	assert.Equal(t, "c-rewire", plan.UpdateConnections[0].ID)
	assert.Equal(t, []string{"c-drop"}, plan.DeleteConnectionIDs)
}

func TestReconcile_UnchangedIsEmpty(t *testing.T) {
	t.Parallel()

	stored := &models.WorkflowGraph{
		Workflow: &models.Workflow{ID: "wf-1"},
		Nodes: []*models.Node{
			{ID: "a", Type: models.NodeTypeHTTPRequest, Name: "Call", Data: map[string]any{"nested": map[string]any{"k": 1.0}}},
		},
		Connections: []*models.Connection{
			{ID: "c", FromNodeID: "a", ToNodeID: "a", FromOutput: "main", ToInput: "main"},
		},
	}

	nodes := []*models.Node{
		{ID: "a", Type: models.NodeTypeHTTPRequest, Name: "Call", Data: map[string]any{"nested": map[string]any{"k": 1.0}}},
	}
	connections := []*models.Connection{
		{ID: "c", FromNodeID: "a", ToNodeID: "a", FromOutput: "main", ToInput: "main"},
	}

	plan := graphview.Reconcile("wf-1", stored, nodes, connections)
	assert.True(t, plan.IsEmpty())
}

func TestReconcile_ClearAll(t *testing.T) {
	t.Parallel()

	stored := &models.WorkflowGraph{
		Workflow: &models.Workflow{ID: "wf-1"},
		Nodes:    []*models.Node{{ID: "a", Type: models.NodeTypeInitial}},
		Connections: []*models.Connection{
			{ID: "c", FromNodeID: "a", ToNodeID: "a"},
		},
	}

	plan := graphview.Reconcile("wf-1", stored, nil, nil)

	assert.Equal(t, []string{"a"}, plan.DeleteNodeIDs)
	assert.Equal(t, []string{"c"}, plan.DeleteConnectionIDs)
	assert.Empty(t, plan.InsertNodes)
}

func TestPlan_ResultKeepsStorageOrder(t *testing.T) {
	t.Parallel()

	stored := &models.WorkflowGraph{
		Workflow: &models.Workflow{ID: "wf-1"},
		Nodes: []*models.Node{
			{ID: "a", Type: models.NodeTypeInitial, Name: "A"},
			{ID: "b", Type: models.NodeTypeManualTrigger, Name: "B"},
			{ID: "c", Type: models.NodeTypeManualTrigger, Name: "C"},
		},
		Connections: []*models.Connection{
			{ID: "ab", FromNodeID: "a", ToNodeID: "b", FromOutput: "main", ToInput: "main"},
		},
	}

	nodes := []*models.Node{
		{ID: "new", Type: models.NodeTypeManualTrigger, Name: "New"},
		{ID: "c", Type: models.NodeTypeManualTrigger, Name: "C renamed"},
		{ID: "a", Type: models.NodeTypeInitial, Name: "A"},
	}
	connections := []*models.Connection{
		{ID: "ca", FromNodeID: "c", ToNodeID: "a", FromOutput: "main", ToInput: "main"},
		{ID: "ab", FromNodeID: "a", ToNodeID: "new", FromOutput: "main", ToInput: "main"},
	}

	plan := graphview.Reconcile("wf-1", stored, nodes, connections)
	gotNodes, gotConnections := plan.Result(stored)

	ids := make([]string, 0, len(gotNodes))
	for _, node := range gotNodes {
		ids = append(ids, node.ID)
	}

	assert.Equal(t, []string{"a", "c", "new"}, ids)
	assert.Equal(t, "C renamed", gotNodes[1].Name)

	require.Len(t, gotConnections, 2)
	assert.Equal(t, "ab", gotConnections[0].ID)
	assert.Equal(t, "new", gotConnections[0].ToNodeID)
	assert.Equal(t, "ca", gotConnections[1].ID)
}
