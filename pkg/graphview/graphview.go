// Package graphview translates between stored workflow rows and the graph view
// consumed by the editor.
package graphview

import (
	"github.com/dukex/nodeflow/pkg/models"
)

// Build projects a workflow and its rows into a GraphView. Rows keep their
// storage order; nothing is filtered or deduplicated. The view owns copies of
// every data map, so callers may mutate it freely.
func Build(workflow *models.Workflow, nodes []*models.Node, connections []*models.Connection) models.GraphView {
	view := models.GraphView{
		Nodes: make([]models.ViewNode, 0, len(nodes)),
		Edges: make([]models.ViewEdge, 0, len(connections)),
	}

	if workflow != nil {
		view.ID = workflow.ID
		view.Name = workflow.Name
		view.Version = workflow.Version
	}

	for _, node := range nodes {
		view.Nodes = append(view.Nodes, toViewNode(node))
	}

	for _, connection := range connections {
		view.Edges = append(view.Edges, toViewEdge(connection))
	}

	return view
}

// FromGraph is Build over a loaded WorkflowGraph.
func FromGraph(graph *models.WorkflowGraph) models.GraphView {
	return Build(graph.Workflow, graph.Nodes, graph.Connections)
}

func toViewNode(node *models.Node) models.ViewNode {
	return models.ViewNode{
		ID:       node.ID,
		Type:     node.Type,
		Position: node.Position,
		Data:     copyData(node.Data),
	}
}

func toViewEdge(connection *models.Connection) models.ViewEdge {
	return models.ViewEdge{
		ID:           connection.ID,
		Source:       connection.FromNodeID,
		Target:       connection.ToNodeID,
		SourceHandle: connection.FromOutput,
		TargetHandle: connection.ToInput,
	}
}

// copyData deep copies nested maps and slices; nil becomes an empty map.
func copyData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = copyValue(v)
	}

	return out
}

func copyValue(v any) any {
	switch value := v.(type) {
	case map[string]any:
		return copyData(value)
	case []any:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = copyValue(item)
		}

		return out
	default:
		return value
	}
}
