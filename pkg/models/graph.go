package models

// GraphView is the editor's projection of a workflow: derived from stored rows,
// never persisted.
type GraphView struct {
	ID      string     `json:"id"      msgpack:"id"`
	Name    string     `json:"name"    msgpack:"name"`
	Version int64      `json:"version" msgpack:"version"`
	Nodes   []ViewNode `json:"nodes"   msgpack:"nodes"`
	Edges   []ViewEdge `json:"edges"   msgpack:"edges"`
}

// ViewNode is a node as the editor consumes it.
type ViewNode struct {
	ID       string         `json:"id"       msgpack:"id"`
	Type     NodeType       `json:"type"     msgpack:"type"`
	Position Position       `json:"position" msgpack:"position"`
	Data     map[string]any `json:"data"     msgpack:"data"`
}

// ViewEdge is a connection as the editor consumes it.
type ViewEdge struct {
	ID           string `json:"id"           msgpack:"id"`
	Source       string `json:"source"       msgpack:"source"`
	Target       string `json:"target"       msgpack:"target"`
	SourceHandle string `json:"sourceHandle" msgpack:"sourceHandle"`
	TargetHandle string `json:"targetHandle" msgpack:"targetHandle"`
}

// SubmittedNode is a node sent back by the editor when saving a graph.
type SubmittedNode struct {
	ID       string         `json:"id"       validate:"max=255"`
	Type     NodeType       `json:"type"     validate:"required,max=255"`
	Position Position       `json:"position"`
	Name     string         `json:"name"     validate:"max=255"`
	Data     map[string]any `json:"data"`
}

// SubmittedEdge is an edge sent back by the editor when saving a graph.
type SubmittedEdge struct {
	ID           string `json:"id"           validate:"max=255"`
	Source       string `json:"source"       validate:"required,max=255"`
	Target       string `json:"target"       validate:"required,max=255"`
	SourceHandle string `json:"sourceHandle" validate:"max=255"`
	TargetHandle string `json:"targetHandle" validate:"max=255"`
}

// GraphSubmission is the full node/edge set the editor wants persisted.
// Version is the workflow version the editor loaded.
type GraphSubmission struct {
	Version int64           `json:"version" validate:"min=1"`
	Nodes   []SubmittedNode `json:"nodes"   validate:"dive"`
	Edges   []SubmittedEdge `json:"edges"   validate:"dive"`
}
