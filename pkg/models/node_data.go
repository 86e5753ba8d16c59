package models

import (
	"encoding/json"
	"fmt"
	"maps"
)

// NodeData is the typed form of a node's data payload. Each built-in kind has
// its own variant; registered extension kinds decode to ExtensionData.
type NodeData interface {
	Kind() NodeType
}

// InitialData is the payload of the placeholder node a workflow starts with.
type InitialData struct {
	Label string `json:"label,omitempty"`
}

// ManualTriggerData is the payload of a manually started trigger.
type ManualTriggerData struct{}

// HTTPRequestData is the payload of an outgoing HTTP request node.
type HTTPRequestData struct {
	Endpoint string `json:"endpoint,omitempty"`
	Method   string `json:"method,omitempty"`
	Body     string `json:"body,omitempty"`
}

// ScheduleTriggerData is the payload of a cron driven trigger.
type ScheduleTriggerData struct {
	Cron     string `json:"cron"`
	Timezone string `json:"timezone,omitempty"`
}

// ExtensionData carries the untouched payload of a registered extension kind.
type ExtensionData struct {
	Type   NodeType
	Values map[string]any
}

func (InitialData) Kind() NodeType         { return NodeTypeInitial }
func (ManualTriggerData) Kind() NodeType   { return NodeTypeManualTrigger }
func (HTTPRequestData) Kind() NodeType     { return NodeTypeHTTPRequest }
func (ScheduleTriggerData) Kind() NodeType { return NodeTypeScheduleTrigger }
func (d ExtensionData) Kind() NodeType     { return d.Type }

// DecodeNodeData converts a stored payload into its typed variant.
func DecodeNodeData(nodeType NodeType, data map[string]any) (NodeData, error) {
	switch nodeType {
	case NodeTypeInitial:
		return decodeInto[InitialData](data)
	case NodeTypeManualTrigger:
		return decodeInto[ManualTriggerData](data)
	case NodeTypeHTTPRequest:
		return decodeInto[HTTPRequestData](data)
	case NodeTypeScheduleTrigger:
		return decodeInto[ScheduleTriggerData](data)
	default:
		return ExtensionData{Type: nodeType, Values: maps.Clone(data)}, nil
	}
}

func decodeInto[T NodeData](data map[string]any) (NodeData, error) {
	var out T

	if len(data) == 0 {
		return out, nil
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal node data: %w", err)
	}

	err = json.Unmarshal(raw, &out)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s node data: %w", out.Kind(), err)
	}

	return out, nil
}
