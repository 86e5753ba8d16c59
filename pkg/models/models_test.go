package models

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Workflow Model Tests

func TestWorkflow_Validation_MissingFields(t *testing.T) {
	testCases := []struct {
		name      string
		workflow  *Workflow
		fieldName string
	}{
		{
			name:      "missing name",
			workflow:  &Workflow{ID: "wf-1", OwnerID: "user-1"},
			fieldName: "Name",
		},
		{
			name:      "missing owner",
			workflow:  &Workflow{ID: "wf-1", Name: "brave-blue-otter"},
			fieldName: "OwnerID",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			validate := validator.New(validator.WithRequiredStructEnabled())
			err := validate.Struct(tc.workflow)
			require.Error(t, err)

			var validationErrors validator.ValidationErrors
			require.True(t, errors.As(err, &validationErrors))
			assert.Equal(t, tc.fieldName, validationErrors[0].Field())
		})
	}
}

func TestWorkflow_OwnedBy(t *testing.T) {
	workflow := &Workflow{ID: "wf-1", OwnerID: "user-1"}

	assert.True(t, workflow.OwnedBy("user-1"))
	assert.False(t, workflow.OwnedBy("user-2"))
	assert.False(t, workflow.OwnedBy(""))

	var missing *Workflow
	assert.False(t, missing.OwnedBy("user-1"))
}

// Node Model Tests

func TestNewInitialNode(t *testing.T) {
	node := NewInitialNode("n-1", "wf-1")

	assert.Equal(t, "n-1", node.ID)
	assert.Equal(t, "wf-1", node.WorkflowID)
	assert.Equal(t, NodeTypeInitial, node.Type)
	assert.Equal(t, "INITIAL", node.Name)
	assert.Equal(t, Position{}, node.Position)
	assert.NotNil(t, node.Data)
	assert.Empty(t, node.Data)
}

func TestPosition_IsFinite(t *testing.T) {
	assert.True(t, Position{X: -1e9, Y: 42.5}.IsFinite())
	assert.False(t, Position{X: math.NaN()}.IsFinite())
	assert.False(t, Position{Y: math.Inf(-1)}.IsFinite())
}

func TestGraphSubmission_Validation(t *testing.T) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	valid := GraphSubmission{
		Version: 1,
		Nodes:   []SubmittedNode{{ID: "a", Type: NodeTypeManualTrigger}},
		Edges:   []SubmittedEdge{{Source: "a", Target: "a"}},
	}
	require.NoError(t, validate.Struct(valid))

	missingType := valid
	missingType.Nodes = []SubmittedNode{{ID: "a"}}
	require.Error(t, validate.Struct(missingType))

	missingVersion := valid
	missingVersion.Version = 0
	require.Error(t, validate.Struct(missingVersion))

	empty := GraphSubmission{Version: 3}
	require.NoError(t, validate.Struct(empty))

	long := strings.Repeat("x", MaxFieldLength+1)
	atLimit := strings.Repeat("é", MaxFieldLength)

	tooLong := []GraphSubmission{
		{Version: 1, Nodes: []SubmittedNode{{ID: long, Type: NodeTypeManualTrigger}}},
		{Version: 1, Nodes: []SubmittedNode{{ID: "a", Type: NodeTypeManualTrigger, Name: long}}},
		{Version: 1, Nodes: []SubmittedNode{{ID: "a", Type: NodeType(long)}}},
		{Version: 1, Edges: []SubmittedEdge{{ID: long, Source: "a", Target: "a"}}},
		{Version: 1, Edges: []SubmittedEdge{{Source: "a", Target: "a", SourceHandle: long}}},
		{Version: 1, Edges: []SubmittedEdge{{Source: "a", Target: "a", TargetHandle: long}}},
	}
	for i, submission := range tooLong {
		assert.Error(t, validate.Struct(submission), "submission %d", i)
	}

	multiByte := GraphSubmission{Version: 1, Nodes: []SubmittedNode{{ID: atLimit, Type: NodeTypeManualTrigger, Name: atLimit}}}
	require.NoError(t, validate.Struct(multiByte))
}

func TestValidText(t *testing.T) {
	assert.True(t, ValidText(""))
	assert.True(t, ValidText("Relatório diário"))
	assert.False(t, ValidText("bad\x00name"))
	assert.False(t, ValidText(string([]byte{0xff, 0xfe})))
}

func TestValidData(t *testing.T) {
	assert.True(t, ValidData(map[string]any(nil)))
	assert.True(t, ValidData(map[string]any{"cron": "*/5 * * * *", "retries": 3.0, "tags": []any{"a", true}}))
	assert.False(t, ValidData(map[string]any{"body": "x\x00y"}))
	assert.False(t, ValidData(map[string]any{"k\x00": "v"}))
	assert.False(t, ValidData(map[string]any{"nested": map[string]any{"list": []any{"ok", "\x00"}}}))
}

// Node Data Tests

func TestDecodeNodeData(t *testing.T) {
	testCases := []struct {
		name     string
		nodeType NodeType
		data     map[string]any
		want     NodeData
	}{
		{
			name:     "initial without label",
			nodeType: NodeTypeInitial,
			data:     nil,
			want:     InitialData{},
		},
		{
			name:     "initial with label",
			nodeType: NodeTypeInitial,
			data:     map[string]any{"label": "start here"},
			want:     InitialData{Label: "start here"},
		},
		{
			name:     "manual trigger",
			nodeType: NodeTypeManualTrigger,
			data:     map[string]any{},
			want:     ManualTriggerData{},
		},
		{
			name:     "http request",
			nodeType: NodeTypeHTTPRequest,
			data:     map[string]any{"endpoint": "https://example.com", "method": "POST", "body": "{}"},
			want:     HTTPRequestData{Endpoint: "https://example.com", Method: "POST", Body: "{}"},
		},
		{
			name:     "schedule trigger",
			nodeType: NodeTypeScheduleTrigger,
			data:     map[string]any{"cron": "*/5 * * * *", "timezone": "UTC"},
			want:     ScheduleTriggerData{Cron: "*/5 * * * *", Timezone: "UTC"},
		},
		{
			name:     "extension",
			nodeType: NodeType("SLACK_MESSAGE"),
			data:     map[string]any{"channel": "#ops"},
			want:     ExtensionData{Type: "SLACK_MESSAGE", Values: map[string]any{"channel": "#ops"}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeNodeData(tc.nodeType, tc.data)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.nodeType, got.Kind())
		})
	}
}

func TestDecodeNodeData_WrongFieldType(t *testing.T) {
	_, err := DecodeNodeData(NodeTypeHTTPRequest, map[string]any{"endpoint": 12})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP_REQUEST")
}
