// Package registry keeps the catalogue of node kinds and validates node data
// against each kind's JSON schema.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

var (
	// ErrUnknownNodeType is returned for node types that were never registered.
	ErrUnknownNodeType = errors.New("unknown node type")

	// ErrInvalidNodeData is returned when a payload does not match its kind.
	ErrInvalidNodeData = errors.New("invalid node data")

	// ErrDuplicateNodeType is returned when registering a kind twice.
	ErrDuplicateNodeType = errors.New("node type already registered")
)

// CheckFunc runs kind specific checks that JSON schema cannot express.
type CheckFunc func(data models.NodeData) error

// NodeKind describes a registered node kind.
type NodeKind struct {
	Type        models.NodeType `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Schema      map[string]any  `json:"schema"`

	check    CheckFunc
	compiled *gojsonschema.Schema
}

type Registry struct {
	logger *slog.Logger

	mu    sync.RWMutex
	kinds map[models.NodeType]*NodeKind
	order []models.NodeType
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger: log,
		kinds:  make(map[models.NodeType]*NodeKind),
	}
}

// NewDefaultRegistry returns a registry holding the built-in node kinds.
func NewDefaultRegistry(log *slog.Logger) *Registry {
	r := NewRegistry(log)

	for _, kind := range builtinKinds() {
		err := r.Register(kind)
		if err != nil {
			panic(fmt.Errorf("failed to register built-in node kind %s: %w", kind.Type, err))
		}
	}

	return r
}

// Register adds a node kind. The schema is compiled once here.
func (r *Registry) Register(kind NodeKind) error {
	if kind.Type == "" {
		return fmt.Errorf("%w: empty type", ErrInvalidNodeData)
	}

	schema := kind.Schema
	if schema == nil {
		schema = map[string]any{"type": "object"}
	}

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		return fmt.Errorf("invalid schema for node type %s: %w", kind.Type, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.kinds[kind.Type]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNodeType, kind.Type)
	}

	kind.Schema = schema
	kind.compiled = compiled
	r.kinds[kind.Type] = &kind
	r.order = append(r.order, kind.Type)

	r.logger.Debug("Registered node kind", "type", kind.Type)

	return nil
}

// RegisterExtension adds a kind whose data is only checked by its schema.
func (r *Registry) RegisterExtension(nodeType models.NodeType, name, description string, schema map[string]any) error {
	return r.Register(NodeKind{
		Type:        nodeType,
		Name:        name,
		Description: description,
		Schema:      schema,
	})
}

// IsRegistered reports whether nodeType is known.
func (r *Registry) IsRegistered(nodeType models.NodeType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.kinds[nodeType]

	return ok
}

// Kinds returns the registered kinds in registration order.
func (r *Registry) Kinds() []NodeKind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]NodeKind, 0, len(r.order))
	for _, t := range r.order {
		kinds = append(kinds, *r.kinds[t])
	}

	return kinds
}

// Validate checks data against the schema and checks of nodeType.
// A nil payload is treated as an empty object.
func (r *Registry) Validate(nodeType models.NodeType, data map[string]any) error {
	r.mu.RLock()
	kind, ok := r.kinds[nodeType]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNodeType, nodeType)
	}

	if data == nil {
		data = map[string]any{}
	}

	result, err := kind.compiled.Validate(gojsonschema.NewGoLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidNodeData, nodeType, err)
	}

	if !result.Valid() {
		var descriptions []string
		for _, desc := range result.Errors() {
			descriptions = append(descriptions, desc.String())
		}

		return fmt.Errorf("%w: %s: %s", ErrInvalidNodeData, nodeType, strings.Join(descriptions, "; "))
	}

	if kind.check == nil {
		return nil
	}

	typed, err := models.DecodeNodeData(nodeType, data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidNodeData, err)
	}

	err = kind.check(typed)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidNodeData, nodeType, err)
	}

	return nil
}

// HealthCheck reports whether the registry has any kinds loaded.
func (r *Registry) HealthCheck() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.kinds) == 0 {
		return "No node kinds registered", false
	}

	return fmt.Sprintf("%d node kinds registered", len(r.kinds)), true
}
