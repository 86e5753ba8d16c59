package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dukex/nodeflow/pkg/cache"
	"github.com/dukex/nodeflow/pkg/config"
	"github.com/dukex/nodeflow/pkg/eventbus"
	"github.com/dukex/nodeflow/pkg/events"
	"github.com/dukex/nodeflow/pkg/graphview"
	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/otelhelper"
	"github.com/dukex/nodeflow/pkg/persistence"
	"github.com/dukex/nodeflow/pkg/registry"
	"github.com/dukex/nodeflow/pkg/slug"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/dukex/nodeflow/pkg/services"

// Workflow runs every workflow operation on behalf of a principal.
type Workflow struct {
	persistence  persistence.Persistence
	registry     *registry.Registry
	publisher    eventbus.EventPublisher
	cache        GraphCache
	entitlements Entitlements
	names        NameGenerator
	pagination   config.Pagination
	timeout      time.Duration
	logger       *slog.Logger
	tracer       trace.Tracer
	validate     *validator.Validate
	newID        func() string
}

// Option configures a Workflow service.
type Option func(*Workflow)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Workflow) { w.logger = logger }
}

func WithRegistry(r *registry.Registry) Option {
	return func(w *Workflow) { w.registry = r }
}

// WithPublisher sets where lifecycle events go. Without one, events are dropped.
func WithPublisher(publisher eventbus.EventPublisher) Option {
	return func(w *Workflow) { w.publisher = publisher }
}

// WithCache enables the read-through graph view cache.
func WithCache(graphCache GraphCache) Option {
	return func(w *Workflow) { w.cache = graphCache }
}

func WithEntitlements(entitlements Entitlements) Option {
	return func(w *Workflow) { w.entitlements = entitlements }
}

func WithNameGenerator(names NameGenerator) Option {
	return func(w *Workflow) { w.names = names }
}

func WithPagination(pagination config.Pagination) Option {
	return func(w *Workflow) { w.pagination = pagination }
}

// WithRequestTimeout bounds every call. Non-positive values keep the default.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(w *Workflow) {
		if timeout > 0 {
			w.timeout = timeout
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(w *Workflow) { w.tracer = tracer }
}

// WithIDGenerator replaces the UUIDv7 generator used for nodes and edges.
func WithIDGenerator(newID func() string) Option {
	return func(w *Workflow) { w.newID = newID }
}

// NewWorkflow creates a new workflow service.
func NewWorkflow(persistence persistence.Persistence, opts ...Option) *Workflow {
	w := &Workflow{
		persistence:  persistence,
		entitlements: AllowAll{},
		names:        slug.NewGenerator(slug.DefaultWords),
		pagination:   config.DefaultPagination(),
		timeout:      config.DefaultRequestTimeout,
		logger:       slog.Default(),
		tracer:       otelhelper.Tracer(tracerName),
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		newID:        newUUID,
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.registry == nil {
		w.registry = registry.NewDefaultRegistry(w.logger)
	}

	w.logger = w.logger.With("module", "workflow_service")

	return w
}

func newUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}

func (w *Workflow) repository() persistence.WorkflowRepository {
	return w.persistence.WorkflowRepository()
}

// begin derives the call deadline and opens the operation span. The returned
// finish func must be called with the operation's final error.
func (w *Workflow) begin(ctx context.Context, op, principal, id string) (context.Context, func(error)) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "workflow."+op, otelhelper.WorkflowAttributes(id, principal)...)

	return ctx, func(err error) {
		if err != nil {
			otelhelper.SetError(span, err)
		}

		span.End()
		cancel()
	}
}

func requirePrincipal(op, principal string) error {
	if strings.TrimSpace(principal) == "" {
		return &ServiceError{Op: op, Code: CodeUnauthenticated, Message: "principal is required", Err: ErrUnauthenticated}
	}

	if utf8.RuneCountInString(principal) > models.MaxFieldLength || !models.ValidText(principal) {
		return &ServiceError{Op: op, Code: CodeUnauthenticated, Message: "principal is malformed", Err: ErrUnauthenticated}
	}

	return nil
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// NodeKinds lists the registered node kinds with their schemas.
func (w *Workflow) NodeKinds() []registry.NodeKind {
	return w.registry.Kinds()
}

// Create adds a new workflow with a generated name and a single INITIAL node.
func (w *Workflow) Create(ctx context.Context, principal string) (_ *models.Workflow, err error) {
	const op = "Create"

	ctx, finish := w.begin(ctx, op, principal, "")
	defer func() { finish(err) }()

	err = requirePrincipal(op, principal)
	if err != nil {
		return nil, err
	}

	entitled, err := w.entitlements.IsEntitled(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("failed to check entitlements: %w", err)
	}

	if !entitled {
		return nil, &ServiceError{Op: op, Code: CodeNotEntitled, Message: "an active subscription is required", Err: ErrNotEntitled}
	}

	workflow := &models.Workflow{
		ID:      w.newID(),
		Name:    w.names.Generate(),
		OwnerID: principal,
	}

	nodes := []*models.Node{models.NewInitialNode(w.newID(), workflow.ID)}

	err = w.repository().Create(ctx, workflow, nodes)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	w.logger.InfoContext(ctx, "Workflow created", "workflow_id", workflow.ID, "principal", principal)
	w.publish(ctx, workflow.ID, events.NewWorkflowCreated(workflow.ID, principal, workflow.Name))

	return workflow, nil
}

// Remove deletes a workflow the principal owns, with its nodes and connections.
func (w *Workflow) Remove(ctx context.Context, principal, id string) (_ *models.Workflow, err error) {
	const op = "Remove"

	ctx, finish := w.begin(ctx, op, principal, id)
	defer func() { finish(err) }()

	err = requirePrincipal(op, principal)
	if err != nil {
		return nil, err
	}

	_, err = w.ownedWorkflow(ctx, op, principal, id)
	if err != nil {
		return nil, err
	}

	deleted, err := w.repository().Delete(ctx, id)
	if err != nil {
		return nil, w.mapPersistenceError(op, err)
	}

	w.invalidate(ctx, id)
	w.logger.InfoContext(ctx, "Workflow removed", "workflow_id", id, "principal", principal)
	w.publish(ctx, id, events.NewWorkflowRemoved(id, principal))

	return deleted, nil
}

// UpdateName renames a workflow the principal owns.
func (w *Workflow) UpdateName(ctx context.Context, principal, id, name string) (_ *models.Workflow, err error) {
	const op = "UpdateName"

	ctx, finish := w.begin(ctx, op, principal, id)
	defer func() { finish(err) }()

	err = requirePrincipal(op, principal)
	if err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, NewValidationError(op, CodeNameRequired, "name must not be empty")
	}

	if !models.ValidText(name) {
		return nil, NewValidationError(op, CodeValidation, "name must be UTF-8 text without NUL characters")
	}

	_, err = w.ownedWorkflow(ctx, op, principal, id)
	if err != nil {
		return nil, err
	}

	renamed, err := w.repository().Rename(ctx, id, name)
	if err != nil {
		return nil, w.mapPersistenceError(op, err)
	}

	w.invalidate(ctx, id)
	w.publish(ctx, id, events.NewWorkflowRenamed(id, principal, renamed.Name, renamed.Version))

	return renamed, nil
}

// GetOne returns the graph view of a workflow the principal owns.
func (w *Workflow) GetOne(ctx context.Context, principal, id string) (_ *models.GraphView, err error) {
	const op = "GetOne"

	ctx, finish := w.begin(ctx, op, principal, id)
	defer func() { finish(err) }()

	err = requirePrincipal(op, principal)
	if err != nil {
		return nil, err
	}

	if entry, ok := w.cached(ctx, id); ok {
		// The workflow row is the source of truth: a fill can race a write and
		// put back a view that is already gone or outdated.
		var workflow *models.Workflow

		workflow, err = w.ownedWorkflow(ctx, op, principal, id)
		if err != nil {
			return nil, err
		}

		if entry.Version == workflow.Version && entry.OwnerID == workflow.OwnerID {
			return &entry.View, nil
		}

		w.logger.DebugContext(ctx, "Dropping stale graph view",
			"workflow_id", id,
			"cached_version", entry.Version,
			"version", workflow.Version,
		)
		w.invalidate(ctx, id)
	}

	graph, err := w.ownedGraph(ctx, op, principal, id)
	if err != nil {
		return nil, err
	}

	view := graphview.FromGraph(graph)
	w.store(ctx, graph.Workflow.OwnerID, view)

	return &view, nil
}

// ListWorkflows returns one page of the principal's workflows, most recently
// updated first.
func (w *Workflow) ListWorkflows(ctx context.Context, principal string, req ListWorkflowsRequest) (_ *Page[*models.Workflow], err error) {
	const op = "ListWorkflows"

	ctx, finish := w.begin(ctx, op, principal, "")
	defer func() { finish(err) }()

	err = requirePrincipal(op, principal)
	if err != nil {
		return nil, err
	}

	req, err = req.resolve(op, w.pagination)
	if err != nil {
		return nil, err
	}

	result, err := w.repository().ListWorkflows(ctx, persistence.ListWorkflowsOptions{
		OwnerID: principal,
		Search:  req.Search,
		Limit:   req.PageSize,
		Offset:  req.offset(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	return NewPage(result.Workflows, req.Page, req.PageSize, result.TotalCount), nil
}

// SaveGraph replaces the nodes and connections of a workflow the principal
// owns with the submitted graph. The submission must carry the version the
// editor loaded; a stale version fails with ErrVersionConflict and writes nothing.
func (w *Workflow) SaveGraph(
	ctx context.Context,
	principal, id string,
	submission models.GraphSubmission,
) (_ *models.GraphView, err error) {
	const op = "SaveGraph"

	ctx, finish := w.begin(ctx, op, principal, id)
	defer func() { finish(err) }()

	err = requirePrincipal(op, principal)
	if err != nil {
		return nil, err
	}

	nodes, connections, err := w.validateSubmission(op, id, submission)
	if err != nil {
		return nil, err
	}

	stored, err := w.ownedGraph(ctx, op, principal, id)
	if err != nil {
		return nil, err
	}

	plan := graphview.Reconcile(id, stored, nodes, connections)

	updated, err := w.repository().ApplyPlan(ctx, plan, submission.Version)
	if err != nil {
		return nil, w.mapPersistenceError(op, err)
	}

	w.invalidate(ctx, id)
	w.logger.InfoContext(ctx, "Workflow graph saved",
		"workflow_id", id,
		"version", updated.Version,
		"nodes", len(nodes),
		"connections", len(connections),
	)
	w.publish(ctx, id, events.NewWorkflowGraphSaved(id, principal, updated.Version, len(nodes), len(connections)))

	savedNodes, savedConnections := plan.Result(stored)
	view := graphview.Build(updated, savedNodes, savedConnections)

	return &view, nil
}

func (w *Workflow) validateSubmission(op, id string, submission models.GraphSubmission) ([]*models.Node, []*models.Connection, error) {
	err := w.validate.Struct(submission)
	if err != nil {
		return nil, nil, NewValidationError(op, CodeValidation, err.Error())
	}

	nodes, connections, err := graphview.FromSubmission(id, submission, w.newID)
	if err != nil {
		return nil, nil, NewValidationError(op, CodeInvalidGraph, err.Error())
	}

	for i, node := range nodes {
		if !models.ValidText(node.ID) || !models.ValidText(node.Name) || !models.ValidText(string(node.Type)) {
			return nil, nil, NewValidationError(op, CodeInvalidGraph, fmt.Sprintf("node %d contains NUL or invalid UTF-8", i))
		}

		if !models.ValidData(node.Data) {
			return nil, nil, NewValidationError(op, CodeInvalidNodeData, fmt.Sprintf("node %d data contains NUL or invalid UTF-8", i))
		}
	}

	for i, connection := range connections {
		if !models.ValidText(connection.ID) || !models.ValidText(connection.FromOutput) || !models.ValidText(connection.ToInput) {
			return nil, nil, NewValidationError(op, CodeInvalidGraph, fmt.Sprintf("edge %d contains NUL or invalid UTF-8", i))
		}
	}

	for _, node := range nodes {
		err = w.registry.Validate(node.Type, node.Data)
		if err != nil {
			return nil, nil, NewValidationError(op, CodeInvalidNodeData, fmt.Sprintf("node %s: %v", node.ID, err))
		}
	}

	return nodes, connections, nil
}

// publish emits a lifecycle event after commit. Failures are logged only.
func (w *Workflow) publish(ctx context.Context, workflowID string, event eventbus.Event) {
	if w.publisher == nil {
		return
	}

	err := w.publisher.Publish(ctx, workflowID, event)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to publish event",
			"event_type", event.GetType(),
			"workflow_id", workflowID,
			"error", err,
		)
	}
}

func (w *Workflow) cached(ctx context.Context, id string) (*cache.Entry, bool) {
	if w.cache == nil {
		return nil, false
	}

	entry, ok, err := w.cache.Get(ctx, id)
	if err != nil {
		w.logger.WarnContext(ctx, "Failed to read graph cache", "workflow_id", id, "error", err)

		return nil, false
	}

	return entry, ok
}

func (w *Workflow) store(ctx context.Context, ownerID string, view models.GraphView) {
	if w.cache == nil {
		return
	}

	err := w.cache.Set(ctx, &cache.Entry{OwnerID: ownerID, Version: view.Version, View: view})
	if err != nil {
		w.logger.WarnContext(ctx, "Failed to fill graph cache", "workflow_id", view.ID, "error", err)
	}
}

func (w *Workflow) invalidate(ctx context.Context, id string) {
	if w.cache == nil {
		return
	}

	err := w.cache.Delete(ctx, id)
	if err != nil {
		w.logger.WarnContext(ctx, "Failed to invalidate graph cache", "workflow_id", id, "error", err)
	}
}
