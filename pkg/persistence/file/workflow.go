package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dukex/nodeflow/pkg/graphview"
	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/persistence"
	"github.com/google/uuid"
)

// record is the on-disk shape of one workflow file.
type record struct {
	Workflow    *models.Workflow     `json:"workflow"`
	Nodes       []*models.Node       `json:"nodes"`
	Connections []*models.Connection `json:"connections"`
}

// WorkflowRepository handles workflow-related file operations. Every workflow
// lives in its own JSON file; a process wide lock makes each call atomic.
type WorkflowRepository struct {
	root string // File system root for storing workflows
	mu   sync.RWMutex
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{root: root}
}

// Create writes a new workflow file holding the workflow and its initial nodes.
func (wr *WorkflowRepository) Create(ctx context.Context, workflow *models.Workflow, nodes []*models.Node) error {
	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow ID: %w", err)
		}

		workflow.ID = id.String()
	}

	wr.mu.Lock()
	defer wr.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := wr.read(workflow.ID)
	if err == nil {
		return persistence.NewWorkflowError("Create", workflow.ID, persistence.ErrWorkflowAlreadyExists)
	}

	if !persistence.IsWorkflowNotFound(err) {
		return err
	}

	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = workflow.CreatedAt

	if workflow.Version == 0 {
		workflow.Version = 1
	}

	for _, node := range nodes {
		node.WorkflowID = workflow.ID
		node.CreatedAt = now
		node.UpdatedAt = now
	}

	return wr.write(&record{
		Workflow:    workflow,
		Nodes:       nodes,
		Connections: []*models.Connection{},
	})
}

// GetByID retrieves a workflow by its ID from the file system.
func (wr *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	graph, err := wr.GetGraph(ctx, id)
	if err != nil {
		return nil, err
	}

	return graph.Workflow, nil
}

// GetGraph retrieves a workflow with its nodes and connections.
func (wr *WorkflowRepository) GetGraph(ctx context.Context, id string) (*models.WorkflowGraph, error) {
	wr.mu.RLock()
	defer wr.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec, err := wr.read(id)
	if err != nil {
		return nil, err
	}

	return &models.WorkflowGraph{
		Workflow:    rec.Workflow,
		Nodes:       rec.Nodes,
		Connections: rec.Connections,
	}, nil
}

// Rename updates the workflow name and bumps its version.
func (wr *WorkflowRepository) Rename(ctx context.Context, id, name string) (*models.Workflow, error) {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec, err := wr.read(id)
	if err != nil {
		return nil, err
	}

	rec.Workflow.Name = name
	rec.Workflow.Version++
	rec.Workflow.UpdatedAt = time.Now().UTC()

	err = wr.write(rec)
	if err != nil {
		return nil, err
	}

	return rec.Workflow, nil
}

// Delete removes a workflow file, which holds its nodes and connections too.
func (wr *WorkflowRepository) Delete(ctx context.Context, id string) (*models.Workflow, error) {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec, err := wr.read(id)
	if err != nil {
		return nil, err
	}

	err = os.Remove(wr.path(id))
	if err != nil {
		return nil, fmt.Errorf("failed to delete workflow %s: %w", id, err)
	}

	return rec.Workflow, nil
}

// ApplyPlan applies a reconciliation plan when the stored version matches.
func (wr *WorkflowRepository) ApplyPlan(ctx context.Context, plan graphview.Plan, expectedVersion int64) (*models.Workflow, error) {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec, err := wr.read(plan.WorkflowID)
	if err != nil {
		return nil, err
	}

	if rec.Workflow.Version != expectedVersion {
		return nil, &persistence.WorkflowError{
			Op:         "ApplyPlan",
			WorkflowID: plan.WorkflowID,
			Message:    fmt.Sprintf("expected version %d, found %d", expectedVersion, rec.Workflow.Version),
			Err:        persistence.ErrVersionConflict,
		}
	}

	now := time.Now().UTC()

	nodes := applyNodes(rec.Nodes, plan, now)
	connections := applyConnections(rec.Connections, plan, now)

	nodeIDs := make(map[string]struct{}, len(nodes))
	for _, node := range nodes {
		nodeIDs[node.ID] = struct{}{}
	}

	for _, connection := range connections {
		_, fromOK := nodeIDs[connection.FromNodeID]
		_, toOK := nodeIDs[connection.ToNodeID]

		if !fromOK || !toOK {
			return nil, &persistence.WorkflowError{
				Op:         "ApplyPlan",
				WorkflowID: plan.WorkflowID,
				Message:    "connection " + connection.ID,
				Err:        persistence.ErrDanglingConnection,
			}
		}
	}

	rec.Workflow.Version++
	rec.Workflow.UpdatedAt = now
	rec.Nodes = nodes
	rec.Connections = connections

	err = wr.write(rec)
	if err != nil {
		return nil, err
	}

	return rec.Workflow, nil
}

// ListWorkflows returns one page of an owner's workflows. Count and page come
// from the same locked read of the directory.
func (wr *WorkflowRepository) ListWorkflows(ctx context.Context, opts persistence.ListWorkflowsOptions) (*persistence.WorkflowListResult, error) {
	wr.mu.RLock()
	defer wr.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	jsonFiles, err := fs.Glob(os.DirFS(wr.dir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow files: %w", err)
	}

	search := strings.ToLower(opts.Search)
	matched := make([]*models.Workflow, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		rec, err := wr.read(strings.TrimSuffix(file, ".json"))
		if err != nil {
			if persistence.IsWorkflowNotFound(err) {
				continue
			}

			return nil, err
		}

		if rec.Workflow.OwnerID != opts.OwnerID {
			continue
		}

		if search != "" && !strings.Contains(strings.ToLower(rec.Workflow.Name), search) {
			continue
		}

		matched = append(matched, rec.Workflow)
	}

	slices.SortFunc(matched, func(a, b *models.Workflow) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}

		return strings.Compare(a.ID, b.ID)
	})

	totalCount := int64(len(matched))
	start := min(max(opts.Offset, 0), len(matched))
	end := min(start+max(opts.Limit, 0), len(matched))

	return &persistence.WorkflowListResult{
		Workflows:  matched[start:end],
		TotalCount: totalCount,
	}, nil
}

func applyNodes(stored []*models.Node, plan graphview.Plan, now time.Time) []*models.Node {
	updates := make(map[string]*models.Node, len(plan.UpdateNodes))
	for _, node := range plan.UpdateNodes {
		updates[node.ID] = node
	}

	nodes := make([]*models.Node, 0, len(stored)+len(plan.InsertNodes))

	for _, node := range stored {
		if slices.Contains(plan.DeleteNodeIDs, node.ID) {
			continue
		}

		if updated, ok := updates[node.ID]; ok {
			updated.CreatedAt = node.CreatedAt
			updated.UpdatedAt = now
			node = updated
		}

		nodes = append(nodes, node)
	}

	for _, node := range plan.InsertNodes {
		node.CreatedAt = now
		node.UpdatedAt = now
		nodes = append(nodes, node)
	}

	return nodes
}

func applyConnections(stored []*models.Connection, plan graphview.Plan, now time.Time) []*models.Connection {
	updates := make(map[string]*models.Connection, len(plan.UpdateConnections))
	for _, connection := range plan.UpdateConnections {
		updates[connection.ID] = connection
	}

	connections := make([]*models.Connection, 0, len(stored)+len(plan.InsertConnections))

	for _, connection := range stored {
		if slices.Contains(plan.DeleteConnectionIDs, connection.ID) {
			continue
		}

		if updated, ok := updates[connection.ID]; ok {
			updated.CreatedAt = connection.CreatedAt
			updated.UpdatedAt = now
			connection = updated
		}

		connections = append(connections, connection)
	}

	for _, connection := range plan.InsertConnections {
		connection.CreatedAt = now
		connection.UpdatedAt = now
		connections = append(connections, connection)
	}

	return connections
}

func (wr *WorkflowRepository) dir() string {
	return filepath.Join(wr.root, "workflows")
}

func (wr *WorkflowRepository) path(id string) string {
	return filepath.Join(wr.dir(), id+".json")
}

// read loads a workflow file. Ids that are not UUIDs never name a file.
func (wr *WorkflowRepository) read(id string) (*record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, persistence.NewWorkflowError("read", id, persistence.ErrWorkflowNotFound)
	}

	body, err := os.ReadFile(wr.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewWorkflowError("read", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to fetch workflow %s: %w", id, err)
	}

	var rec record

	err = json.Unmarshal(body, &rec)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow %s: %w", id, err)
	}

	if rec.Workflow == nil {
		return nil, fmt.Errorf("workflow file %s has no workflow", id)
	}

	if rec.Nodes == nil {
		rec.Nodes = []*models.Node{}
	}

	if rec.Connections == nil {
		rec.Connections = []*models.Connection{}
	}

	return &rec, nil
}

// write replaces a workflow file through a rename so readers never see a partial file.
func (wr *WorkflowRepository) write(rec *record) error {
	err := os.MkdirAll(wr.dir(), 0o750)
	if err != nil {
		return fmt.Errorf("failed to create workflows directory: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal workflow %s: %w", rec.Workflow.ID, err)
	}

	tmp := wr.path(rec.Workflow.ID) + ".tmp"

	err = os.WriteFile(tmp, data, 0o600)
	if err != nil {
		return fmt.Errorf("failed to write workflow %s: %w", rec.Workflow.ID, err)
	}

	err = os.Rename(tmp, wr.path(rec.Workflow.ID))
	if err != nil {
		return fmt.Errorf("failed to replace workflow %s: %w", rec.Workflow.ID, err)
	}

	return nil
}
