package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/nodeflow/pkg/graphview"
	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/persistence"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"

	workflowColumns = `id, name, owner_id, version, created_at, updated_at`
)

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

// Create inserts a workflow and its initial nodes in one transaction.
func (r *WorkflowRepository) Create(ctx context.Context, workflow *models.Workflow, nodes []*models.Node) (err error) {
	now := time.Now().UTC()

	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow ID: %w", err)
		}

		workflow.ID = id.String()
	}

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = workflow.CreatedAt

	if workflow.Version == 0 {
		workflow.Version = 1
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO workflows (id, name, owner_id, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		workflow.ID,
		workflow.Name,
		workflow.OwnerID,
		workflow.Version,
		workflow.CreatedAt,
		workflow.UpdatedAt,
	)
	if err != nil {
		if isPQCode(err, pqUniqueViolation) {
			return persistence.NewWorkflowError("Create", workflow.ID, persistence.ErrWorkflowAlreadyExists)
		}

		return fmt.Errorf("failed to insert workflow: %w", err)
	}

	for _, node := range nodes {
		node.WorkflowID = workflow.ID

		err = insertNode(ctx, tx, node, now)
		if err != nil {
			return err
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetByID returns a workflow by its ID.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	if !isUUID(id) {
		return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
	}

	row := r.db.QueryRowContext(ctx, `SELECT `+workflowColumns+` FROM workflows WHERE id = $1`, id)

	workflow, err := scanWorkflow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	return workflow, nil
}

// GetGraph loads a workflow with its nodes and connections from one snapshot.
func (r *WorkflowRepository) GetGraph(ctx context.Context, id string) (*models.WorkflowGraph, error) {
	if !isUUID(id) {
		return nil, persistence.NewWorkflowError("GetGraph", id, persistence.ErrWorkflowNotFound)
	}

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	workflow, err := scanWorkflow(tx.QueryRowContext(ctx, `SELECT `+workflowColumns+` FROM workflows WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetGraph", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	nodes, err := r.loadNodes(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	connections, err := r.loadConnections(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	err = tx.Commit()
	if err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &models.WorkflowGraph{
		Workflow:    workflow,
		Nodes:       nodes,
		Connections: connections,
	}, nil
}

// Rename updates the workflow name and bumps its version.
func (r *WorkflowRepository) Rename(ctx context.Context, id, name string) (*models.Workflow, error) {
	if !isUUID(id) {
		return nil, persistence.NewWorkflowError("Rename", id, persistence.ErrWorkflowNotFound)
	}

	row := r.db.QueryRowContext(ctx, `
		UPDATE workflows
		SET name = $2, version = version + 1, updated_at = $3
		WHERE id = $1
		RETURNING `+workflowColumns,
		id, name, time.Now().UTC(),
	)

	workflow, err := scanWorkflow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("Rename", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to rename workflow: %w", err)
	}

	return workflow, nil
}

// Delete removes a workflow. Nodes and connections go with it through ON DELETE CASCADE.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) (*models.Workflow, error) {
	if !isUUID(id) {
		return nil, persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	row := r.db.QueryRowContext(ctx, `DELETE FROM workflows WHERE id = $1 RETURNING `+workflowColumns, id)

	workflow, err := scanWorkflow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to delete workflow: %w", err)
	}

	return workflow, nil
}

// ApplyPlan writes a reconciliation plan guarded by an optimistic version check.
func (r *WorkflowRepository) ApplyPlan(ctx context.Context, plan graphview.Plan, expectedVersion int64) (_ *models.Workflow, err error) {
	if !isUUID(plan.WorkflowID) {
		return nil, persistence.NewWorkflowError("ApplyPlan", plan.WorkflowID, persistence.ErrWorkflowNotFound)
	}

	now := time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	row := tx.QueryRowContext(ctx, `
		UPDATE workflows
		SET version = version + 1, updated_at = $3
		WHERE id = $1 AND version = $2
		RETURNING `+workflowColumns,
		plan.WorkflowID, expectedVersion, now,
	)

	workflow, err := scanWorkflow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.missingOrStale(ctx, tx, plan.WorkflowID, expectedVersion)
		}

		return nil, fmt.Errorf("failed to bump workflow version: %w", err)
	}

	if len(plan.DeleteConnectionIDs) > 0 {
		_, err = tx.ExecContext(ctx,
			`DELETE FROM workflow_connections WHERE workflow_id = $1 AND id = ANY($2)`,
			plan.WorkflowID, pq.Array(plan.DeleteConnectionIDs),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to delete connections: %w", err)
		}
	}

	for _, node := range plan.UpdateNodes {
		err = updateNode(ctx, tx, node, now)
		if err != nil {
			return nil, err
		}
	}

	for _, node := range plan.InsertNodes {
		err = insertNode(ctx, tx, node, now)
		if err != nil {
			return nil, err
		}
	}

	for _, connection := range plan.UpdateConnections {
		err = updateConnection(ctx, tx, connection, now)
		if err != nil {
			return nil, err
		}
	}

	for _, connection := range plan.InsertConnections {
		err = insertConnection(ctx, tx, connection, now)
		if err != nil {
			return nil, err
		}
	}

	// Nodes go last so the cascade never takes a connection that was just rewired.
	if len(plan.DeleteNodeIDs) > 0 {
		_, err = tx.ExecContext(ctx,
			`DELETE FROM workflow_nodes WHERE workflow_id = $1 AND id = ANY($2)`,
			plan.WorkflowID, pq.Array(plan.DeleteNodeIDs),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to delete nodes: %w", err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return workflow, nil
}

// ListWorkflows returns one page of an owner's workflows and the total count,
// both read inside a single REPEATABLE READ snapshot.
func (r *WorkflowRepository) ListWorkflows(ctx context.Context, opts persistence.ListWorkflowsOptions) (*persistence.WorkflowListResult, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	// position() instead of ILIKE so % and _ in the search term match literally.
	filter := `owner_id = $1 AND ($2 = '' OR position(lower($2) in lower(name)) > 0)`

	var total int64

	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM workflows WHERE `+filter, opts.OwnerID, opts.Search).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count workflows: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT `+workflowColumns+`
		FROM workflows
		WHERE `+filter+`
		ORDER BY updated_at DESC, id ASC
		LIMIT $3 OFFSET $4
	`, opts.OwnerID, opts.Search, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	workflows := make([]*models.Workflow, 0, max(opts.Limit, 0))

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &persistence.WorkflowListResult{
		Workflows:  workflows,
		TotalCount: total,
	}, nil
}

func (r *WorkflowRepository) missingOrStale(ctx context.Context, tx *sql.Tx, id string, expectedVersion int64) error {
	var exists bool

	err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM workflows WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check workflow existence: %w", err)
	}

	if !exists {
		return persistence.NewWorkflowError("ApplyPlan", id, persistence.ErrWorkflowNotFound)
	}

	return &persistence.WorkflowError{
		Op:         "ApplyPlan",
		WorkflowID: id,
		Message:    fmt.Sprintf("expected version %d", expectedVersion),
		Err:        persistence.ErrVersionConflict,
	}
}

func (r *WorkflowRepository) loadNodes(ctx context.Context, tx *sql.Tx, workflowID string) ([]*models.Node, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, workflow_id, type, name, position_x, position_y, data, created_at, updated_at
		FROM workflow_nodes
		WHERE workflow_id = $1
		ORDER BY seq, id
	`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow nodes: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	nodes := make([]*models.Node, 0)

	for rows.Next() {
		var (
			node     models.Node
			dataJSON []byte
		)

		err := rows.Scan(
			&node.ID,
			&node.WorkflowID,
			&node.Type,
			&node.Name,
			&node.Position.X,
			&node.Position.Y,
			&dataJSON,
			&node.CreatedAt,
			&node.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}

		if dataJSON != nil {
			err := json.Unmarshal(dataJSON, &node.Data)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal node data: %w", err)
			}
		}

		nodes = append(nodes, &node)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating nodes: %w", err)
	}

	return nodes, nil
}

func (r *WorkflowRepository) loadConnections(ctx context.Context, tx *sql.Tx, workflowID string) ([]*models.Connection, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, workflow_id, from_node_id, to_node_id, from_output, to_input, created_at, updated_at
		FROM workflow_connections
		WHERE workflow_id = $1
		ORDER BY seq, id
	`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow connections: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	connections := make([]*models.Connection, 0)

	for rows.Next() {
		var connection models.Connection

		err := rows.Scan(
			&connection.ID,
			&connection.WorkflowID,
			&connection.FromNodeID,
			&connection.ToNodeID,
			&connection.FromOutput,
			&connection.ToInput,
			&connection.CreatedAt,
			&connection.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}

		connections = append(connections, &connection)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating connections: %w", err)
	}

	return connections, nil
}

func insertNode(ctx context.Context, tx *sql.Tx, node *models.Node, now time.Time) error {
	dataJSON, err := marshalData(node.Data)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO workflow_nodes (workflow_id, id, type, name, position_x, position_y, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`,
		node.WorkflowID,
		node.ID,
		node.Type,
		node.Name,
		node.Position.X,
		node.Position.Y,
		dataJSON,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert node %s: %w", node.ID, err)
	}

	node.CreatedAt = now
	node.UpdatedAt = now

	return nil
}

func updateNode(ctx context.Context, tx *sql.Tx, node *models.Node, now time.Time) error {
	dataJSON, err := marshalData(node.Data)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE workflow_nodes
		SET type = $3, name = $4, position_x = $5, position_y = $6, data = $7, updated_at = $8
		WHERE workflow_id = $1 AND id = $2
	`,
		node.WorkflowID,
		node.ID,
		node.Type,
		node.Name,
		node.Position.X,
		node.Position.Y,
		dataJSON,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to update node %s: %w", node.ID, err)
	}

	node.UpdatedAt = now

	return nil
}

func insertConnection(ctx context.Context, tx *sql.Tx, connection *models.Connection, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO workflow_connections (workflow_id, id, from_node_id, to_node_id, from_output, to_input, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`,
		connection.WorkflowID,
		connection.ID,
		connection.FromNodeID,
		connection.ToNodeID,
		connection.FromOutput,
		connection.ToInput,
		now,
	)
	if err != nil {
		return connectionError(connection, "insert", err)
	}

	connection.CreatedAt = now
	connection.UpdatedAt = now

	return nil
}

func updateConnection(ctx context.Context, tx *sql.Tx, connection *models.Connection, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE workflow_connections
		SET from_node_id = $3, to_node_id = $4, from_output = $5, to_input = $6, updated_at = $7
		WHERE workflow_id = $1 AND id = $2
	`,
		connection.WorkflowID,
		connection.ID,
		connection.FromNodeID,
		connection.ToNodeID,
		connection.FromOutput,
		connection.ToInput,
		now,
	)
	if err != nil {
		return connectionError(connection, "update", err)
	}

	connection.UpdatedAt = now

	return nil
}

func connectionError(connection *models.Connection, op string, err error) error {
	if isPQCode(err, pqForeignKeyViolation) {
		return &persistence.WorkflowError{
			Op:         "ApplyPlan",
			WorkflowID: connection.WorkflowID,
			Message:    "connection " + connection.ID,
			Err:        persistence.ErrDanglingConnection,
		}
	}

	return fmt.Errorf("failed to %s connection %s: %w", op, connection.ID, err)
}

func marshalData(data map[string]any) ([]byte, error) {
	if data == nil {
		return []byte("{}"), nil
	}

	dataJSON, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal node data: %w", err)
	}

	return dataJSON, nil
}

func scanWorkflow(scanner interface {
	Scan(dest ...any) error
},
) (*models.Workflow, error) {
	var workflow models.Workflow

	err := scanner.Scan(
		&workflow.ID,
		&workflow.Name,
		&workflow.OwnerID,
		&workflow.Version,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &workflow, nil
}

// isUUID guards queries against ids the uuid column would reject with a syntax error.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)

	return err == nil
}

func isPQCode(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error

	return errors.As(err, &pqErr) && pqErr.Code == code
}
