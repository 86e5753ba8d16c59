package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dukex/nodeflow/pkg/config"
	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/persistence/file"
	"github.com/dukex/nodeflow/pkg/registry"
	"github.com/dukex/nodeflow/pkg/services"
	"github.com/dukex/nodeflow/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alice = "user-alice"
	bob   = "user-bob"
)

type problem struct {
	Type     string `json:"type"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance"`
}

func setupTestApp(t *testing.T, opts ...services.Option) *fiber.App {
	t.Helper()

	persistence := file.NewPersistence(t.TempDir())
	registryInstance := registry.NewDefaultRegistry(slog.Default())
	opts = append([]services.Option{
		services.WithRegistry(registryInstance),
		services.WithPagination(config.Pagination{DefaultPage: 1, DefaultPageSize: 10, MinPageSize: 1, MaxPageSize: 50}),
	}, opts...)
	workflowService := services.NewWorkflow(persistence, opts...)
	validate := validator.New(validator.WithRequiredStructEnabled())

	handlers := web.NewAPIHandlers(slog.Default(), workflowService, validate, registryInstance)

	app := fiber.New()
	handlers.Register(app, config.DefaultPrincipalHeader)

	return app
}

func do(t *testing.T, app *fiber.App, method, path, principal string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	if principal != "" {
		req.Header.Set(config.DefaultPrincipalHeader, principal)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))

	return v
}

func createWorkflow(t *testing.T, app *fiber.App, principal string) models.Workflow {
	t.Helper()

	status, body := do(t, app, http.MethodPost, "/workflows", principal, nil)
	require.Equal(t, http.StatusCreated, status, string(body))

	return decode[models.Workflow](t, body)
}

func TestAPIHandlers_RequiresPrincipal(t *testing.T) {
	app := setupTestApp(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/workflows"},
		{http.MethodPost, "/workflows"},
		{http.MethodGet, "/workflows/any"},
		{http.MethodPatch, "/workflows/any"},
		{http.MethodPut, "/workflows/any/graph"},
		{http.MethodDelete, "/workflows/any"},
	} {
		status, body := do(t, app, route.method, route.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, status, route.path)
		assert.Equal(t, "unauthenticated", decode[problem](t, body).Type)
	}
}

func TestAPIHandlers_RejectsOversizedPrincipal(t *testing.T) {
	app := setupTestApp(t)

	status, body := do(t, app, http.MethodPost, "/workflows", strings.Repeat("p", models.MaxFieldLength+1), nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "unauthenticated", decode[problem](t, body).Type)

	createWorkflow(t, app, strings.Repeat("p", models.MaxFieldLength))
}

func TestAPIHandlers_RejectsUnstorableInput(t *testing.T) {
	app := setupTestApp(t)
	created := createWorkflow(t, app, alice)
	long := strings.Repeat("x", 300)

	graphPath := "/workflows/" + created.ID + "/graph"

	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{
			name:   "node id too long",
			method: http.MethodPut,
			path:   graphPath,
			body:   web.SaveGraphRequest{Version: 1, Nodes: []models.SubmittedNode{{ID: long, Type: models.NodeTypeInitial}}},
		},
		{
			name:   "node name too long",
			method: http.MethodPut,
			path:   graphPath,
			body:   web.SaveGraphRequest{Version: 1, Nodes: []models.SubmittedNode{{ID: "a", Type: models.NodeTypeInitial, Name: long}}},
		},
		{
			name:   "handle too long",
			method: http.MethodPut,
			path:   graphPath,
			body: web.SaveGraphRequest{
				Version: 1,
				Nodes:   []models.SubmittedNode{{ID: "a", Type: models.NodeTypeInitial}},
				Edges:   []models.SubmittedEdge{{Source: "a", Target: "a", TargetHandle: long}},
			},
		},
		{
			name:   "NUL in node name",
			method: http.MethodPut,
			path:   graphPath,
			body:   web.SaveGraphRequest{Version: 1, Nodes: []models.SubmittedNode{{ID: "a", Type: models.NodeTypeInitial, Name: "a\x00"}}},
		},
		{
			name:   "NUL in rename",
			method: http.MethodPatch,
			path:   "/workflows/" + created.ID,
			body:   web.UpdateWorkflowRequest{Name: "bad\x00name"},
		},
		{
			name:   "NUL in search",
			method: http.MethodGet,
			path:   "/workflows?search=a%00b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, app, tt.method, tt.path, alice, tt.body)
			assert.Equal(t, http.StatusBadRequest, status, string(body))
			assert.Equal(t, "validation_error", decode[problem](t, body).Type)
		})
	}

	_, body := do(t, app, http.MethodGet, "/workflows/"+created.ID, alice, nil)
	view := decode[models.GraphView](t, body)
	assert.Equal(t, int64(1), view.Version)
	assert.Equal(t, created.Name, view.Name)
}

func TestAPIHandlers_CreateAndGetWorkflow(t *testing.T) {
	app := setupTestApp(t)

	created := createWorkflow(t, app, alice)
	assert.NotEmpty(t, created.ID)
	assert.NotEmpty(t, created.Name)
	assert.Equal(t, alice, created.OwnerID)

	status, body := do(t, app, http.MethodGet, "/workflows/"+created.ID, alice, nil)
	require.Equal(t, http.StatusOK, status)

	view := decode[models.GraphView](t, body)
	assert.Equal(t, created.ID, view.ID)
	assert.Equal(t, int64(1), view.Version)
	require.Len(t, view.Nodes, 1)
	assert.Equal(t, models.NodeTypeInitial, view.Nodes[0].Type)
	assert.Equal(t, models.Position{}, view.Nodes[0].Position)
	assert.NotNil(t, view.Edges)

	status, body = do(t, app, http.MethodGet, "/workflows/"+created.ID, bob, nil)
	assert.Equal(t, http.StatusNotFound, status)

	notFound := decode[problem](t, body)
	assert.Equal(t, "workflow_not_found", notFound.Type)
	assert.Equal(t, "/workflows/"+created.ID, notFound.Instance)
}

func TestAPIHandlers_CreateWorkflow_NotEntitled(t *testing.T) {
	app := setupTestApp(t, services.WithEntitlements(services.NewStaticEntitlements([]string{alice})))

	status, body := do(t, app, http.MethodPost, "/workflows", bob, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "not_entitled", decode[problem](t, body).Type)

	createWorkflow(t, app, alice)
}

func TestAPIHandlers_GetWorkflows(t *testing.T) {
	app := setupTestApp(t)

	for range 12 {
		createWorkflow(t, app, alice)
	}

	createWorkflow(t, app, bob)

	status, body := do(t, app, http.MethodGet, "/workflows?page=2&page_size=5", alice, nil)
	require.Equal(t, http.StatusOK, status)

	page := decode[services.Page[models.Workflow]](t, body)
	assert.Len(t, page.Items, 5)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 5, page.PageSize)
	assert.Equal(t, int64(12), page.TotalCount)
	assert.Equal(t, 3, page.TotalPages)
	assert.True(t, page.HasNextPage)
	assert.True(t, page.HasPreviousPage)

	status, body = do(t, app, http.MethodGet, "/workflows?search=zzz-no-match", alice, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t,
		`{"items":[],"page":1,"page_size":10,"total_count":0,"total_pages":0,"has_next_page":false,"has_previous_page":false}`,
		string(body),
	)

	tests := []struct {
		name  string
		query string
	}{
		{name: "non numeric page", query: "page=abc"},
		{name: "negative page", query: "page=-1"},
		{name: "page size too large", query: "page_size=500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, app, http.MethodGet, "/workflows?"+tt.query, alice, nil)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, "validation_error", decode[problem](t, body).Type)
		})
	}
}

func TestAPIHandlers_UpdateWorkflow(t *testing.T) {
	app := setupTestApp(t)
	created := createWorkflow(t, app, alice)

	status, body := do(t, app, http.MethodPatch, "/workflows/"+created.ID, alice, web.UpdateWorkflowRequest{Name: "Renamed"})
	require.Equal(t, http.StatusOK, status)

	updated := decode[models.Workflow](t, body)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, int64(2), updated.Version)

	status, _ = do(t, app, http.MethodPatch, "/workflows/"+created.ID, alice, web.UpdateWorkflowRequest{Name: ""})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, app, http.MethodPatch, "/workflows/"+created.ID, alice, web.UpdateWorkflowRequest{Name: "   "})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, app, http.MethodPatch, "/workflows/"+created.ID, bob, web.UpdateWorkflowRequest{Name: "Mine now"})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAPIHandlers_SaveGraph(t *testing.T) {
	app := setupTestApp(t)
	created := createWorkflow(t, app, alice)

	_, body := do(t, app, http.MethodGet, "/workflows/"+created.ID, alice, nil)
	loaded := decode[models.GraphView](t, body)

	submission := web.SaveGraphRequest{
		Version: loaded.Version,
		Nodes: []models.SubmittedNode{
			{ID: loaded.Nodes[0].ID, Type: models.NodeTypeManualTrigger, Position: models.Position{X: 5, Y: 5}},
			{ID: "schedule", Type: models.NodeTypeScheduleTrigger, Data: map[string]any{"cron": "*/5 * * * *"}},
		},
		Edges: []models.SubmittedEdge{{ID: "e1", Source: "schedule", Target: loaded.Nodes[0].ID, SourceHandle: "out"}},
	}

	status, body := do(t, app, http.MethodPut, "/workflows/"+created.ID+"/graph", alice, submission)
	require.Equal(t, http.StatusOK, status, string(body))

	saved := decode[models.GraphView](t, body)
	assert.Equal(t, int64(2), saved.Version)
	require.Len(t, saved.Edges, 1)
	assert.Equal(t, "out", saved.Edges[0].SourceHandle)
	assert.Equal(t, "main", saved.Edges[0].TargetHandle)

	status, body = do(t, app, http.MethodPut, "/workflows/"+created.ID+"/graph", alice, submission)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "version_conflict", decode[problem](t, body).Type)

	dangling := web.SaveGraphRequest{
		Version: 2,
		Nodes:   []models.SubmittedNode{{ID: "a", Type: models.NodeTypeInitial}},
		Edges:   []models.SubmittedEdge{{Source: "a", Target: "elsewhere"}},
	}
	status, body = do(t, app, http.MethodPut, "/workflows/"+created.ID+"/graph", alice, dangling)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, decode[problem](t, body).Detail, "elsewhere")

	status, _ = do(t, app, http.MethodPut, "/workflows/"+created.ID+"/graph", alice, web.SaveGraphRequest{})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, app, http.MethodPut, "/workflows/"+created.ID+"/graph", bob, web.SaveGraphRequest{Version: 2})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAPIHandlers_DeleteWorkflow(t *testing.T) {
	app := setupTestApp(t)
	created := createWorkflow(t, app, alice)

	status, _ := do(t, app, http.MethodDelete, "/workflows/"+created.ID, bob, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body := do(t, app, http.MethodDelete, "/workflows/"+created.ID, alice, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, created.ID, decode[models.Workflow](t, body).ID)

	status, _ = do(t, app, http.MethodGet, "/workflows/"+created.ID, alice, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAPIHandlers_NodeTypesAndHealth(t *testing.T) {
	app := setupTestApp(t)

	status, body := do(t, app, http.MethodGet, "/node-types", "", nil)
	require.Equal(t, http.StatusOK, status)

	kinds := decode[[]registry.NodeKind](t, body)
	require.Len(t, kinds, 4)
	assert.Equal(t, models.NodeTypeInitial, kinds[0].Type)
	assert.NotEmpty(t, kinds[0].Schema)

	status, body = do(t, app, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, status)

	health := decode[web.HealthResponse](t, body)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "4 node kinds registered", health.Checkers["registry"])
}
