// Package web provides HTTP handlers and REST API endpoints for workflow management.
package web

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dukex/nodeflow/pkg/registry"
	"github.com/dukex/nodeflow/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	workflowService *services.Workflow
	validator       *validator.Validate
	registry        *registry.Registry
	logger          *slog.Logger
	checks          map[string]func(fiber.Ctx) (string, bool)
}

func NewAPIHandlers(
	logger *slog.Logger,
	workflowService *services.Workflow,
	validator *validator.Validate,
	registry *registry.Registry,
) *APIHandlers {
	return &APIHandlers{
		workflowService: workflowService,
		validator:       validator,
		registry:        registry,
		logger:          logger.With("module", "web"),
		checks:          make(map[string]func(fiber.Ctx) (string, bool)),
	}
}

// AddHealthCheck reports an extra dependency, such as the graph cache, on /health.
func (h *APIHandlers) AddHealthCheck(name string, check func(fiber.Ctx) (string, bool)) {
	h.checks[name] = check
}

// Register mounts the workflow routes on router. Every route requires a principal.
func (h *APIHandlers) Register(router fiber.Router, principalHeader string) {
	requirePrincipal := RequirePrincipal(principalHeader)

	w := router.Group("/workflows", requirePrincipal)
	w.Get("/", h.GetWorkflows)
	w.Post("/", h.CreateWorkflow)
	w.Get("/:id", h.GetWorkflow)
	w.Patch("/:id", h.UpdateWorkflow)
	w.Put("/:id/graph", h.SaveGraph)
	w.Delete("/:id", h.DeleteWorkflow)

	router.Get("/node-types", h.GetNodeTypes)
	router.Get("/health", h.HealthCheck)
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	req, err := parseListWorkflowsRequest(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	page, err := h.workflowService.ListWorkflows(c.Context(), Principal(c), req)
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(page)
}

// parseListWorkflowsRequest reads page, page_size and search. Missing values stay zero.
func parseListWorkflowsRequest(c fiber.Ctx) (services.ListWorkflowsRequest, error) {
	req := services.ListWorkflowsRequest{Search: c.Query("search")}

	if pageStr := c.Query("page"); pageStr != "" {
		page, err := strconv.Atoi(pageStr)
		if err != nil {
			return req, err
		}

		req.Page = page
	}

	if pageSizeStr := c.Query("page_size"); pageSizeStr != "" {
		pageSize, err := strconv.Atoi(pageSizeStr)
		if err != nil {
			return req, err
		}

		req.PageSize = pageSize
	}

	return req, nil
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	created, err := h.workflowService.Create(c.Context(), Principal(c))
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	view, err := h.workflowService.GetOne(c.Context(), Principal(c), c.Params("id"))
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(view)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.workflowService.UpdateName(c.Context(), Principal(c), c.Params("id"), req.Name)
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) SaveGraph(c fiber.Ctx) error {
	var req SaveGraphRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	view, err := h.workflowService.SaveGraph(c.Context(), Principal(c), c.Params("id"), req)
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(view)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	deleted, err := h.workflowService.Remove(c.Context(), Principal(c), c.Params("id"))
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(deleted)
}

func (h *APIHandlers) GetNodeTypes(c fiber.Ctx) error {
	return c.JSON(h.workflowService.NodeKinds())
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	registryCheck, regOk := h.registry.HealthCheck()
	repositoryCheck, repOk := h.workflowService.HealthCheck(c.Context())

	checkers := map[string]string{
		"registry":   registryCheck,
		"repository": repositoryCheck,
	}

	healthy := regOk && repOk

	for name, check := range h.checks {
		message, ok := check(c)
		checkers[name] = message
		healthy = healthy && ok
	}

	response := HealthResponse{
		Status:    "unhealthy",
		Message:   "nodeflow API is unhealthy",
		Checkers:  checkers,
		Timestamp: time.Now().UTC(),
	}
	httpStatus := http.StatusInternalServerError

	if healthy {
		response.Status = "healthy"
		response.Message = "nodeflow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(response)
}
