package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dukex/workgraph/pkg/models"
	"github.com/dukex/workgraph/pkg/registry"
	"github.com/dukex/workgraph/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	workflowService   *services.Workflow
	publishingService *services.Publishing
	executionService  *services.Execution
	notifier          *services.Notifier
	validator         *validator.Validate
	registry          *registry.Registry
	logger            *slog.Logger
}

func NewAPIHandlers(
	workflowService *services.Workflow,
	publishingService *services.Publishing,
	executionService *services.Execution,
	notifier *services.Notifier,
	validator *validator.Validate,
	registry *registry.Registry,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		workflowService:   workflowService,
		publishingService: publishingService,
		executionService:  executionService,
		notifier:          notifier,
		validator:         validator,
		registry:          registry,
		logger:            logger.With("module", "api"),
	}
}

// Routes mounts every endpoint on app.
func (h *APIHandlers) Routes(app fiber.Router) {
	app.Get("/health", h.HealthCheck)

	r := app.Group("/registry")
	r.Get("/actions", h.GetActions)
	r.Get("/triggers", h.GetTriggerTypes)

	ws := app.Group("/workspaces/:workspaceId")
	ws.Post("/events", h.ReceiveEvent)
	ws.Get("/executions/:executionId", h.GetExecution)

	w := ws.Group("/workflows")
	w.Get("/", h.GetWorkflows)
	w.Post("/", h.CreateWorkflow)
	w.Get("/:id", h.GetWorkflow)
	w.Patch("/:id", h.UpdateWorkflow)
	w.Delete("/:id", h.DeleteWorkflow)
	w.Put("/:id/graph", h.SaveGraph)
	w.Put("/:id/trigger", h.SetTrigger)
	w.Post("/:id/validate", h.ValidateWorkflow)
	w.Post("/:id/publish", h.PublishWorkflow)
	w.Post("/:id/unpublish", h.UnpublishWorkflow)
	w.Post("/:id/test", h.TestWorkflow)
	w.Get("/:id/executions", h.GetWorkflowExecutions)
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	req, err := parseListWorkflowsRequest(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	result, err := h.workflowService.List(c.Context(), *req)
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows":     result.Workflows,
		"total_count":   result.TotalCount,
		"has_next_page": result.HasNextPage,
		"pagination": fiber.Map{
			"limit":  req.Limit,
			"offset": req.Offset,
		},
		"sorting": fiber.Map{
			"sort_by":    req.SortBy,
			"sort_order": req.SortOrder,
		},
	})
}

// parseListWorkflowsRequest parses query parameters for listing workflows.
func parseListWorkflowsRequest(c fiber.Ctx) (*services.ListWorkflowsRequest, error) {
	req := &services.ListWorkflowsRequest{WorkspaceID: c.Params("workspaceId")}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, err
		}

		req.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return nil, err
		}

		req.Offset = offset
	}

	req.Module = models.Module(c.Query("module"))

	if statusStr := c.Query("status"); statusStr != "" {
		status := models.WorkflowStatus(statusStr)
		req.Status = &status
	}

	req.SortBy = c.Query("sort_by")
	req.SortOrder = c.Query("sort_order")

	return req, nil
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	workflow, err := h.workflowService.Get(c.Context(), c.Params("workspaceId"), c.Params("id"))
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	registryCheck, regOk := h.registry.HealthCheck()
	repositoryCheck, repOk := h.workflowService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Workgraph API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if regOk && repOk {
		status = "healthy"
		message = "Workgraph API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"registry":   registryCheck,
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	workflow := &models.Workflow{
		WorkspaceID: c.Params("workspaceId"),
		Name:        req.Name,
		Description: req.Description,
		Module:      req.Module,
		Graph: models.Graph{
			Nodes:    req.Nodes,
			Edges:    req.Edges,
			Viewport: req.Viewport,
		},
	}

	created, err := h.workflowService.Create(c.Context(), workflow)
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.workflowService.UpdateDetails(c.Context(), c.Params("workspaceId"), c.Params("id"), services.UpdateDetailsRequest{
		Name:        req.Name,
		Description: req.Description,
		Module:      req.Module,
		Version:     req.Version,
	})
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) SaveGraph(c fiber.Ctx) error {
	var req SaveGraphRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.workflowService.SaveGraph(c.Context(), c.Params("workspaceId"), c.Params("id"), services.SaveGraphRequest{
		Graph: models.Graph{
			Nodes:    req.Nodes,
			Edges:    req.Edges,
			Viewport: req.Viewport,
		},
		Version: req.Version,
	})
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) SetTrigger(c fiber.Ctx) error {
	var req SetTriggerRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.workflowService.SetTriggerType(c.Context(), c.Params("workspaceId"), c.Params("id"), services.SetTriggerTypeRequest{
		TriggerType:   req.TriggerType,
		TriggerConfig: req.TriggerConfig,
		Version:       req.Version,
	})
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	err := h.workflowService.Delete(c.Context(), c.Params("workspaceId"), c.Params("id"))
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ValidateWorkflow(c fiber.Ctx) error {
	result, err := h.publishingService.Validate(c.Context(), c.Params("workspaceId"), c.Params("id"))
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) PublishWorkflow(c fiber.Ctx) error {
	published, err := h.publishingService.Publish(c.Context(), c.Params("workspaceId"), c.Params("id"))
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(published)
}

func (h *APIHandlers) UnpublishWorkflow(c fiber.Ctx) error {
	draft, err := h.publishingService.Unpublish(c.Context(), c.Params("workspaceId"), c.Params("id"))
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(draft)
}

// TestWorkflow runs a dry run and returns its record.
func (h *APIHandlers) TestWorkflow(c fiber.Ctx) error {
	var req TestRunRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	record, err := h.executionService.TestRun(c.Context(), c.Params("workspaceId"), c.Params("id"), services.TestRunRequest{
		RecordID:    req.RecordID,
		Record:      req.Record,
		TriggerData: req.TriggerData,
	})
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(record)
}

func (h *APIHandlers) GetWorkflowExecutions(c fiber.Ctx) error {
	limit := 0

	if limitStr := c.Query("limit"); limitStr != "" {
		var err error

		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			return badRequest(c, "Invalid query parameters: "+err.Error())
		}
	}

	records, err := h.executionService.ListExecutions(c.Context(), c.Params("workspaceId"), c.Params("id"), limit)
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"executions": records})
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	record, err := h.executionService.GetExecution(c.Context(), c.Params("workspaceId"), c.Params("executionId"))
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(record)
}

// ReceiveEvent hands a trigger event to the workers over the event bus. Without a bus
// the matching workflows run in process and their records are returned.
func (h *APIHandlers) ReceiveEvent(c fiber.Ctx) error {
	var req TriggerEventRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	ev := &models.TriggerEvent{
		WorkspaceID: c.Params("workspaceId"),
		WorkflowID:  req.WorkflowID,
		Module:      req.Module,
		TriggerType: req.TriggerType,
		TriggerData: req.TriggerData,
		Record:      req.Record,
		OccurredAt:  time.Now().UTC(),
	}

	err := h.notifier.PublishTrigger(c.Context(), ev)
	if err == nil {
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"event_id": ev.ID})
	}

	if !errors.Is(err, services.ErrNoEventBus) {
		return h.handleServiceError(c, err)
	}

	records, err := h.executionService.HandleTrigger(c.Context(), ev)
	if err != nil && records == nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"executions": records})
}

func (h *APIHandlers) GetActions(c fiber.Ctx) error {
	factories := h.registry.GetAvailableActions()

	actions := make([]ActionResponse, 0, len(factories))
	for _, f := range factories {
		actions = append(actions, TransformActionResponse(f))
	}

	return c.JSON(fiber.Map{"actions": actions})
}

func (h *APIHandlers) GetTriggerTypes(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"triggers": h.registry.GetAvailableTriggerTypes()})
}
