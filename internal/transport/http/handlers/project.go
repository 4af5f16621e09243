package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/startupadvisor/advisor-api/internal/transport/http/middleware"
	"github.com/startupadvisor/advisor-api/internal/usecase"
)

// ProjectHandler exposes project CRUD and the version log.
type ProjectHandler struct {
	projects *usecase.ProjectService
}

// NewProjectHandler constructs ProjectHandler.
func NewProjectHandler(projects *usecase.ProjectService) *ProjectHandler {
	return &ProjectHandler{projects: projects}
}

// RegisterRoutes binds project routes. Every route requires authentication.
func (h *ProjectHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("", h.create)
	r.GET("", h.list)
	r.GET("/:id", h.get)
	r.PUT("/:id", h.update)
	r.DELETE("/:id", h.delete)
	r.GET("/:id/versions", h.listVersions)
}

var projectErrorCases = []ErrorCase{
	{Err: usecase.ErrProjectNameRequired, Status: http.StatusBadRequest, Message: "project name is required"},
	{Err: usecase.ErrProjectNotFound, Status: http.StatusNotFound, Message: "project not found"},
	{Err: usecase.ErrForbidden, Status: http.StatusForbidden, Message: "project belongs to another user"},
}

// CreateProject godoc
// @Summary Create a project
// @Tags Projects
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param request body ProjectRequest true "Project payload"
// @Success 201 {object} ProjectPayload
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/projects [post]
func (h *ProjectHandler) create(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid authentication"))
		return
	}

	var req ProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid project payload"))
		return
	}

	project, err := h.projects.Create(c.Request.Context(), userID, usecase.ProjectInput{
		Name:         req.Name,
		Description:  req.Description,
		Industry:     req.Industry,
		Stage:        req.Stage,
		PitchSummary: req.PitchSummary,
	})
	if err != nil {
		RespondWithMappedError(c, err, projectErrorCases, http.StatusInternalServerError, "failed to create project")
		return
	}

	c.JSON(http.StatusCreated, newProjectPayload(*project))
}

func (h *ProjectHandler) list(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid authentication"))
		return
	}

	projects, err := h.projects.List(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to list projects"))
		return
	}

	payloads := make([]ProjectPayload, 0, len(projects))
	for _, p := range projects {
		payloads = append(payloads, newProjectPayload(p))
	}

	c.JSON(http.StatusOK, ProjectListResponse{Projects: payloads, Total: len(payloads)})
}

func (h *ProjectHandler) get(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid authentication"))
		return
	}

	project, err := h.projects.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		RespondWithMappedError(c, err, projectErrorCases, http.StatusInternalServerError, "failed to load project")
		return
	}

	c.JSON(http.StatusOK, newProjectPayload(*project))
}

// UpdateProject godoc
// @Summary Update a project
// @Description Each successful update bumps the version and appends a
// snapshot to the version log.
// @Tags Projects
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param id path string true "Project ID"
// @Param request body ProjectRequest true "Project payload"
// @Success 200 {object} ProjectPayload
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/projects/{id} [put]
func (h *ProjectHandler) update(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid authentication"))
		return
	}

	var req ProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid project payload"))
		return
	}

	project, err := h.projects.Update(c.Request.Context(), userID, c.Param("id"), usecase.ProjectInput{
		Name:         req.Name,
		Description:  req.Description,
		Industry:     req.Industry,
		Stage:        req.Stage,
		PitchSummary: req.PitchSummary,
	})
	if err != nil {
		RespondWithMappedError(c, err, projectErrorCases, http.StatusInternalServerError, "failed to update project")
		return
	}

	c.JSON(http.StatusOK, newProjectPayload(*project))
}

func (h *ProjectHandler) delete(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid authentication"))
		return
	}

	if err := h.projects.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		RespondWithMappedError(c, err, projectErrorCases, http.StatusInternalServerError, "failed to delete project")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "project deleted"})
}

func (h *ProjectHandler) listVersions(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid authentication"))
		return
	}

	versions, err := h.projects.ListVersions(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		RespondWithMappedError(c, err, projectErrorCases, http.StatusInternalServerError, "failed to list project versions")
		return
	}

	payloads := make([]ProjectVersionPayload, 0, len(versions))
	for _, v := range versions {
		payloads = append(payloads, newProjectVersionPayload(v))
	}

	c.JSON(http.StatusOK, ProjectVersionListResponse{Versions: payloads, Total: len(payloads)})
}
