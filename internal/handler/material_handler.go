package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/skolara/skolara-backend/internal/middleware"
	"github.com/skolara/skolara-backend/internal/model"
	"github.com/skolara/skolara-backend/internal/response"
	"github.com/skolara/skolara-backend/internal/service"
	"github.com/skolara/skolara-backend/internal/validator"
)

// MaterialHandler handles teacher-facing material management.
type MaterialHandler struct {
	materialService   *service.MaterialService
	submissionService *service.SubmissionService
}

// NewMaterialHandler creates a new MaterialHandler.
func NewMaterialHandler(
	materialService *service.MaterialService,
	submissionService *service.SubmissionService,
) *MaterialHandler {
	return &MaterialHandler{
		materialService:   materialService,
		submissionService: submissionService,
	}
}

// List godoc
// GET /api/v1/teacher/materials?page=1&per_page=20
func (h *MaterialHandler) List(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	page, perPage := paginationParams(c)

	materials, pagination, err := h.materialService.ListByTeacher(c.Request.Context(), claims.UserID, page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	if materials == nil {
		materials = []model.Material{}
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"materials": materials}, pagination)
}

// Get godoc
// GET /api/v1/teacher/materials/:material_id
func (h *MaterialHandler) Get(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	materialID, err := uuid.Parse(c.Param("material_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	material, err := h.materialService.GetByID(c.Request.Context(), materialID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrMaterialNotFound)
		return
	}

	if material.TeacherID != claims.UserID {
		response.Fail(c, http.StatusForbidden, response.ErrNotMaterialAuthor)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"material": material})
}

// Create godoc
// POST /api/v1/teacher/materials
func (h *MaterialHandler) Create(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateMaterialRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	material := &model.Material{
		ClassID:          req.ClassID,
		TeacherID:        claims.UserID,
		Title:            req.Title,
		Type:             req.Type,
		QuizID:           req.QuizID,
		TimeLimitMinutes: req.TimeLimitMinutes,
		DueDate:          req.DueDate,
	}

	if err := h.materialService.Create(c.Request.Context(), material); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"material": material})
}

// Update godoc
// PUT /api/v1/teacher/materials/:material_id
func (h *MaterialHandler) Update(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	materialID, err := uuid.Parse(c.Param("material_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.UpdateMaterialRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	existing, err := h.materialService.GetByID(c.Request.Context(), materialID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrMaterialNotFound)
		return
	}

	if req.Title != "" {
		existing.Title = req.Title
	}
	if req.QuizID != nil {
		existing.QuizID = req.QuizID
	}
	if req.TimeLimitMinutes != nil {
		existing.TimeLimitMinutes = *req.TimeLimitMinutes
	}
	if req.DueDate != nil {
		existing.DueDate = req.DueDate
	}

	if err := h.materialService.Update(c.Request.Context(), existing, claims.UserID); err != nil {
		if errors.Is(err, service.ErrNotMaterialAuthor) {
			response.Fail(c, http.StatusForbidden, response.ErrNotMaterialAuthor)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"material": existing})
}

// Delete godoc
// DELETE /api/v1/teacher/materials/:material_id
func (h *MaterialHandler) Delete(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	materialID, err := uuid.Parse(c.Param("material_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.materialService.Delete(c.Request.Context(), materialID, claims.UserID); err != nil {
		switch {
		case errors.Is(err, service.ErrNotMaterialAuthor):
			response.Fail(c, http.StatusForbidden, response.ErrNotMaterialAuthor)
		case errors.Is(err, service.ErrMaterialHasResults):
			response.Fail(c, http.StatusConflict, response.ErrDependencyExists)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// Publish godoc
// POST /api/v1/teacher/materials/:material_id/publish
// Publishes a DRAFT material and warms its Redis cache so student traffic
// bypasses PostgreSQL.
func (h *MaterialHandler) Publish(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	materialID, err := uuid.Parse(c.Param("material_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	err = h.materialService.Publish(c.Request.Context(), materialID, claims.UserID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotMaterialAuthor):
			response.Fail(c, http.StatusForbidden, response.ErrNotMaterialAuthor)
		case errors.Is(err, service.ErrMaterialNotDraft):
			response.Fail(c, http.StatusConflict, response.ErrConflict)
		case errors.Is(err, service.ErrMaterialHasNoQuiz):
			response.Fail(c, http.StatusBadRequest, response.ErrMaterialHasNoQuiz)
		case errors.Is(err, service.ErrNoQuestions):
			response.Fail(c, http.StatusBadRequest, response.ErrNoQuestions)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// Results godoc
// GET /api/v1/teacher/materials/:material_id/results?page=1&per_page=20
// Returns per-student submission results for a material.
func (h *MaterialHandler) Results(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	materialID, err := uuid.Parse(c.Param("material_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	material, err := h.materialService.GetByID(c.Request.Context(), materialID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrMaterialNotFound)
		return
	}
	if material.TeacherID != claims.UserID {
		response.Fail(c, http.StatusForbidden, response.ErrNotMaterialAuthor)
		return
	}

	page, perPage := paginationParams(c)

	results, total, err := h.submissionService.ListResults(c.Request.Context(), materialID, page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	totalPages := (total + perPage - 1) / perPage
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": results}, &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: totalPages,
	})
}

// paginationParams parses ?page and ?per_page with sane bounds.
func paginationParams(c *gin.Context) (page, perPage int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return page, perPage
}
