package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/skolara/skolara-backend/internal/middleware"
	"github.com/skolara/skolara-backend/internal/model"
	"github.com/skolara/skolara-backend/internal/response"
	"github.com/skolara/skolara-backend/internal/service"
	"github.com/skolara/skolara-backend/internal/validator"
)

// StudentHandler handles student-facing endpoints (material catalog,
// quiz taking, draft progress, submission).
type StudentHandler struct {
	materialService   *service.MaterialService
	quizService       *service.QuizService
	progressService   *service.ProgressService
	submissionService *service.SubmissionService
}

// NewStudentHandler creates a new StudentHandler.
func NewStudentHandler(
	materialService *service.MaterialService,
	quizService *service.QuizService,
	progressService *service.ProgressService,
	submissionService *service.SubmissionService,
) *StudentHandler {
	return &StudentHandler{
		materialService:   materialService,
		quizService:       quizService,
		progressService:   progressService,
		submissionService: submissionService,
	}
}

// ListMaterials godoc
// GET /api/v1/student/materials
// Returns published materials for the student's class.
func (h *StudentHandler) ListMaterials(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	materials, err := h.materialService.ListForStudent(c.Request.Context(), claims.ClassID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	if materials == nil {
		materials = []model.Material{}
	}

	response.Success(c, http.StatusOK, gin.H{"materials": materials})
}

// GetQuiz godoc
// GET /api/v1/student/materials/:material_id/quiz
// Returns the student-facing quiz payload (no answer keys) from Redis.
// The material must be PUBLISHED and belong to the student's class.
func (h *StudentHandler) GetQuiz(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	material, ok := h.resolveMaterial(c, claims.ClassID)
	if !ok {
		return
	}

	// Past the due date the quiz can no longer be opened. Attempts already
	// in flight keep saving and submitting until their own timer runs out.
	if material.DueDate != nil && time.Now().After(*material.DueDate) {
		response.Fail(c, http.StatusForbidden, response.ErrPastDueDate)
		return
	}

	payload, err := h.quizService.GetPayloadForStudent(c.Request.Context(), *material.QuizID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrQuizNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"quiz":       payload,
		"time_limit": material.TimeLimitMinutes,
	})
}

// GetProgress godoc
// GET /api/v1/student/materials/:material_id/quiz-progress
// Returns the student's draft snapshot, or the already-submitted marker.
func (h *StudentHandler) GetProgress(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	material, ok := h.resolveMaterial(c, claims.ClassID)
	if !ok {
		return
	}

	status, err := h.progressService.GetProgress(c.Request.Context(), claims.UserID, material.ID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, status)
}

// SaveProgress godoc
// POST /api/v1/student/materials/:material_id/quiz-progress
// Saves a draft snapshot. Also serves the unload beacon flush, which sends
// the same payload with the token in the query string.
func (h *StudentHandler) SaveProgress(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	material, ok := h.resolveMaterial(c, claims.ClassID)
	if !ok {
		return
	}

	var req model.SaveDraftRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	// SECURITY: the body's student_id must match the token's subject.
	if req.StudentID != claims.UserID {
		response.Fail(c, http.StatusForbidden, response.ErrStudentMismatch)
		return
	}
	if req.MaterialID != material.ID {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	if err := h.progressService.SaveDraft(c.Request.Context(), &req); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// DeleteProgress godoc
// DELETE /api/v1/student/materials/:material_id/quiz-progress
// Discards the student's draft for this material.
func (h *StudentHandler) DeleteProgress(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	material, ok := h.resolveMaterial(c, claims.ClassID)
	if !ok {
		return
	}

	if err := h.progressService.DeleteDraft(c.Request.Context(), claims.UserID, material.ID); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// SubmitQuiz godoc
// POST /api/v1/student/materials/:material_id/submit-quiz
// Terminal submission. Exactly one submission wins per (student, material);
// a duplicate returns 409 with the id of the submission that won.
func (h *StudentHandler) SubmitQuiz(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	material, ok := h.resolveMaterial(c, claims.ClassID)
	if !ok {
		return
	}

	var req model.SubmitQuizRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	// SECURITY: the body's student_id must match the token's subject.
	if req.StudentID != claims.UserID {
		response.Fail(c, http.StatusForbidden, response.ErrStudentMismatch)
		return
	}
	if req.MaterialID != material.ID {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	sub, err := h.submissionService.Submit(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrAlreadySubmitted) {
			// sub carries the submission that won the race.
			response.FailWithData(c, http.StatusConflict, response.ErrAlreadySubmitted, gin.H{
				"submission": gin.H{"id": sub.ID},
			})
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"submission": gin.H{
			"id":           sub.ID,
			"status":       sub.Status,
			"submitted_at": sub.SubmittedAt,
		},
	})
}

// GetResult godoc
// GET /api/v1/student/materials/:material_id/result
// Returns the student's own submission (with score once graded).
func (h *StudentHandler) GetResult(c *gin.Context) {
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

	sub, err := h.submissionService.GetResult(c.Request.Context(), claims.UserID, materialID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"submission": sub})
}

// resolveMaterial parses :material_id, loads the material and checks it is
// a PUBLISHED quiz material for the student's class. Writes the error
// response itself and returns ok=false on failure.
func (h *StudentHandler) resolveMaterial(c *gin.Context, classID int) (*model.Material, bool) {
	materialID, err := uuid.Parse(c.Param("material_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil, false
	}

	material, err := h.materialService.GetByID(c.Request.Context(), materialID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrMaterialNotFound)
		return nil, false
	}

	if material.ClassID != classID {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		return nil, false
	}
	if material.Status != model.MaterialStatusPublished {
		response.Fail(c, http.StatusForbidden, response.ErrMaterialNotPublished)
		return nil, false
	}
	if material.Type != model.MaterialTypeQuiz || material.QuizID == nil {
		response.Fail(c, http.StatusBadRequest, response.ErrMaterialHasNoQuiz)
		return nil, false
	}

	return material, true
}
