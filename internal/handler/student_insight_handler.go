package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/exstem-grading/internal/response"
	"github.com/stemsi/exstem-grading/internal/service"
)

// StudentInsightHandler serves per-student performance views.
type StudentInsightHandler struct {
	insights *service.StudentInsightService
}

// NewStudentInsightHandler creates a new StudentInsightHandler.
func NewStudentInsightHandler(insights *service.StudentInsightService) *StudentInsightHandler {
	return &StudentInsightHandler{insights: insights}
}

// PaperScores godoc
// GET /api/v1/students/:student_id/paper-scores
// Lists the student's percentage score per paper next to the field average.
func (h *StudentInsightHandler) PaperScores(c *gin.Context) {
	studentID, err := uuid.Parse(c.Param("student_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	rows, err := h.insights.PaperScores(c.Request.Context(), studentID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"paper_scores": rows})
}

// IncorrectSummary godoc
// GET /api/v1/students/:student_id/incorrect-summary
// Breaks the student's incorrect answers down by question category.
func (h *StudentInsightHandler) IncorrectSummary(c *gin.Context) {
	studentID, err := uuid.Parse(c.Param("student_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	summary, err := h.insights.IncorrectSummary(c.Request.Context(), studentID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"summary": summary})
}
