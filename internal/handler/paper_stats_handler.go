package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/exstem-grading/internal/response"
	"github.com/stemsi/exstem-grading/internal/service"
)

// PaperStatsHandler serves the leaderboard read model and the admin
// rebuild endpoint.
type PaperStatsHandler struct {
	leaderboard *service.LeaderboardService
	insights    *service.StudentInsightService
	pipeline    *service.PostClosePipeline
}

// NewPaperStatsHandler creates a new PaperStatsHandler.
func NewPaperStatsHandler(leaderboard *service.LeaderboardService, insights *service.StudentInsightService, pipeline *service.PostClosePipeline) *PaperStatsHandler {
	return &PaperStatsHandler{
		leaderboard: leaderboard,
		insights:    insights,
		pipeline:    pipeline,
	}
}

// GetStats godoc
// GET /api/v1/paper-stats/:paper_id
// Returns the full leaderboard view, or the structured "not ready"
// payload when stats have not been built yet.
func (h *PaperStatsHandler) GetStats(c *gin.Context) {
	paperID, err := uuid.Parse(c.Param("paper_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	view, err := h.leaderboard.Get(c.Request.Context(), paperID)
	if err != nil {
		if errors.Is(err, service.ErrPaperNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrPaperNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, view)
}

// GetOverview godoc
// GET /api/v1/paper-stats/:paper_id/overview?institute_id=...
// Returns the aggregate score overview for a paper, optionally scoped
// to one institute.
func (h *PaperStatsHandler) GetOverview(c *gin.Context) {
	paperID, err := uuid.Parse(c.Param("paper_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var instituteID *uuid.UUID
	if raw := c.Query("institute_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}
		instituteID = &id
	}

	overview, err := h.insights.Overview(c.Request.Context(), paperID, instituteID)
	if err != nil {
		if errors.Is(err, service.ErrPaperNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrPaperNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"overview": overview})
}

// Rebuild godoc
// POST /api/v1/admin/paper-stats/:paper_id/rebuild
// Re-runs the full post-close pipeline (stats build + rank merge) for a
// paper. Safe to repeat: both stages are idempotent.
func (h *PaperStatsHandler) Rebuild(c *gin.Context) {
	paperID, err := uuid.Parse(c.Param("paper_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.pipeline.Run(c.Request.Context(), paperID); err != nil {
		if errors.Is(err, service.ErrPaperNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrPaperNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrAggregationFailed)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"paper_id": paperID, "rebuilt": true})
}
