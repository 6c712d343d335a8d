package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/exstem-grading/internal/response"
	"github.com/stemsi/exstem-grading/internal/scheduler"
)

// SchedulerHandler exposes the paper scheduler's admin controls.
type SchedulerHandler struct {
	sched *scheduler.Scheduler
}

// NewSchedulerHandler creates a new SchedulerHandler.
func NewSchedulerHandler(sched *scheduler.Scheduler) *SchedulerHandler {
	return &SchedulerHandler{sched: sched}
}

// Status godoc
// GET /api/v1/admin/scheduler
// Reports whether the scheduler is running and lists pending actions.
func (h *SchedulerHandler) Status(c *gin.Context) {
	jobs := h.sched.Jobs()
	if jobs == nil {
		jobs = []scheduler.ScheduledJob{}
	}
	response.Success(c, http.StatusOK, gin.H{
		"running":      h.sched.Running(),
		"pending_jobs": jobs,
	})
}

// Trigger godoc
// POST /api/v1/admin/scheduler/trigger/:paper_id
// Runs post-close processing for a paper immediately, bypassing the
// window schedule.
func (h *SchedulerHandler) Trigger(c *gin.Context) {
	paperID, err := uuid.Parse(c.Param("paper_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.sched.Trigger(c.Request.Context(), paperID); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrAggregationFailed)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"paper_id": paperID, "triggered": true})
}

// Cancel godoc
// DELETE /api/v1/admin/scheduler/jobs/:schedule_key
// Removes one pending action. Actions currently firing cannot be
// cancelled.
func (h *SchedulerHandler) Cancel(c *gin.Context) {
	key := c.Param("schedule_key")
	if !h.sched.Cancel(key) {
		response.Fail(c, http.StatusNotFound, response.ErrScheduleNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"schedule_key": key, "cancelled": true})
}

// Restart godoc
// POST /api/v1/admin/scheduler/restart
// Stops the scheduler, clears all pending actions and rescans from the
// availability windows.
func (h *SchedulerHandler) Restart(c *gin.Context) {
	h.sched.Stop()
	if err := h.sched.Start(); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"restarted": true})
}
