package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/exstem-grading/internal/model"
	"github.com/stemsi/exstem-grading/internal/response"
	"github.com/stemsi/exstem-grading/internal/service"
	"github.com/stemsi/exstem-grading/internal/validator"
)

// SubmissionHandler handles submission ingress and job status polling.
type SubmissionHandler struct {
	jobService *service.JobService
}

// NewSubmissionHandler creates a new SubmissionHandler.
func NewSubmissionHandler(jobService *service.JobService) *SubmissionHandler {
	return &SubmissionHandler{jobService: jobService}
}

// Submit godoc
// POST /api/v1/submissions
// Accepts a submission for asynchronous grading and returns the job id
// to poll. Always 202 on success: grading happens in the worker.
func (h *SubmissionHandler) Submit(c *gin.Context) {
	var req model.CreateSubmissionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	job, err := h.jobService.Submit(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrQueueUnavailable) {
			response.Fail(c, http.StatusServiceUnavailable, response.ErrQueueUnavailable)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Accepted(c, gin.H{
		"job_id":     job.JobID,
		"status":     job.Status,
		"status_url": "/api/v1/submissions/jobs/" + job.JobID.String(),
	})
}

// JobStatus godoc
// GET /api/v1/submissions/jobs/:job_id
// Returns the current lifecycle snapshot of a grading job, including
// the result once completed or the error once failed.
func (h *SubmissionHandler) JobStatus(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("job_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	job, err := h.jobService.Status(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrJobNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"job": job})
}
