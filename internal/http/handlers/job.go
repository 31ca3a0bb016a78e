package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	domain "github.com/openlingo/openlingo-backend/internal/domain/jobs"
	"github.com/openlingo/openlingo-backend/internal/http/response"
	"github.com/openlingo/openlingo-backend/internal/services/imports"
)

type JobHandler struct {
	imports *imports.Service
}

func NewJobHandler(svc *imports.Service) *JobHandler {
	return &JobHandler{imports: svc}
}

// jobView is the poll payload: public stage vocabulary, monotonic progress,
// the stored result when present, and the error detail for failed jobs.
func jobView(j *domain.ImportJob) gin.H {
	out := gin.H{
		"job_id":   j.ID,
		"stage":    j.PublicStage(),
		"status":   j.Status,
		"progress": j.Progress,
	}
	if j.Message != "" {
		out["message"] = j.Message
	}
	if len(j.Result) > 0 {
		out["result"] = json.RawMessage(j.Result)
	}
	if j.Status == domain.StatusFailed {
		out["error"] = gin.H{"kind": j.ErrorKind, "message": j.Error}
	}
	return out
}

// GET /api/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	job, err := h.imports.Get(c.Request.Context(), jobID)
	if err != nil {
		respondErr(c, "get_job_failed", err)
		return
	}
	if job == nil {
		response.RespondError(c, http.StatusNotFound, "job_not_found", errf("job %s not found", jobID))
		return
	}
	response.RespondOK(c, jobView(job))
}

// POST /api/jobs/:id/cancel
func (h *JobHandler) CancelJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	ok, err := h.imports.Cancel(c.Request.Context(), jobID)
	if err != nil {
		respondErr(c, "cancel_job_failed", err)
		return
	}
	if !ok {
		response.RespondError(c, http.StatusConflict, "not_cancelable", errf("job %s is already terminal", jobID))
		return
	}
	job, err := h.imports.Get(c.Request.Context(), jobID)
	if err != nil || job == nil {
		response.RespondOK(c, gin.H{"job_id": jobID, "status": domain.StatusCanceled})
		return
	}
	response.RespondOK(c, jobView(job))
}

// POST /api/jobs/:id/restart
func (h *JobHandler) RestartJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	ok, err := h.imports.Restart(c.Request.Context(), jobID)
	if err != nil {
		respondErr(c, "restart_job_failed", err)
		return
	}
	if !ok {
		response.RespondError(c, http.StatusNotFound, "job_not_found", errf("job %s not found", jobID))
		return
	}
	job, _ := h.imports.Get(c.Request.Context(), jobID)
	if job == nil {
		response.RespondOK(c, gin.H{"job_id": jobID, "status": domain.StatusQueued})
		return
	}
	response.RespondOK(c, jobView(job))
}
