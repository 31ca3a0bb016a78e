package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/openlingo/openlingo-backend/internal/batch"
	"github.com/openlingo/openlingo-backend/internal/domain/content"
	"github.com/openlingo/openlingo-backend/internal/http/response"
	"github.com/openlingo/openlingo-backend/internal/ingestion/pipeline"
)

type BatchHandler struct {
	coord *batch.Coordinator
}

func NewBatchHandler(coord *batch.Coordinator) *BatchHandler {
	return &BatchHandler{coord: coord}
}

type submitBatchRequest struct {
	Sources []SubmitRequest  `json:"sources"`
	Stages  []string         `json:"stages"`
	Options pipeline.Options `json:"options"`
}

// POST /api/batches
func (h *BatchHandler) SubmitBatch(c *gin.Context) {
	var req submitBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	sources := make([]content.RawSource, 0, len(req.Sources))
	for _, s := range req.Sources {
		sources = append(sources, s.source())
	}
	batchJob, members, err := h.coord.SubmitBatch(c.Request.Context(), sources, req.Stages, req.Options)
	if err != nil {
		respondErr(c, "submit_batch_failed", err)
		return
	}
	memberIDs := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		memberIDs = append(memberIDs, m.ID)
	}
	response.RespondCreated(c, gin.H{"batch_id": batchJob.ID, "job_ids": memberIDs})
}

// GET /api/batches/:id
func (h *BatchHandler) GetBatch(c *gin.Context) {
	batchID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_batch_id", err)
		return
	}
	st, err := h.coord.BatchStatus(c.Request.Context(), batchID)
	if err != nil {
		respondErr(c, "get_batch_failed", err)
		return
	}
	if st == nil {
		response.RespondError(c, http.StatusNotFound, "batch_not_found", errf("batch %s not found", batchID))
		return
	}
	response.RespondOK(c, st)
}

type qualityCheckRequest struct {
	AutoFix bool `json:"auto_fix"`
}

// POST /api/batches/:id/quality-check
func (h *BatchHandler) QualityCheck(c *gin.Context) {
	batchID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_batch_id", err)
		return
	}
	var req qualityCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	report, err := h.coord.RunChecks(c.Request.Context(), batchID, req.AutoFix)
	if err != nil {
		respondErr(c, "quality_check_failed", err)
		return
	}
	response.RespondOK(c, report)
}
