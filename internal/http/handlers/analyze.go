package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/openlingo/openlingo-backend/internal/domain/content"
	"github.com/openlingo/openlingo-backend/internal/http/response"
	"github.com/openlingo/openlingo-backend/internal/ingestion/analyzer"
	"github.com/openlingo/openlingo-backend/internal/ingestion/extractor"
)

// AnalyzeHandler serves synchronous previews: no job row, no queue, the
// analysis comes back in the response.
type AnalyzeHandler struct {
	extractor *extractor.Extractor
	analyzer  *analyzer.Analyzer
}

func NewAnalyzeHandler(ex *extractor.Extractor, an *analyzer.Analyzer) *AnalyzeHandler {
	return &AnalyzeHandler{extractor: ex, analyzer: an}
}

type analyzeRequest struct {
	Content string `json:"content"`
	Kind    string `json:"kind"`
}

// POST /api/analyze
func (h *AnalyzeHandler) Analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	kind := strings.ToLower(strings.TrimSpace(req.Kind))
	if kind == "" {
		kind = content.SourceText
	}
	ex, err := h.extractor.Extract(c.Request.Context(), content.RawSource{Kind: kind, Payload: req.Content})
	if err != nil {
		respondErr(c, "extract_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"analysis": h.analyzer.Analyze(ex.Text), "title": ex.Title})
}
