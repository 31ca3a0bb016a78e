package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/openlingo/openlingo-backend/internal/domain/content"
	"github.com/openlingo/openlingo-backend/internal/http/response"
	"github.com/openlingo/openlingo-backend/internal/ingestion/pipeline"
	"github.com/openlingo/openlingo-backend/internal/services/imports"
)

type ImportHandler struct {
	imports *imports.Service
}

func NewImportHandler(svc *imports.Service) *ImportHandler {
	return &ImportHandler{imports: svc}
}

// SubmitRequest is the single-import submission body. Content carries inline
// text, an uploaded file reference, or a URL depending on Kind.
type SubmitRequest struct {
	Content        string           `json:"content"`
	Kind           string           `json:"kind"`
	SourceLanguage string           `json:"source_language"`
	TargetLanguage string           `json:"target_language"`
	Title          string           `json:"title"`
	Stages         []string         `json:"stages"`
	Options        pipeline.Options `json:"options"`
}

func (r *SubmitRequest) source() content.RawSource {
	kind := strings.ToLower(strings.TrimSpace(r.Kind))
	if kind == "" {
		kind = content.SourceText
	}
	return content.RawSource{
		Kind:           kind,
		Payload:        r.Content,
		SourceLanguage: strings.TrimSpace(r.SourceLanguage),
		TargetLanguage: strings.TrimSpace(r.TargetLanguage),
		Title:          strings.TrimSpace(r.Title),
	}
}

// POST /api/imports
func (h *ImportHandler) SubmitImport(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	job, err := h.imports.Submit(c.Request.Context(), req.source(), req.Stages, req.Options)
	if err != nil {
		respondErr(c, "submit_failed", err)
		return
	}
	response.RespondCreated(c, gin.H{"job_id": job.ID})
}

// errBody is a convenience for handlers that need a plain error without an
// apierr chain.
func errf(format string, args ...any) error { return fmt.Errorf(format, args...) }
