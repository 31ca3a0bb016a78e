package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/openlingo/openlingo-backend/internal/http/response"
	"github.com/openlingo/openlingo-backend/internal/platform/apierr"
)

// respondErr maps a pipeline error onto the wire: taxonomy kind decides the
// status, the apierr code wins over the handler fallback.
func respondErr(c *gin.Context, fallbackCode string, err error) {
	code := fallbackCode
	var ae *apierr.Error
	if errors.As(err, &ae) && ae.Code != "" {
		code = ae.Code
	}
	response.RespondKindError(c, apierr.HTTPStatus(err), code, string(apierr.KindOf(err)), err)
}
