package handler

import (
	apperr "meetinclick/backend/pkg/errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

var errInvalidBody = apperr.InvalidArg("INVALID_BODY", "malformed request body")

func httpStatus(code apperr.Code) int {
	switch code {
	case apperr.CodeInvalidArgument:
		return http.StatusBadRequest
	case apperr.CodeUnauthenticated:
		return http.StatusUnauthorized
	case apperr.CodePermissionDenied:
		return http.StatusForbidden
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeAlreadyExists, apperr.CodeFailedPrecondition:
		return http.StatusConflict
	case apperr.CodeResourceExhausted:
		return http.StatusUnprocessableEntity
	case apperr.CodeUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// fail пише помилку у форматі {code, reason, message} з локалізованим текстом.
func (h *Handler) fail(c *gin.Context, err error) {
	appErr, ok := apperr.As(err)
	if !ok {
		h.log.WithError(err).WithField("path", c.FullPath()).Error("unexpected error")
		appErr = apperr.New(apperr.CodeInternal, "INTERNAL", "internal error")
	}
	lang := h.Localizer.Match(c.GetHeader("Accept-Language"))
	c.AbortWithStatusJSON(httpStatus(appErr.Code), gin.H{
		"code":    appErr.Code,
		"reason":  appErr.Reason,
		"message": h.Localizer.MessageFor(lang, appErr),
	})
}

// bind decodes the JSON body or answers 400.
func (h *Handler) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.fail(c, errInvalidBody.WithDetail("%v", err))
		return false
	}
	return true
}
