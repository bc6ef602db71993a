// internal/api/response.go
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"nutrition-log/internal/apperr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

// respondError maps a service error to its status. Unexpected failures are
// logged and answered with a generic message.
func (h *Handler) respondError(c *gin.Context, err error) {
	status := apperr.Status(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"request_id", c.GetString(requestIDKey),
			"error", err,
		)
		RespondError(c, status, apperr.Code(err), errors.New("internal server error"))
		return
	}
	RespondError(c, status, apperr.Code(err), err)
}

// respondBindError answers a request whose body could not be decoded.
func (h *Handler) respondBindError(c *gin.Context, err error) {
	if apperr.IsExpected(err) {
		h.respondError(c, err)
		return
	}
	RespondError(c, http.StatusBadRequest, "invalid_request", err)
}

func parseID(c *gin.Context) (int64, bool) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("invalid id %q", raw))
		return 0, false
	}
	return id, true
}
