package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"studentportal/internal/gateway"
	"studentportal/internal/profile"
	"studentportal/internal/session"
)

const sessionExpired = "Your session has expired. Please log in again."

// fail writes err as JSON. A workspace, when known, is rendered alongside so
// the client can redraw field errors.
func (h *Handler) fail(c *gin.Context, err error, ws *profile.Workspace) {
	sid := sessionIDOf(c)
	status := http.StatusInternalServerError
	body := gin.H{"error": profile.UserMessage(err)}

	var verr *profile.ValidationError
	var gerr *gateway.Error
	switch {
	case errors.As(err, &verr):
		status = http.StatusUnprocessableEntity
		body["fields"] = verr.Fields()
	case profile.IsLockViolation(err):
		status = http.StatusConflict
	case errors.Is(err, profile.ErrSubmitInFlight):
		status = http.StatusTooManyRequests
	case errors.Is(err, profile.ErrNameSlot):
		status = http.StatusBadRequest
		body["error"] = err.Error()
	case session.IsSessionError(err), errors.Is(err, profile.ErrClosed):
		h.endSession(c, sid)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": sessionExpired})
		return
	case errors.As(err, &gerr):
		status = http.StatusBadGateway
	default:
		h.Logger.Error("request failed", "path", c.FullPath(), "session", sid, "error", err)
	}
	if ws != nil {
		body["view"] = ws.View()
	}
	c.AbortWithStatusJSON(status, body)
}

// bindFailure turns a binding error into a 422 with per-field messages.
func bindFailure(c *gin.Context, err error, messages map[string]string) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}
	fields := make(map[string]string, len(verrs))
	first := ""
	for _, fe := range verrs {
		msg, ok := messages[fe.Field()]
		if !ok {
			msg = fe.Field() + " is invalid"
		}
		if _, seen := fields[fe.Field()]; !seen {
			fields[fe.Field()] = msg
		}
		if first == "" {
			first = msg
		}
	}
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": first, "fields": fields})
}
