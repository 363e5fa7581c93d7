package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"studentportal/internal/auth"
	"studentportal/internal/gateway"
	"studentportal/internal/metrics"
	"studentportal/internal/student"
)

const (
	lockedOutMessage  = "You have used all login attempts. Please visit student affairs."
	notFoundMessage   = "No student matches these details."
	unreachableLookup = "The student service is unavailable. Please try again later."
)

var loginMessages = map[string]string{
	"national_id": "National ID must be 14 digits.",
	"seat_number": "Seat number is too long.",
}

type loginRequest struct {
	NationalID string `json:"national_id" binding:"omitempty,numeric,len=14"`
	SeatNumber string `json:"seat_number" binding:"omitempty,max=32"`
}

type loginResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Student   student.Wire    `json:"student"`
	View      profileResponse `json:"profile"`
}

func (h *Handler) login(c *gin.Context) {
	ctx := c.Request.Context()
	client := c.ClientIP()

	if h.Attempts != nil {
		if err := h.Attempts.Check(ctx, client); err != nil {
			if errors.Is(err, auth.ErrTooManyAttempts) {
				metrics.Login("locked_out")
				c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": lockedOutMessage, "attempts_left": 0})
				return
			}
			h.Logger.Warn("login attempt check failed", "client", client, "error", err)
		}
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.Login("invalid")
		bindFailure(c, err, loginMessages)
		return
	}
	req.NationalID = strings.TrimSpace(req.NationalID)
	req.SeatNumber = strings.TrimSpace(req.SeatNumber)
	if req.NationalID == "" && req.SeatNumber == "" {
		metrics.Login("invalid")
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "Please enter your national ID.",
			"fields": gin.H{"national_id": "Please enter your national ID."},
		})
		return
	}

	var rec student.Record
	var err error
	if req.NationalID != "" {
		rec, err = h.Students.Fetch(ctx, req.NationalID)
	} else {
		rec, err = h.Students.Authenticate(ctx, req.SeatNumber)
	}
	if err != nil {
		h.lookupFailed(c, client, err)
		return
	}
	if !rec.Loadable() {
		metrics.Login("error")
		h.Logger.Warn("student record without national id", "seat", rec.SeatNumber)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": unreachableLookup})
		return
	}
	if h.Attempts != nil {
		if err := h.Attempts.Reset(ctx, client); err != nil {
			h.Logger.Warn("login attempt reset failed", "client", client, "error", err)
		}
	}

	tok, err := h.Signer.Issue()
	if err != nil {
		h.fail(c, fmt.Errorf("issue token: %w", err), nil)
		return
	}
	if err := h.Cache.Set(ctx, tok.SessionID, rec); err != nil {
		h.fail(c, fmt.Errorf("store session: %w", err), nil)
		return
	}
	ws := h.Registry.Open(tok.SessionID, rec)
	metrics.Login("success")
	h.Logger.Info("student logged in", "session", tok.SessionID, "seat", rec.SeatNumber)

	c.JSON(http.StatusCreated, loginResponse{
		Token:     tok.Value,
		ExpiresAt: tok.ExpiresAt,
		Student:   student.ToWire(rec),
		View:      renderProfile(ws),
	})
}

// lookupFailed counts a rejected lookup against the client. Backend outages
// are not counted. An unknown student gets the portal's own wording; other
// rejections pass the backend message through.
func (h *Handler) lookupFailed(c *gin.Context, client string, err error) {
	var gerr *gateway.Error
	if !errors.As(err, &gerr) || gerr.Status == 0 || gerr.Status >= 500 {
		metrics.Login("error")
		h.Logger.Warn("student lookup failed", "client", client, "error", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": unreachableLookup})
		return
	}
	metrics.Login("not_found")
	left := auth.MaxLoginAttempts - 1
	if h.Attempts != nil {
		n, ferr := h.Attempts.Fail(c.Request.Context(), client)
		if ferr != nil {
			h.Logger.Warn("login attempt record failed", "client", client, "error", ferr)
		} else {
			left = n
		}
	}
	msg := notFoundMessage
	if gerr.Message != "" && !gerr.NotFound() {
		msg = gerr.Message
	}
	if left == 0 {
		msg = lockedOutMessage
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg, "attempts_left": left})
}

func (h *Handler) resetAttempts(c *gin.Context) {
	if h.Attempts != nil {
		if err := h.Attempts.Reset(c.Request.Context(), c.ClientIP()); err != nil {
			h.fail(c, fmt.Errorf("reset attempts: %w", err), nil)
			return
		}
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) logout(c *gin.Context) {
	h.endSession(c, sessionIDOf(c))
	c.Status(http.StatusNoContent)
}

// endSession forgets everything held for sid. The workspace is closed first
// so an in-flight submission cannot write the cache after it is cleared.
func (h *Handler) endSession(c *gin.Context, sid string) {
	if sid == "" {
		return
	}
	h.Registry.Drop(sid)
	if err := h.Cache.Clear(c.Request.Context(), sid); err != nil {
		h.Logger.Warn("session cache clear failed", "session", sid, "error", err)
	}
}

func sessionIDOf(c *gin.Context) string { return auth.SessionID(c) }
