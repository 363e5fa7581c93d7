package api

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"studentportal/internal/photo"
	"studentportal/internal/profile"
	"studentportal/internal/student"
)

type profileResponse struct {
	Student student.Wire `json:"student"`
	profile.View
}

func renderProfile(ws *profile.Workspace) profileResponse {
	v := ws.View()
	return profileResponse{Student: student.ToWire(v.Record), View: v}
}

type nameRequest struct {
	Parts []string `json:"parts" binding:"required,min=1,max=3,dive,max=64"`
}

var nameMessages = map[string]string{
	"parts": "Enter between one and three English name parts.",
}

// loadProfile is the page load: the cached record is refreshed from the
// backend. A session that cannot be refreshed is ended.
func (h *Handler) loadProfile(c *gin.Context) {
	ctx := c.Request.Context()
	sid := sessionIDOf(c)
	cached, err := h.Cache.Get(ctx, sid)
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	fresh, err := h.Students.Fetch(ctx, cached.Identifier(h.Identifier))
	if err != nil {
		h.Logger.Warn("profile refresh failed", "session", sid, "error", err)
		h.endSession(c, sid)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": sessionExpired})
		return
	}
	if err := h.Cache.Set(ctx, sid, fresh); err != nil {
		h.Logger.Error("session cache write failed", "session", sid, "error", err)
	}
	ws := h.Registry.Open(sid, fresh)
	c.JSON(http.StatusOK, renderProfile(ws))
}

// workspace returns the open workspace of the caller, reopening it from the
// session cache after a restart or sweep.
func (h *Handler) workspace(c *gin.Context) (*profile.Workspace, bool) {
	sid := sessionIDOf(c)
	if ws, ok := h.Registry.Get(sid); ok {
		return ws, true
	}
	rec, err := h.Cache.Get(c.Request.Context(), sid)
	if err != nil {
		h.fail(c, err, nil)
		return nil, false
	}
	return h.Registry.Open(sid, rec), true
}

func (h *Handler) selectPhoto(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	fh, err := c.FormFile("photo")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "photo field required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		h.fail(c, fmt.Errorf("open upload: %w", err), ws)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, photo.MaxSize+1))
	if err != nil {
		h.fail(c, fmt.Errorf("read upload: %w", err), ws)
		return
	}
	file := &photo.File{
		Name:        fh.Filename,
		ContentType: photo.DeclaredType(fh.Header.Get("Content-Type"), data),
		Data:        data,
	}
	if err := ws.SelectPhoto(file); err != nil {
		h.fail(c, err, ws)
		return
	}
	c.JSON(http.StatusOK, renderProfile(ws))
}

func (h *Handler) clearPhoto(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	if err := ws.ClearPhoto(); err != nil {
		h.fail(c, err, ws)
		return
	}
	c.JSON(http.StatusOK, renderProfile(ws))
}

func (h *Handler) setName(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailure(c, err, nameMessages)
		return
	}
	if err := ws.SetNameParts(req.Parts); err != nil {
		h.fail(c, err, ws)
		return
	}
	c.JSON(http.StatusOK, renderProfile(ws))
}

func (h *Handler) submit(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	if _, err := h.Submitter.Submit(c.Request.Context(), sessionIDOf(c), ws); err != nil {
		h.fail(c, err, ws)
		return
	}
	c.JSON(http.StatusOK, renderProfile(ws))
}
