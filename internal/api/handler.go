// Package api exposes the student portal over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"studentportal/internal/auth"
	"studentportal/internal/profile"
	"studentportal/internal/session"
	"studentportal/internal/student"
)

// Students is the read side of the remote student service.
type Students interface {
	Authenticate(ctx context.Context, seatNumber string) (student.Record, error)
	Fetch(ctx context.Context, identifier string) (student.Record, error)
}

// Submitter sends a workspace's pending edit.
type Submitter interface {
	Submit(ctx context.Context, sessionID string, ws *profile.Workspace) (student.Record, error)
}

// LoginLimiter counts failed logins per client.
type LoginLimiter interface {
	Check(ctx context.Context, client string) error
	Fail(ctx context.Context, client string) (int, error)
	Reset(ctx context.Context, client string) error
}

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) bool

// Deps are the collaborators of a Handler. Attempts and Checks may be nil.
type Deps struct {
	Students   Students
	Submitter  Submitter
	Cache      session.Cache
	Registry   *profile.Registry
	Signer     *auth.Signer
	Attempts   LoginLimiter
	Identifier student.IdentifierField
	Checks     map[string]HealthCheck
	Logger     *slog.Logger
}

// Handler serves the session and profile endpoints.
type Handler struct {
	Deps
}

var registerTagNames sync.Once

// New builds a Handler.
func New(d Deps) *Handler {
	if d.Identifier == "" {
		d.Identifier = student.ByNationalID
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	registerTagNames.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			v.RegisterTagNameFunc(jsonFieldName)
		}
	})
	return &Handler{Deps: d}
}

func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return f.Name
	}
	return name
}

// Register mounts every route on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/healthz", h.health)

	v1 := r.Group("/v1")
	v1.POST("/session", h.login)
	v1.POST("/session/reset", h.resetAttempts)

	authed := v1.Group("", auth.StudentAuth(h.Signer))
	authed.DELETE("/session", h.logout)
	authed.GET("/profile", h.loadProfile)
	authed.POST("/profile/photo", h.selectPhoto)
	authed.DELETE("/profile/photo", h.clearPhoto)
	authed.PUT("/profile/name", h.setName)
	authed.POST("/profile/submit", h.submit)
}

func (h *Handler) health(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, check := range h.Checks {
		ok := check(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}
