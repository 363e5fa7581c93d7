package profile

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"studentportal/internal/audit"
	"studentportal/internal/gateway"
	"studentportal/internal/metrics"
	"studentportal/internal/names"
	"studentportal/internal/photo"
	"studentportal/internal/queue"
	"studentportal/internal/session"
	"studentportal/internal/student"
)

const (
	missingPhotoMessage = "Please choose a profile photo before saving."
	publishTimeout      = 2 * time.Second
)

// Gateway is the part of the remote student service a submission needs.
type Gateway interface {
	Update(ctx context.Context, identifier string, p gateway.Payload) (student.Record, error)
}

// Options configures a Service.
type Options struct {
	Identifier      student.IdentifierField
	AllowPhotoReuse bool
	Events          queue.Publisher
	Logger          *slog.Logger
}

// Service submits pending edits to the remote gateway.
type Service struct {
	gateway         Gateway
	cache           session.Cache
	events          queue.Publisher
	identifier      student.IdentifierField
	allowPhotoReuse bool
	logger          *slog.Logger
}

// NewService wires a Service. Events may be nil.
func NewService(gw Gateway, cache session.Cache, opts Options) *Service {
	if opts.Identifier == "" {
		opts.Identifier = student.ByNationalID
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		gateway:         gw,
		cache:           cache,
		events:          opts.Events,
		identifier:      opts.Identifier,
		allowPhotoReuse: opts.AllowPhotoReuse,
		logger:          opts.Logger,
	}
}

// Submit validates the pending edit of ws and sends it. On success the
// workspace is locked and the record in the session cache replaced by the
// server echo. On failure the record and lock state are left untouched.
func (s *Service) Submit(ctx context.Context, sessionID string, ws *Workspace) (student.Record, error) {
	snap, err := ws.beginSubmit()
	if err != nil {
		switch {
		case errors.Is(err, ErrSubmitInFlight):
			metrics.Submission("busy")
		case IsLockViolation(err):
			metrics.Submission("locked")
		}
		return student.Record{}, err
	}
	defer ws.endSubmit()

	payload, err := s.validate(ws, snap)
	if err != nil {
		metrics.Submission("validation")
		return student.Record{}, err
	}

	id := snap.record.Identifier(s.identifier)
	rec, err := s.gateway.Update(ctx, id, payload)
	if err != nil {
		metrics.Submission("gateway")
		ws.errs.Set(FieldPhoto, UserMessage(err))
		s.logger.Warn("submission rejected", "session", sessionID, "identifier", id, "error", err)
		return student.Record{}, err
	}
	if !rec.Loadable() {
		err := &gateway.Error{Op: "update", Status: http.StatusOK, Err: gateway.ErrNoNationalID}
		metrics.Submission("gateway")
		ws.errs.Set(FieldPhoto, UserMessage(err))
		s.logger.Error("submission reply unusable", "session", sessionID, "identifier", id, "error", err)
		return student.Record{}, err
	}

	persist := func(rec student.Record) {
		if err := s.cache.Set(ctx, sessionID, rec); err != nil {
			s.logger.Error("session cache write failed", "session", sessionID, "error", err)
		}
	}
	if !ws.commit(rec, persist) {
		s.logger.Info("dropping submission response for closed session", "session", sessionID)
		return rec, ErrClosed
	}
	metrics.Submission("success")
	s.logger.Info("submission accepted", "session", sessionID, "identifier", id)
	s.publish(ctx, sessionID, rec)
	return rec, nil
}

// validate runs the local checks in order: photo presence, photo limits, then
// every name part. All name failures are reported, not just the first.
func (s *Service) validate(ws *Workspace, snap snapshot) (gateway.Payload, error) {
	pending := snap.pending
	if pending.Photo == nil && !(s.allowPhotoReuse && snap.record.HasPhoto()) {
		ws.errs.Set(FieldPhoto, missingPhotoMessage)
		return gateway.Payload{}, &ValidationError{Failures: []Failure{{
			Field: FieldPhoto, Kind: ErrMissingPhoto, Message: missingPhotoMessage,
		}}}
	}

	var file *photo.File
	if pending.Photo != nil {
		if _, err := photo.Check(pending.Photo.File); err != nil {
			msg := photo.Message(err)
			ws.errs.Set(FieldPhoto, msg)
			ws.dropPhoto()
			return gateway.Payload{}, &ValidationError{Failures: []Failure{{
				Field: FieldPhoto, Kind: err, Message: msg,
			}}}
		}
		file = pending.Photo.File
	}

	report := func(slot names.Slot, msg string) { ws.errs.Set(string(slot), msg) }
	parts := make([]string, 0, len(snap.slots))
	var failures []Failure
	for i, slot := range snap.slots {
		var raw string
		if i < len(pending.NameParts) {
			raw = pending.NameParts[i]
		}
		part := names.Normalize(strings.TrimSpace(raw))
		if err := names.ValidatePart(part, slot, report); err != nil {
			var nerr *names.Error
			if errors.As(err, &nerr) {
				failures = append(failures, Failure{Field: string(slot), Kind: nerr.Kind, Message: nerr.Message})
			}
			continue
		}
		ws.errs.Clear(string(slot))
		parts = append(parts, part)
	}
	if len(failures) > 0 {
		return gateway.Payload{}, &ValidationError{Failures: failures}
	}
	return gateway.Payload{EnglishName: strings.Join(parts, " "), Photo: file}, nil
}

// publish enqueues the audit event. It never blocks the submission for
// longer than publishTimeout.
func (s *Service) publish(ctx context.Context, sessionID string, rec student.Record) {
	if s.events == nil {
		return
	}
	msg, err := queue.NewMessage(audit.MessageType, audit.NewEvent(sessionID, rec))
	if err == nil {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		err = s.events.Publish(pctx, msg)
		cancel()
	}
	if err != nil {
		s.logger.Warn("audit publish failed", "session", sessionID, "error", err)
	}
}
