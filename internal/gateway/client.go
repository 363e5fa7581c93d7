package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"studentportal/internal/metrics"
	"studentportal/internal/photo"
	"studentportal/internal/student"
)

// ErrNoNationalID means the backend answered with a record that cannot be
// keyed or cached.
var ErrNoNationalID = errors.New("response carries no valid national id")

// Error is a failed call to the student API. Status is 0 when the request never
// produced a response.
type Error struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("student api %s: %v", e.Op, e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("student api %s (%d): %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("student api %s: status %d", e.Op, e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

// NotFound reports whether the backend answered 404.
func (e *Error) NotFound() bool { return e.Status == http.StatusNotFound }

// Payload is the multipart body of an update call.
type Payload struct {
	EnglishName string
	Photo       *photo.File
}

// Client calls the student API.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New creates a client. baseURL is the API root, e.g. https://host/api.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Authenticate looks a student up by seat number.
func (c *Client) Authenticate(ctx context.Context, seatNumber string) (rec student.Record, err error) {
	defer func(start time.Time) { metrics.ObserveGateway("authenticate", start, err) }(time.Now())

	body, _ := json.Marshal(map[string]string{"seat_number": seatNumber})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/login/", bytes.NewReader(body))
	if err != nil {
		return student.Record{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doRecord(req, "authenticate")
}

// Fetch loads a student by national ID or seat number.
func (c *Client) Fetch(ctx context.Context, identifier string) (rec student.Record, err error) {
	defer func(start time.Time) { metrics.ObserveGateway("fetch", start, err) }(time.Now())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.studentURL(identifier), nil)
	if err != nil {
		return student.Record{}, err
	}
	return c.doRecord(req, "fetch")
}

// Update submits the English name and photo for a student and returns the
// record the backend stored.
func (c *Client) Update(ctx context.Context, identifier string, p Payload) (rec student.Record, err error) {
	defer func(start time.Time) { metrics.ObserveGateway("update", start, err) }(time.Now())

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("english_name", p.EnglishName); err != nil {
		return student.Record{}, err
	}
	if p.Photo != nil {
		name := p.Photo.Name
		if name == "" {
			name = "photo"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="photo"; filename=%q`, name))
		h.Set("Content-Type", p.Photo.ContentType)
		part, err := w.CreatePart(h)
		if err != nil {
			return student.Record{}, err
		}
		if _, err := part.Write(p.Photo.Data); err != nil {
			return student.Record{}, err
		}
	}
	if err := w.Close(); err != nil {
		return student.Record{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.studentURL(identifier), &buf)
	if err != nil {
		return student.Record{}, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return c.doRecord(req, "update")
}

// Health checks that the student API answers at all.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("student api unavailable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("student api unhealthy: %s", resp.Status)
	}
	return nil
}

func (c *Client) studentURL(identifier string) string {
	return c.BaseURL + "/students/" + url.PathEscape(identifier) + "/"
}

func (c *Client) doRecord(req *http.Request, op string) (student.Record, error) {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return student.Record{}, &Error{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return student.Record{}, &Error{Op: op, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode >= 300 {
		return student.Record{}, &Error{Op: op, Status: resp.StatusCode, Message: errorMessage(body)}
	}

	rec, err := DecodeRecord(body)
	if err != nil {
		return student.Record{}, &Error{Op: op, Status: resp.StatusCode, Err: err}
	}
	return rec, nil
}

// DecodeRecord accepts either a bare student object or a {message, data} envelope.
func DecodeRecord(body []byte) (student.Record, error) {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	raw := body
	if err := json.Unmarshal(body, &env); err == nil && len(env.Data) > 0 && string(env.Data) != "null" {
		raw = env.Data
	}
	var w student.Wire
	if err := json.Unmarshal(raw, &w); err != nil {
		return student.Record{}, fmt.Errorf("decode student: %w", err)
	}
	if !student.ValidNationalID(w.NationalID) {
		return student.Record{}, fmt.Errorf("decode student: %w", ErrNoNationalID)
	}
	return student.FromWire(w), nil
}

// errorMessage pulls a human-readable message out of an error body.
func errorMessage(body []byte) string {
	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return ""
	}
	for _, key := range []string{"error", "message", "detail"} {
		switch v := out[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case []any:
			if len(v) > 0 {
				if s, ok := v[0].(string); ok {
					return s
				}
			}
		}
	}
	return ""
}
