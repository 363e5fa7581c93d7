package api

import (
	"bytes"
	"context"
	"errors"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"studentportal/internal/auth"
	"studentportal/internal/gateway"
	"studentportal/internal/profile"
	"studentportal/internal/session"
	"studentportal/internal/student"
)

const knownNID = "29801011234567"

// fakeBackend imitates the remote student service.
type fakeBackend struct {
	mu       sync.Mutex
	students map[string]student.Wire
	hits     int
	reject   string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{students: map[string]student.Wire{
		knownNID: {NationalID: knownNID, ArabicName: "جون", SeatNumber: "1001", Code: "S-77"},
	}}
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hits++
	w.Header().Set("Content-Type", "application/json")

	if r.URL.Path == "/login/" {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		for _, s := range b.students {
			if s.SeatNumber == body["seat_number"] {
				_ = json.NewEncoder(w).Encode(s)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error":"Seat number not found."}`)
		return
	}

	id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/students/"), "/")
	s, ok := b.students[id]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"detail":"Not found."}`)
		return
	}
	if r.Method == http.MethodPost {
		if b.reject != "" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": b.reject})
			return
		}
		if err := r.ParseMultipartForm(4 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		name := r.FormValue("english_name")
		s.EnglishName = &name
		if _, _, err := r.FormFile("photo"); err == nil {
			url := "https://cdn.example.com/" + s.Code + ".jpg"
			s.Photo = &url
		}
		locked := false
		s.CanEditAgain = &locked
		b.students[id] = s
		_ = json.NewEncoder(w).Encode(map[string]any{"message": "saved", "data": s})
		return
	}
	_ = json.NewEncoder(w).Encode(s)
}

func (b *fakeBackend) student(id string) student.Wire {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.students[id]
}

func (b *fakeBackend) hitCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits
}

type testEnv struct {
	router  *gin.Engine
	backend *fakeBackend
	cache   *session.MemoryCache
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	backend := newFakeBackend()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	gw := gateway.New(srv.URL, 2*time.Second)
	cache := session.NewMemoryCache()
	reg := profile.NewRegistry(3, time.Minute)
	t.Cleanup(reg.Close)

	h := New(Deps{
		Students:  gw,
		Submitter: profile.NewService(gw, cache, profile.Options{AllowPhotoReuse: true}),
		Cache:     cache,
		Registry:  reg,
		Signer:    auth.NewSigner("test-key", "portal-test", time.Hour),
		Attempts:  auth.NewAttempts(rdb, 3, time.Minute),
	})
	r := gin.New()
	h.Register(r)
	return &testEnv{router: r, backend: backend, cache: cache}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body io.Reader, contentType string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	var out map[string]any
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

func (e *testEnv) doJSON(t *testing.T, method, path, token string, v any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	data, _ := json.Marshal(v)
	return e.do(t, method, path, token, bytes.NewReader(data), "application/json")
}

func (e *testEnv) login(t *testing.T) string {
	t.Helper()
	w, body := e.doJSON(t, http.MethodPost, "/v1/session", "", map[string]string{"national_id": knownNID})
	if w.Code != http.StatusCreated {
		t.Fatalf("login: %d %s", w.Code, w.Body.String())
	}
	return body["token"].(string)
}

func photoBody(t *testing.T, contentType string, size int) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="photo"; filename="me.png"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(bytes.Repeat([]byte{0x89}, size))
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestLoginRejectsMalformedNationalID(t *testing.T) {
	e := newTestEnv(t)
	w, body := e.doJSON(t, http.MethodPost, "/v1/session", "", map[string]string{"national_id": "12345"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("code = %d", w.Code)
	}
	fields, _ := body["fields"].(map[string]any)
	if fields["national_id"] != "National ID must be 14 digits." {
		t.Fatalf("fields = %v", body["fields"])
	}
	if e.backend.hitCount() != 0 {
		t.Fatal("backend contacted for a malformed national ID")
	}
}

func TestLoginBySeatNumber(t *testing.T) {
	e := newTestEnv(t)
	w, body := e.doJSON(t, http.MethodPost, "/v1/session", "", map[string]string{"seat_number": "1001"})
	if w.Code != http.StatusCreated {
		t.Fatalf("code = %d %s", w.Code, w.Body.String())
	}
	st, _ := body["student"].(map[string]any)
	if st["national_id"] != knownNID {
		t.Fatalf("student = %v", st)
	}
}

func TestLoginLockout(t *testing.T) {
	e := newTestEnv(t)
	unknown := map[string]string{"national_id": "11111111111111"}

	for i, left := range []float64{2, 1, 0} {
		w, body := e.doJSON(t, http.MethodPost, "/v1/session", "", unknown)
		if w.Code != http.StatusUnauthorized || body["attempts_left"] != left {
			t.Fatalf("attempt %d: %d %v", i, w.Code, body)
		}
		if left == 0 && body["error"] != lockedOutMessage {
			t.Fatalf("last failure body = %v", body)
		}
		if left > 0 && body["error"] != notFoundMessage {
			t.Fatalf("unknown student message = %v", body["error"])
		}
	}

	w, _ := e.doJSON(t, http.MethodPost, "/v1/session", "", map[string]string{"national_id": knownNID})
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("locked out client got %d", w.Code)
	}

	w, _ = e.do(t, http.MethodPost, "/v1/session/reset", "", nil, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("reset: %d", w.Code)
	}
	e.login(t)
}

func TestProfileSubmitFlow(t *testing.T) {
	e := newTestEnv(t)
	token := e.login(t)

	w, body := e.do(t, http.MethodGet, "/v1/profile", token, nil, "")
	if w.Code != http.StatusOK || body["locked"] != false {
		t.Fatalf("profile: %d %v", w.Code, body)
	}

	w, _ = e.doJSON(t, http.MethodPut, "/v1/profile/name", token, map[string]any{"parts": []string{"john", "q", "public"}})
	if w.Code != http.StatusOK {
		t.Fatalf("name: %d %s", w.Code, w.Body.String())
	}

	pb, ct := photoBody(t, "image/png", 100*1024)
	w, body = e.do(t, http.MethodPost, "/v1/profile/photo", token, pb, ct)
	if w.Code != http.StatusOK {
		t.Fatalf("photo: %d %s", w.Code, w.Body.String())
	}
	if preview, _ := body["preview"].(string); !strings.HasPrefix(preview, "data:image/png;base64,") {
		t.Fatalf("preview = %.40q", preview)
	}

	w, body = e.do(t, http.MethodPost, "/v1/profile/submit", token, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("submit: %d %s", w.Code, w.Body.String())
	}
	if body["locked"] != true || body["photo_name"] != "S-77.jpg" {
		t.Fatalf("submit body = %v", body)
	}
	stored := e.backend.student(knownNID)
	if stored.EnglishName == nil || *stored.EnglishName != "John Q Public" {
		t.Fatalf("backend name = %v", stored.EnglishName)
	}

	w, _ = e.doJSON(t, http.MethodPut, "/v1/profile/name", token, map[string]any{"parts": []string{"x"}})
	if w.Code != http.StatusConflict {
		t.Fatalf("edit after submit: %d", w.Code)
	}

	w, body = e.do(t, http.MethodGet, "/v1/profile", token, nil, "")
	if w.Code != http.StatusOK || body["locked"] != true || body["notice"] == "" {
		t.Fatalf("reload: %d %v", w.Code, body)
	}
}

func TestSubmitWithoutPhoto(t *testing.T) {
	e := newTestEnv(t)
	token := e.login(t)
	e.doJSON(t, http.MethodPut, "/v1/profile/name", token, map[string]any{"parts": []string{"john", "q", "public"}})

	hits := e.backend.hitCount()
	w, body := e.do(t, http.MethodPost, "/v1/profile/submit", token, nil, "")
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("code = %d", w.Code)
	}
	fields, _ := body["fields"].(map[string]any)
	if fields["photo"] == nil {
		t.Fatalf("fields = %v", body)
	}
	if e.backend.hitCount() != hits {
		t.Fatal("backend contacted despite missing photo")
	}
}

func TestRejectedPhotoType(t *testing.T) {
	e := newTestEnv(t)
	token := e.login(t)
	pb, ct := photoBody(t, "image/gif", 10)
	w, body := e.do(t, http.MethodPost, "/v1/profile/photo", token, pb, ct)
	if w.Code != http.StatusUnprocessableEntity || body["error"] != "The photo must be in JPG or PNG format." {
		t.Fatalf("code = %d body = %v", w.Code, body)
	}
}

func TestSubmitServerRejection(t *testing.T) {
	e := newTestEnv(t)
	e.backend.reject = "duplicate photo"
	token := e.login(t)
	e.doJSON(t, http.MethodPut, "/v1/profile/name", token, map[string]any{"parts": []string{"john", "q", "public"}})
	pb, ct := photoBody(t, "image/jpeg", 1024)
	e.do(t, http.MethodPost, "/v1/profile/photo", token, pb, ct)

	w, body := e.do(t, http.MethodPost, "/v1/profile/submit", token, nil, "")
	if w.Code != http.StatusBadGateway || body["error"] != "duplicate photo" {
		t.Fatalf("code = %d body = %v", w.Code, body)
	}
	view, _ := body["view"].(map[string]any)
	if view["locked"] != false {
		t.Fatalf("view = %v", view)
	}
}

func TestLogoutEndsSession(t *testing.T) {
	e := newTestEnv(t)
	token := e.login(t)

	w, _ := e.do(t, http.MethodDelete, "/v1/session", token, nil, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("logout: %d", w.Code)
	}
	w, _ = e.do(t, http.MethodGet, "/v1/profile", token, nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("profile after logout: %d", w.Code)
	}
}

func TestCorruptSessionIsCleared(t *testing.T) {
	e := newTestEnv(t)
	token := e.login(t)
	claims, _ := auth.NewSigner("test-key", "portal-test", time.Hour).Parse(token)
	e.cache.Put(claims.SessionID, "{not json")

	w, _ := e.do(t, http.MethodGet, "/v1/profile", token, nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("code = %d", w.Code)
	}
	if _, err := e.cache.Get(context.Background(), claims.SessionID); !errors.Is(err, session.ErrNoSession) {
		t.Fatalf("corrupt entry not cleared: %v", err)
	}
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := New(Deps{Checks: map[string]HealthCheck{
		"redis": func(_ context.Context) bool { return true },
		"api":   func(_ context.Context) bool { return false },
	}})
	r := gin.New()
	r.GET("/healthz", h.health)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("code = %d", w.Code)
	}
}
