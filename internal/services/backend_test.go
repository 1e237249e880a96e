package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/arkuspay/internal/database"
	"github.com/example/arkuspay/internal/models"
)

// fakeBackend is an httptest stand-in for the ArkusPay API.
type fakeBackend struct {
	t      *testing.T
	srv    *httptest.Server
	mu     sync.Mutex
	routes map[string]http.HandlerFunc
	calls  map[string]int
	auth   map[string]string
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{
		t:      t,
		routes: make(map[string]http.HandlerFunc),
		calls:  make(map[string]int),
		auth:   make(map[string]string),
	}
	fb.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		fb.mu.Lock()
		fb.calls[key]++
		fb.auth[key] = r.Header.Get("Authorization")
		handler, ok := fb.routes[key]
		fb.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"success":false,"message":"not found"}`))
			return
		}
		handler(w, r)
	}))
	t.Cleanup(fb.srv.Close)
	return fb
}

func (fb *fakeBackend) on(method, path string, status int, body string) {
	fb.handle(method, path, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}

func (fb *fakeBackend) handle(method, path string, h http.HandlerFunc) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.routes[method+" /api"+path] = h
}

func (fb *fakeBackend) count(method, path string) int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.calls[method+" /api"+path]
}

func (fb *fakeBackend) authHeader(method, path string) string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.auth[method+" /api"+path]
}

func (fb *fakeBackend) client() *APIClient {
	return NewAPIClient(fb.srv.URL+"/api", 2*time.Second, zerolog.Nop())
}

const (
	meIncomplete = `{"success":true,"data":{"user":{"id":"u1","onboardingComplete":false},"merchant":{"id":"m1","country":"US"}}}`
	meComplete   = `{"success":true,"data":{"user":{"id":"u1","onboardingComplete":true},"merchant":{"id":"m1","country":"US"}}}`
)

// signedIn returns storage holding a credential for client c1.
func signedIn(t *testing.T) *database.MemoryStore {
	t.Helper()
	store := database.NewMemoryStore()
	if err := store.Set(context.Background(), "c1", models.KeyToken, "tok"); err != nil {
		t.Fatal(err)
	}
	return store
}
