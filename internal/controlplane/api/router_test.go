package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/docspp/cluster/internal/controlplane/api/auth"
	"github.com/docspp/cluster/internal/controlplane/api/handlers"
	"github.com/docspp/cluster/internal/namenode"
)

type fakeDirector struct{}

func (fakeDirector) Create(address string, nnPort int, path string) error { return nil }
func (fakeDirector) Delete(address string, nnPort int, path string) error { return nil }

func testRouter(t *testing.T) (http.Handler, *namenode.Coordinator, handlers.AdminCredential) {
	t.Helper()

	coord := namenode.NewWithDirector(namenode.Config{TBeat: time.Second, TDead: 3 * time.Second}, fakeDirector{})

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	cred := handlers.AdminCredential{Username: "admin", PasswordHash: string(hash)}

	jwtService, err := auth.NewJWTService(auth.JWTConfig{
		Secret: "test-secret-key-that-is-at-least-32-characters-long",
	})
	if err != nil {
		t.Fatalf("creating JWT service: %v", err)
	}

	return NewRouter(coord, jwtService, cred), coord, cred
}

func TestRouter_HealthIsUnauthenticated(t *testing.T) {
	router, _, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestRouter_AdminRoutesRequireAuth(t *testing.T) {
	router, _, _ := testRouter(t)

	for _, path := range []string{"/api/v1/storage-nodes", "/api/v1/clients", "/api/v1/files", "/api/v1/auth/me"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401 without token, got %d", path, w.Code)
		}
	}
}

func TestRouter_LoginThenListStorageNodes(t *testing.T) {
	router, coord, _ := testRouter(t)

	if err := coord.RegisterSN(1, "127.0.0.1", 7100, 7101, 7102, nil); err != nil {
		t.Fatalf("RegisterSN: %v", err)
	}

	loginBody := `{"username":"admin","password":"password123"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(loginBody))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var loginResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(w.Body).Decode(&loginResp); err != nil {
		t.Fatalf("decoding login response: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/storage-nodes", nil)
	req.Header.Set("Authorization", "Bearer "+loginResp.AccessToken)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var sns []map[string]any
	if err := json.NewDecoder(w.Body).Decode(&sns); err != nil {
		t.Fatalf("decoding storage nodes: %v", err)
	}
	if len(sns) != 1 {
		t.Fatalf("expected 1 storage node, got %d", len(sns))
	}
}
