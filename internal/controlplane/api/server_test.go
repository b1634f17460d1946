package api

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/docspp/cluster/internal/controlplane/api/auth"
	"github.com/docspp/cluster/internal/controlplane/api/handlers"
	"github.com/docspp/cluster/internal/namenode"
)

func testConfig(t *testing.T, port int) Config {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	return Config{
		Port:         port,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		Credential:   handlers.AdminCredential{Username: "admin", PasswordHash: string(hash)},
		JWT: auth.JWTConfig{
			Secret:               "test-secret-key-for-testing-only-32chars",
			AccessTokenDuration:  15 * time.Minute,
			RefreshTokenDuration: 7 * 24 * time.Hour,
		},
	}
}

func TestNewServer_RejectsShortSecret(t *testing.T) {
	cfg := testConfig(t, 0)
	cfg.JWT.Secret = "too-short"

	coord := namenode.NewWithDirector(namenode.Config{TBeat: time.Second, TDead: 3 * time.Second}, fakeDirector{})
	if _, err := NewServer(cfg, coord); err == nil {
		t.Fatal("expected error for short JWT secret")
	}
}

func TestServer_LifecycleAndHealth(t *testing.T) {
	const port = 18181
	cfg := testConfig(t, port)

	coord := namenode.NewWithDirector(namenode.Config{TBeat: time.Second, TDead: 3 * time.Second}, fakeDirector{})
	server, err := NewServer(cfg, coord)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- server.Start(ctx) }()

	time.Sleep(100 * time.Millisecond)

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/health", port))
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Start returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}
