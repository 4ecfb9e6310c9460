package bootstrap

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"d21ledger/internal/platform/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(backend config.StorageBackend) *config.Config {
	cfg := config.Default()
	cfg.Storage = backend
	cfg.SQLitePath = ""
	cfg.BadgerDir = ""
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.OutboxPollInterval = 10 * time.Millisecond
	cfg.TallySweepInterval = 10 * time.Millisecond
	cfg.ShutdownTimeout = time.Second
	return &cfg
}

func TestBuildAPIWithMemoryEmbedsWorker(t *testing.T) {
	app, err := BuildAPI(context.Background(), testConfig(config.StorageMemory), discardLogger())
	if err != nil {
		t.Fatalf("build api failed: %v", err)
	}
	defer app.Close()
	if app.worker == nil {
		t.Fatalf("expected embedded worker for memory storage")
	}

	now := time.Now().UTC()
	body := fmt.Sprintf(`{"election_id":"election-1","start_time":%d,"end_time":%d,"candidate_names":["A","B"]}`,
		now.Add(-time.Minute).Unix(), now.Add(time.Hour).Unix())
	req := httptest.NewRequest(http.MethodPost, "/v1/elections", bytes.NewBufferString(body))
	req.Header.Set("X-User-Id", "authority-1")
	rr := httptest.NewRecorder()
	app.server.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}

	published, err := app.worker.relay.RunOnce(context.Background())
	if err != nil || published != 1 {
		t.Fatalf("expected initialized event relayed, got %d %v", published, err)
	}
}

func TestAPIRunStopsOnCancel(t *testing.T) {
	app, err := BuildAPI(context.Background(), testConfig(config.StorageMemory), discardLogger())
	if err != nil {
		t.Fatalf("build api failed: %v", err)
	}
	defer app.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- app.Run(ctx)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("api did not stop after cancel")
	}
}

func TestBuildWorkerRejectsProcessLocalStorage(t *testing.T) {
	for _, backend := range []config.StorageBackend{config.StorageMemory, config.StorageBadger} {
		if _, err := BuildWorker(context.Background(), testConfig(backend), discardLogger()); err == nil {
			t.Fatalf("expected %s to be rejected for the worker process", backend)
		}
	}
}

func TestBuildWorkerWithSQLite(t *testing.T) {
	worker, err := BuildWorker(context.Background(), testConfig(config.StorageSQLite), discardLogger())
	if err != nil {
		t.Fatalf("build worker failed: %v", err)
	}
	defer worker.Close()

	finalized, err := worker.sweeper.RunOnce(context.Background())
	if err != nil || finalized != 0 {
		t.Fatalf("expected empty sweep, got %d %v", finalized, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := worker.Run(ctx); err != nil {
		t.Fatalf("expected worker to stop cleanly, got %v", err)
	}
}
