package main

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	osSignal "os/signal"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/eugenenazirov/pallet-allocator/internal/application"
	"github.com/eugenenazirov/pallet-allocator/internal/config"
)

func sendSignal(t *testing.T, sig os.Signal) {
	t.Helper()
	t.Cleanup(func() {
		signalNotify = osSignal.Notify
	})

	signalNotify = func(ch chan<- os.Signal, _ ...os.Signal) {
		go func() {
			ch <- sig
		}()
	}
}

func TestShutdownDrainsServerAndClosesStorage(t *testing.T) {
	sendSignal(t, syscall.SIGTERM)

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "allocator.db")
	cfg, err := config.Load(&config.CLIOverrides{
		EnvFile:      filepath.Join(dir, "missing.env"),
		DatabasePath: &dbPath,
	})
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	app, err := application.New(cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("build application: %v", err)
	}

	called := make(chan struct{}, 1)
	app.Server().RegisterOnShutdown(func() {
		called <- struct{}{}
	})

	numbering := func() int {
		rec := httptest.NewRecorder()
		app.Server().Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/numbering", nil))
		return rec.Code
	}
	if code := numbering(); code != http.StatusOK {
		t.Fatalf("expected numbering to be readable before shutdown, got %d", code)
	}

	shutdown(app, time.Second, zaptest.NewLogger(t))

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatalf("expected server shutdown callback to execute")
	}
	if code := numbering(); code != http.StatusInternalServerError {
		t.Fatalf("expected storage to be closed after shutdown, got %d", code)
	}
}

type stubService struct {
	server   *http.Server
	closeErr error
	closed   int
}

func (s *stubService) Server() *http.Server { return s.server }

func (s *stubService) Close() error {
	s.closed++
	return s.closeErr
}

func TestShutdownReportsStorageCloseFailure(t *testing.T) {
	sendSignal(t, syscall.SIGINT)

	core, logs := observer.New(zapcore.InfoLevel)
	svc := &stubService{server: &http.Server{}, closeErr: errors.New("disk gone")}
	shutdown(svc, time.Millisecond, zap.New(core))

	if svc.closed != 1 {
		t.Fatalf("expected storage to be closed once, got %d", svc.closed)
	}
	if logs.FilterMessage("failed to close storage").Len() != 1 {
		t.Fatalf("expected the close failure to be logged")
	}
	if logs.FilterMessage("storage closed").Len() != 0 {
		t.Fatalf("a failed close must not be reported as closed")
	}
	started := logs.FilterMessage("shutting down server").All()
	if len(started) != 1 || started[0].ContextMap()["signal"] != syscall.SIGINT.String() {
		t.Fatalf("expected the signal to be logged, got %v", started)
	}
}
