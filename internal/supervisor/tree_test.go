// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

// mockService runs until canceled, failing the first failures starts.
type mockService struct {
	name     string
	failures int32
	starts   atomic.Int32
	stops    atomic.Int32
}

func (m *mockService) Serve(ctx context.Context) error {
	n := m.starts.Add(1)
	defer m.stops.Add(1)
	if n <= m.failures {
		return errors.New("simulated failure")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockService) String() string { return m.name }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNewSupervisorTree_Defaults(t *testing.T) {
	tree, err := NewSupervisorTree(testLogger(), TreeConfig{})
	if err != nil {
		t.Fatalf("NewSupervisorTree() error = %v", err)
	}
	if tree.Root() == nil {
		t.Fatal("root supervisor should not be nil")
	}
	if tree.config != DefaultTreeConfig() {
		t.Errorf("config = %+v, want defaults %+v", tree.config, DefaultTreeConfig())
	}

	custom := TreeConfig{FailureThreshold: 2, FailureBackoff: time.Second}
	tree, err = NewSupervisorTree(testLogger(), custom)
	if err != nil {
		t.Fatal(err)
	}
	if tree.config.FailureThreshold != 2 || tree.config.FailureBackoff != time.Second {
		t.Errorf("explicit values overwritten: %+v", tree.config)
	}
	if tree.config.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v, want default", tree.config.ShutdownTimeout)
	}
}

func TestSupervisorTree_Lifecycle(t *testing.T) {
	tree, err := NewSupervisorTree(testLogger(), TreeConfig{
		FailureBackoff:  50 * time.Millisecond,
		ShutdownTimeout: time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}

	data := &mockService{name: "janitor"}
	ingest := &mockService{name: "consumer", failures: 2}
	api := &mockService{name: "http"}
	tree.AddDataService(data)
	tree.AddIngestService(ingest)
	tree.AddAPIService(api)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	deadline := time.After(3 * time.Second)
	for ingest.starts.Load() < 3 {
		select {
		case <-deadline:
			cancel()
			t.Fatalf("failing service started %d times, want 3", ingest.starts.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-errCh:
	case <-time.After(3 * time.Second):
		t.Fatal("tree did not stop")
	}

	for _, svc := range []*mockService{data, ingest, api} {
		if svc.starts.Load() == 0 {
			t.Errorf("%s never started", svc.name)
		}
		if svc.starts.Load() != svc.stops.Load() {
			t.Errorf("%s: %d starts, %d stops", svc.name, svc.starts.Load(), svc.stops.Load())
		}
	}
	if api.starts.Load() != 1 {
		t.Errorf("api restarted %d times; ingest failures should not reach it", api.starts.Load()-1)
	}

	report, err := tree.UnstoppedServiceReport()
	if err != nil {
		t.Fatalf("UnstoppedServiceReport() error = %v", err)
	}
	if len(report) != 0 {
		t.Errorf("unstopped services: %v", report)
	}
}

func TestSupervisorTree_RemoveIngestService(t *testing.T) {
	tree, err := NewSupervisorTree(testLogger(), TreeConfig{ShutdownTimeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	svc := &mockService{name: "consumer"}
	token := tree.AddIngestService(svc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := tree.ServeBackground(ctx)

	for svc.starts.Load() == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	if err := tree.RemoveIngestService(token); err != nil {
		t.Fatalf("RemoveIngestService() error = %v", err)
	}

	deadline := time.After(2 * time.Second)
	for svc.stops.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("removed service did not stop")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-errCh
}
