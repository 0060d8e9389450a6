package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/territory-assign/internal/domain"
	"github.com/aristath/territory-assign/internal/events"
	"github.com/aristath/territory-assign/internal/modules/assignment"
	"github.com/aristath/territory-assign/internal/modules/solver"
	"github.com/aristath/territory-assign/internal/persistence/memory"
	"github.com/aristath/territory-assign/internal/reliability"
)

// recordingClient is a minimal reliability.Client fake that signals on ch
// once an object is uploaded, so tests can wait on the execute handler's
// background archive call without a fixed sleep.
type recordingClient struct{ ch chan string }

func (c *recordingClient) Upload(ctx context.Context, key string, body io.Reader, size int64) error {
	io.Copy(io.Discard, body)
	c.ch <- key
	return nil
}
func (c *recordingClient) List(ctx context.Context, prefix string) ([]reliability.ObjectInfo, error) {
	return nil, nil
}
func (c *recordingClient) Delete(ctx context.Context, key string) error { return nil }

func testServer(t *testing.T) *Server {
	t.Helper()
	store := memory.New(zerolog.Nop())
	store.Seed("build1",
		[]domain.Account{
			{AccountID: "acc1", ARR: 100, HierarchyARR: 100, OwnerID: "repX"},
		},
		[]domain.SalesRep{
			{RepID: "repX", Name: "Rep X", IsActive: true, IncludeInAssignments: true},
		},
		nil,
		domain.Configuration{},
	)

	sv := solver.New(solver.Config{}, nil)
	orch := assignment.New(store, sv, events.NewManager(), memory.NewCache())

	srv := New(Config{
		Log:          zerolog.Nop(),
		Orchestrator: orch,
		Events:       events.NewManager(),
		Port:         0,
		DevMode:      true,
	})
	return srv
}

func TestHandleHealth_ReturnsHealthy(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestHandleGenerate_ReturnsReport(t *testing.T) {
	srv := testServer(t)

	body, _ := json.Marshal(generateRequest{BuildID: "build1", Scope: "all"})
	req := httptest.NewRequest(http.MethodPost, "/api/assignments/generate", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "acc1")
}

func TestHandleBackfillToggle_EnableCreatesBackfillRep(t *testing.T) {
	srv := testServer(t)

	body, _ := json.Marshal(backfillToggleRequest{BuildID: "build1", LeavingRepID: "repX", Enable: true})
	req := httptest.NewRequest(http.MethodPost, "/api/assignments/backfill/toggle", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "backfill-")
}

func TestHandleStatus_MissingBuildIDIsBadRequest(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/assignments/status", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleStatus_ReturnsLastReportAfterGenerate(t *testing.T) {
	srv := testServer(t)

	body, _ := json.Marshal(generateRequest{BuildID: "build1", Scope: "all"})
	genReq := httptest.NewRequest(http.MethodPost, "/api/assignments/generate", bytes.NewReader(body))
	genRec := httptest.NewRecorder()
	srv.router.ServeHTTP(genRec, genReq)
	require.Equal(t, http.StatusOK, genRec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/assignments/status?buildId=build1", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "acc1")
}

func TestHandleExecute_ArchivesReportWhenBackupEnabled(t *testing.T) {
	store := memory.New(zerolog.Nop())
	store.Seed("build1",
		[]domain.Account{
			{AccountID: "acc1", ARR: 100, HierarchyARR: 100, OwnerID: "repX"},
		},
		[]domain.SalesRep{
			{RepID: "repX", Name: "Rep X", IsActive: true, IncludeInAssignments: true},
		},
		nil,
		domain.Configuration{},
	)
	sv := solver.New(solver.Config{}, nil)
	orch := assignment.New(store, sv, events.NewManager(), memory.NewCache())

	client := &recordingClient{ch: make(chan string, 4)}
	backup := reliability.NewWithClient(client, zerolog.Nop())

	srv := New(Config{
		Log:          zerolog.Nop(),
		Orchestrator: orch,
		Events:       events.NewManager(),
		Backup:       backup,
		DevMode:      true,
	})

	genBody, _ := json.Marshal(generateRequest{BuildID: "build1", Scope: "all"})
	genReq := httptest.NewRequest(http.MethodPost, "/api/assignments/generate", bytes.NewReader(genBody))
	genRec := httptest.NewRecorder()
	srv.router.ServeHTTP(genRec, genReq)
	require.Equal(t, http.StatusOK, genRec.Code)

	execBody, _ := json.Marshal(executeRequest{BuildID: "build1", Proposals: nil, BypassOverloadCheck: true})
	execReq := httptest.NewRequest(http.MethodPost, "/api/assignments/execute", bytes.NewReader(execBody))
	execRec := httptest.NewRecorder()
	srv.router.ServeHTTP(execRec, execReq)
	require.Equal(t, http.StatusOK, execRec.Code)

	select {
	case key := <-client.ch:
		assert.Contains(t, key, "build1/")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for archive upload")
	}
}

func TestServer_StartAndShutdown(t *testing.T) {
	srv := testServer(t)
	srv.server.Addr = "127.0.0.1:0"

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, srv.Shutdown(ctx))
	require.NoError(t, <-errCh)
}
