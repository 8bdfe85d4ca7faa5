package ui

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beacon-epi/empdep/internal/state"
)

func newTestServer(t *testing.T) (*Server, *state.Store, string) {
	t.Helper()

	store := state.NewStore()
	require.NoError(t, store.Open(":memory:"))
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate())

	outputDir := t.TempDir()
	srv := NewServer(Config{Store: store, OutputDir: outputDir, Port: 0})
	return srv, store, outputDir
}

func seedRun(t *testing.T, store *state.Store) *state.Run {
	t.Helper()

	run, err := store.CreateRun("prepare")
	require.NoError(t, err)

	sr, err := store.CreateStageRun(run.ID, "load_extracts", 0)
	require.NoError(t, err)
	require.NoError(t, store.StartStageRun(sr.ID))
	require.NoError(t, store.FinishStageRun(sr.ID, state.StageStatusSuccess, 24, 19, ""))

	require.NoError(t, store.RecordExclusion(run.ID, "load_extracts", "blank participant id", 1))
	require.NoError(t, store.CompleteRun(run.ID, state.RunStatusCompleted, ""))

	return run
}

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHomeListsRunsAndTables(t *testing.T) {
	srv, store, outputDir := newTestServer(t)
	run := seedRun(t, store)

	csv := "variable,group,n\nphq_total_2023,lost_employment,12\n"
	require.NoError(t, os.WriteFile(filepath.Join(outputDir, "descriptives.csv"), []byte(csv), 0o600))

	rec := get(t, srv.Routes(), "/")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, run.ID)
	assert.Contains(t, body, "/runs/"+run.ID)
	assert.Contains(t, body, "prepare")
	assert.Contains(t, body, "/tables/descriptives")
}

func TestRunDetailShowsStagesAndExclusions(t *testing.T) {
	srv, store, _ := newTestServer(t)
	run := seedRun(t, store)

	rec := get(t, srv.Routes(), "/runs/"+run.ID)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "load_extracts")
	assert.Contains(t, body, "success")
	assert.Contains(t, body, "blank participant id")
}

func TestRunDetailUnknownRunIs404(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := get(t, srv.Routes(), "/runs/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTableRendersPersistedCSV(t *testing.T) {
	srv, _, outputDir := newTestServer(t)

	csv := "term,estimate,se\nintercept,4.21,0.33\n"
	require.NoError(t, os.WriteFile(filepath.Join(outputDir, "model_weighted.csv"), []byte(csv), 0o600))

	rec := get(t, srv.Routes(), "/tables/model_weighted")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "<th>term</th>")
	assert.Contains(t, body, "<td>4.21</td>")
}

func TestTableRejectsTraversalNames(t *testing.T) {
	srv, _, _ := newTestServer(t)

	for _, path := range []string{"/tables/..%2fsecret", "/tables/Weights", "/tables/a.b"} {
		rec := get(t, srv.Routes(), path)
		assert.Equal(t, http.StatusNotFound, rec.Code, "path %s should 404", path)
	}
}

func TestTableUnknownNameIs404(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := get(t, srv.Routes(), "/tables/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
