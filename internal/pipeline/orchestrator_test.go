package pipeline

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"legalease/internal/acquire"
	"legalease/internal/analysis"
	"legalease/internal/assemble"
	"legalease/internal/database/migration"
	"legalease/internal/logging"
	"legalease/internal/model"
	"legalease/internal/repository"
	repomocks "legalease/internal/repository/mocks"
	"legalease/internal/repository/sqlite"
	"legalease/internal/service"
	"legalease/internal/storage"
	"legalease/internal/upload"
)

// memStore is an in-memory storage.Storage.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStore() *memStore { return &memStore{objects: make(map[string][]byte)} }

func (m *memStore) Put(_ context.Context, key string, r io.Reader, opt storage.PutObjectOptions) (storage.ObjectInfo, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	m.mu.Lock()
	m.objects[key] = b
	m.mu.Unlock()
	return storage.ObjectInfo{Key: key, Size: int64(len(b)), ContentType: opt.ContentType}, nil
}

func (m *memStore) Get(_ context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[key]
	if !ok {
		return nil, storage.ObjectInfo{}, errors.New("no such key")
	}
	return io.NopCloser(bytes.NewReader(b)), storage.ObjectInfo{Key: key, Size: int64(len(b))}, nil
}

func (m *memStore) PublicURL(key string) string {
	return storage.PublicObjectURL("http://objects.local", "pdf-by-user", key)
}

type fixture struct {
	orch    *Orchestrator
	store   *memStore
	repo    repository.ReportRepository
	metrics *Metrics
	workDir string
}

func newFixture(t *testing.T, analysisHandler http.HandlerFunc) *fixture {
	t.Helper()
	log := logging.Discard()

	db, err := sql.Open("sqlite", "file::memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migration.EnsureMigrated(context.Background(), db, "sqlite", log))
	repo := sqlite.NewReportSQLite(db)

	srv := httptest.NewServer(analysisHandler)
	t.Cleanup(srv.Close)

	metrics, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	store := newMemStore()
	workDir := t.TempDir()
	orch := New(Deps{
		Assembler: assemble.New(workDir, log),
		Uploader:  upload.New(store, upload.Options{MaxAttempts: 3, Backoff: time.Millisecond, Observer: metrics.UploadAttempt}, log),
		Analyzer:  analysis.New(srv.URL, 5*time.Second, log),
		Reports:   service.NewReportService(repo, log),
		Metrics:   metrics,
		Logger:    log,
	})
	return &fixture{orch: orch, store: store, repo: repo, metrics: metrics, workDir: workDir}
}

func scanPages(t *testing.T, n int) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, n)
	for i := range paths {
		img := image.NewRGBA(image.Rect(0, 0, 20, 30))
		img.Set(1, 1, color.RGBA{R: uint8(i * 40), A: 255})
		p := filepath.Join(dir, "page"+string(rune('a'+i))+".png")
		f, err := os.Create(p)
		require.NoError(t, err)
		require.NoError(t, png.Encode(f, img))
		require.NoError(t, f.Close())
		paths[i] = p
	}
	return paths
}

func reportHandler(report string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"report": report})
	}
}

func TestOrchestrator_ScanSucceeds(t *testing.T) {
	f := newFixture(t, reportHandler("```json\n{\"summary\":\"x\",\"parties\":[\"A\"]}\n```"))

	var seen []model.RunStatus
	res, err := f.orch.Run(context.Background(), "alice", acquire.Scan(scanPages(t, 3), 20), func(s model.RunStatus) {
		seen = append(seen, s)
	})
	require.NoError(t, err)

	assert.NoError(t, res.Err)
	assert.Equal(t, model.StageSucceeded, res.Status.Stage)
	assert.Equal(t, 1.0, res.Status.Progress)
	require.NotNil(t, res.Record)
	assert.Equal(t, res.Record.ID, res.Status.RecordID)
	assert.Equal(t, "x", res.Report.Summary)

	stages := make([]model.Stage, len(seen))
	for i, s := range seen {
		stages[i] = s.Stage
		if i > 0 {
			assert.GreaterOrEqual(t, s.Progress, seen[i-1].Progress)
		}
	}
	assert.Equal(t, []model.Stage{
		model.StageAcquiring, model.StageAssembling, model.StageUploading,
		model.StageAnalyzing, model.StagePersisting, model.StageSucceeded,
	}, stages)

	list, err := f.repo.ListByOwner(context.Background(), "alice", repository.PageQuery{Limit: 10})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, res.Locator.URL, list.Items[0].FileLink)

	rc, _, err := f.store.Get(context.Background(), res.Locator.Key)
	require.NoError(t, err)
	uploaded, _ := io.ReadAll(rc)
	assert.True(t, bytes.HasPrefix(uploaded, []byte("%PDF-")))

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.runs.WithLabelValues("succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.uploadAttempts.WithLabelValues("ok")))
}

func TestOrchestrator_AnalysisFailureKeepsUpload(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"detail":"Too many requests"}`))
	})

	res, err := f.orch.Run(context.Background(), "alice", acquire.Scan(scanPages(t, 2), 20), nil)
	require.NoError(t, err)

	assert.Equal(t, model.StageFailed, res.Status.Stage)
	assert.Equal(t, model.StageAnalyzing, res.Status.FailedAt)
	assert.Equal(t, "Too many requests", res.Status.Message)
	assert.Equal(t, "service_reported", res.Status.Error)
	assert.Nil(t, res.Record)

	list, err := f.repo.ListByOwner(context.Background(), "alice", repository.PageQuery{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, list.Items)

	require.NotNil(t, res.Locator)
	_, _, err = f.store.Get(context.Background(), res.Locator.Key)
	assert.NoError(t, err)
}

func TestOrchestrator_PickedDocumentSkipsAssembly(t *testing.T) {
	f := newFixture(t, reportHandler(`{"summary":"contract"}`))
	p := filepath.Join(t.TempDir(), "contract.pdf")
	require.NoError(t, os.WriteFile(p, []byte("%PDF-1.4\n%%EOF\n"), 0o644))

	var stages []model.Stage
	res, err := f.orch.Run(context.Background(), "bob", acquire.Pick(p), func(s model.RunStatus) { stages = append(stages, s.Stage) })
	require.NoError(t, err)

	assert.Equal(t, model.StageSucceeded, res.Status.Stage)
	assert.NotContains(t, stages, model.StageAssembling)
	assert.Equal(t, "bob/contract.pdf", res.Locator.Key)
	assert.FileExists(t, p)
}

func TestOrchestrator_Cancelled(t *testing.T) {
	f := newFixture(t, reportHandler(`{"summary":"x"}`))

	t.Run("no pages", func(t *testing.T) {
		res, err := f.orch.Run(context.Background(), "alice", acquire.Scan(nil, 20), nil)
		require.NoError(t, err)
		assert.Equal(t, model.StageCancelled, res.Status.Stage)
		assert.NoError(t, res.Err)
		assert.Empty(t, res.Status.Message)
	})

	t.Run("context cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		res, err := f.orch.Run(ctx, "alice", acquire.Scan(scanPages(t, 1), 20), nil)
		require.NoError(t, err)
		assert.Equal(t, model.StageCancelled, res.Status.Stage)
		assert.Empty(t, f.store.objects)
	})
}

func TestOrchestrator_Failures(t *testing.T) {
	f := newFixture(t, reportHandler("not json"))

	t.Run("malformed report", func(t *testing.T) {
		res, err := f.orch.Run(context.Background(), "alice", acquire.Scan(scanPages(t, 1), 20), nil)
		require.NoError(t, err)
		assert.Equal(t, model.StageFailed, res.Status.Stage)
		assert.ErrorIs(t, res.Err, analysis.ErrMalformedResponse)
		assert.Equal(t, "Failed to process the report data from the server.", res.Status.Message)
		assert.Equal(t, "malformed_response", res.Status.Error)
	})

	t.Run("unloadable pages", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.png")
		require.NoError(t, os.WriteFile(bad, []byte("nope"), 0o644))
		res, err := f.orch.Run(context.Background(), "alice", acquire.Scan([]string{bad}, 20), nil)
		require.NoError(t, err)
		assert.Equal(t, model.StageAssembling, res.Status.FailedAt)
		assert.ErrorIs(t, res.Err, assemble.ErrConversion)
		assert.Equal(t, "conversion_error", res.Status.Error)
	})

	t.Run("too many pages", func(t *testing.T) {
		res, err := f.orch.Run(context.Background(), "alice", acquire.Scan(scanPages(t, 3), 2), nil)
		require.NoError(t, err)
		assert.Equal(t, model.StageAcquiring, res.Status.FailedAt)
		assert.ErrorIs(t, res.Err, acquire.ErrTooManyPages)
	})
}

func TestOrchestrator_PreStart(t *testing.T) {
	f := newFixture(t, reportHandler(`{"summary":"x"}`))

	_, err := f.orch.Run(context.Background(), "", acquire.Scan(nil, 20), nil)
	assert.ErrorIs(t, err, ErrOwnerRequired)

	run, err := f.orch.Begin(context.Background(), "alice")
	require.NoError(t, err)

	_, err = f.orch.Run(context.Background(), "alice", acquire.Scan(nil, 20), nil)
	assert.ErrorIs(t, err, ErrRunInProgress)

	run.Execute(context.Background(), acquire.Scan(nil, 20), nil)

	_, err = f.orch.Run(context.Background(), "alice", acquire.Scan(nil, 20), nil)
	assert.NoError(t, err)
}

func TestTracker(t *testing.T) {
	f := newFixture(t, reportHandler(`{"summary":"tracked"}`))
	tr := NewTracker(f.orch, time.Hour, logging.Discard())

	cleaned := make(chan struct{})
	st, err := tr.Launch(context.Background(), "alice", acquire.Scan(scanPages(t, 1), 20), func() { close(cleaned) })
	require.NoError(t, err)
	assert.NotEmpty(t, st.RunID)

	tr.Wait()
	<-cleaned

	got, ok := tr.Get("alice", st.RunID)
	require.True(t, ok)
	assert.Equal(t, model.StageSucceeded, got.Stage)
	assert.Equal(t, "tracked", got.Report.Summary)

	_, ok = tr.Get("mallory", st.RunID)
	assert.False(t, ok)

	_, err = tr.Launch(context.Background(), "", acquire.Scan(nil, 20), nil)
	assert.ErrorIs(t, err, ErrOwnerRequired)
}

func TestOrchestrator_SaveFailureStillSucceeds(t *testing.T) {
	f := newFixture(t, reportHandler(`{"summary":"unsaved"}`))
	repo := new(repomocks.MockReportRepository)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("database is locked")).Once()
	f.orch.reports = service.NewReportService(repo, logging.Discard())

	var last model.RunStatus
	res, err := f.orch.Run(context.Background(), "alice", acquire.Scan(scanPages(t, 1), 20), func(s model.RunStatus) { last = s })
	require.NoError(t, err)

	assert.NoError(t, res.Err)
	assert.Equal(t, model.StageSucceeded, res.Status.Stage)
	assert.Equal(t, 1.0, res.Status.Progress)
	assert.Nil(t, res.Record)
	assert.Zero(t, res.Status.RecordID)
	require.NotNil(t, res.Report)
	assert.Equal(t, "unsaved", res.Report.Summary)
	assert.Equal(t, res.Status, last)
	repo.AssertExpectations(t)
}

func TestOrchestrator_RemovesAssembledArtifact(t *testing.T) {
	var fail atomic.Bool
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"detail":"Internal error"}`))
			return
		}
		reportHandler(`{"summary":"x"}`)(w, r)
	})

	for _, tc := range []struct {
		name  string
		fail  bool
		stage model.Stage
	}{
		{"succeeded", false, model.StageSucceeded},
		{"failed", true, model.StageFailed},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fail.Store(tc.fail)
			res, err := f.orch.Run(context.Background(), "alice", acquire.Scan(scanPages(t, 2), 20), nil)
			require.NoError(t, err)
			assert.Equal(t, tc.stage, res.Status.Stage)

			entries, err := os.ReadDir(f.workDir)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}
