package upload

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"legalease/internal/config"
	"legalease/internal/logging"
	"legalease/internal/model"
	"legalease/internal/storage"
	"legalease/internal/storage/mocks"
)

func artifact(t *testing.T) model.DocumentArtifact {
	t.Helper()
	p := filepath.Join(t.TempDir(), "document_1700000000000_abcd1234.pdf")
	require.NoError(t, os.WriteFile(p, []byte("%PDF-1.7\n%%EOF\n"), 0o644))
	return model.DocumentArtifact{Path: p, Name: filepath.Base(p), Pages: 1}
}

func TestUpload(t *testing.T) {
	ctx := context.Background()
	putOpts := mock.MatchedBy(func(o storage.PutObjectOptions) bool {
		return o.ContentType == "application/pdf" && o.Size > 0
	})

	t.Run("succeeds on third attempt", func(t *testing.T) {
		doc := artifact(t)
		key := "user-1/" + doc.Name
		st := new(mocks.MockStorage)
		st.On("Put", ctx, key, mock.Anything, putOpts).Return(storage.ObjectInfo{}, errors.New("timeout")).Twice()
		st.On("Put", ctx, key, mock.Anything, putOpts).Return(storage.ObjectInfo{Key: key}, nil).Once()
		st.On("PublicURL", key).Return("http://minio/pdf-by-user/" + key)

		var seen []int
		u := New(st, Options{MaxAttempts: 3, Backoff: time.Millisecond, Observer: func(a int, _ error) { seen = append(seen, a) }}, logging.Discard())
		loc, err := u.Upload(ctx, doc, "user-1")

		require.NoError(t, err)
		assert.Equal(t, key, loc.Key)
		assert.Equal(t, "user-1", loc.OwnerID)
		assert.Equal(t, doc.Name, loc.FileName)
		assert.Equal(t, "http://minio/pdf-by-user/"+key, loc.URL)
		assert.Equal(t, []int{1, 2, 3}, seen)
		st.AssertNumberOfCalls(t, "Put", 3)
	})

	t.Run("fails after max attempts", func(t *testing.T) {
		doc := artifact(t)
		st := new(mocks.MockStorage)
		st.On("Put", ctx, "user-1/"+doc.Name, mock.Anything, putOpts).Return(storage.ObjectInfo{}, errors.New("unavailable"))

		u := New(st, Options{MaxAttempts: 3, Backoff: time.Millisecond}, logging.Discard())
		_, err := u.Upload(ctx, doc, "user-1")

		assert.ErrorIs(t, err, ErrUpload)
		assert.Contains(t, err.Error(), "unavailable")
		st.AssertNumberOfCalls(t, "Put", 3)
	})

	t.Run("owner required is not retried", func(t *testing.T) {
		st := new(mocks.MockStorage)
		u := New(st, Options{}, logging.Discard())
		_, err := u.Upload(ctx, artifact(t), " ")
		assert.ErrorIs(t, err, ErrOwnerRequired)
		st.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing artifact is not retried", func(t *testing.T) {
		st := new(mocks.MockStorage)
		u := New(st, Options{}, logging.Discard())
		_, err := u.Upload(ctx, model.DocumentArtifact{Path: filepath.Join(t.TempDir(), "gone.pdf")}, "user-1")
		assert.ErrorIs(t, err, ErrArtifactRequired)
		st.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("cancelled while waiting", func(t *testing.T) {
		doc := artifact(t)
		cctx, cancel := context.WithCancel(context.Background())
		st := new(mocks.MockStorage)
		st.On("Put", cctx, "user-1/"+doc.Name, mock.Anything, putOpts).
			Run(func(mock.Arguments) { cancel() }).
			Return(storage.ObjectInfo{}, errors.New("boom"))

		u := New(st, Options{MaxAttempts: 3, Backoff: time.Hour}, logging.Discard())
		_, err := u.Upload(cctx, doc, "user-1")
		assert.ErrorIs(t, err, ErrUpload)
		st.AssertNumberOfCalls(t, "Put", 1)
	})
}

func TestLocator(t *testing.T) {
	st := new(mocks.MockStorage)
	st.On("PublicURL", "u/doc.pdf").Return("https://cdn/pdf-by-user/u/doc.pdf")

	loc := New(st, Options{}, logging.Discard()).Locator("u", "doc.pdf")
	assert.Equal(t, model.StorageLocator{URL: "https://cdn/pdf-by-user/u/doc.pdf", Key: "u/doc.pdf", OwnerID: "u", FileName: "doc.pdf"}, loc)
	st.AssertExpectations(t)
}

// memStore keeps objects in a map.
type memStore struct{ objects map[string][]byte }

func (m *memStore) Put(_ context.Context, key string, r io.Reader, opt storage.PutObjectOptions) (storage.ObjectInfo, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	m.objects[key] = b
	return storage.ObjectInfo{Key: key, Size: int64(len(b)), ContentType: opt.ContentType}, nil
}

func (m *memStore) Get(_ context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	b, ok := m.objects[key]
	if !ok {
		return nil, storage.ObjectInfo{}, errors.New("no such key")
	}
	return io.NopCloser(bytes.NewReader(b)), storage.ObjectInfo{Key: key, Size: int64(len(b))}, nil
}

func (m *memStore) PublicURL(key string) string {
	return storage.PublicObjectURL("http://objects.local", "pdf-by-user", key)
}

func assertRoundTrip(t *testing.T, st storage.Storage, owner string) {
	t.Helper()
	ctx := context.Background()

	body := make([]byte, 64<<10)
	_, err := rand.Read(body)
	require.NoError(t, err)
	p := filepath.Join(t.TempDir(), "document_1700000000000_feedbeef.pdf")
	require.NoError(t, os.WriteFile(p, append([]byte("%PDF-1.7\n"), body...), 0o644))
	doc := model.DocumentArtifact{Path: p, Name: filepath.Base(p), Pages: 1}

	u := New(st, Options{MaxAttempts: 2, Backoff: time.Millisecond}, logging.Discard())
	loc, err := u.Upload(ctx, doc, owner)
	require.NoError(t, err)
	assert.Equal(t, u.Locator(owner, doc.Name), loc)

	rc, _, err := st.Get(ctx, loc.Key)
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)

	want, err := os.ReadFile(doc.Path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestUpload_RoundTrip(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		assertRoundTrip(t, &memStore{objects: make(map[string][]byte)}, "user-1")
	})

	t.Run("minio", func(t *testing.T) {
		endpoint := os.Getenv("MINIO_ENDPOINT")
		if endpoint == "" {
			t.Skip("MinIO not configured")
		}
		bucket := os.Getenv("MINIO_BUCKET")
		if bucket == "" {
			bucket = "pdf-by-user-test"
		}
		st, err := storage.NewMinIO(config.MinIOConfig{
			Endpoint:  endpoint,
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			Bucket:    bucket,
			UseSSL:    os.Getenv("MINIO_USE_SSL") == "true",
		})
		if err != nil {
			t.Skipf("MinIO not available: %v", err)
		}
		assertRoundTrip(t, st, "roundtrip-"+time.Now().Format("150405.000000"))
	})
}
