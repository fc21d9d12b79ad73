// Package upload places assembled documents in object storage under the owner's prefix.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"legalease/internal/model"
	"legalease/internal/storage"
)

const contentTypePDF = "application/pdf"

var (
	ErrUpload           = errors.New("upload failed")
	ErrOwnerRequired    = errors.New("owner id is required")
	ErrArtifactRequired = errors.New("document artifact is required")
)

// AttemptObserver is told about every Put attempt; err is nil on success.
type AttemptObserver func(attempt int, err error)

type Options struct {
	MaxAttempts int
	Backoff     time.Duration
	Observer    AttemptObserver
}

type Uploader struct {
	store       storage.Storage
	maxAttempts int
	backoff     time.Duration
	observe     AttemptObserver
	logger      *slog.Logger
}

func New(store storage.Storage, opts Options, logger *slog.Logger) *Uploader {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.Backoff < 0 {
		opts.Backoff = 0
	}
	if opts.Observer == nil {
		opts.Observer = func(int, error) {}
	}
	return &Uploader{
		store:       store,
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.Backoff,
		observe:     opts.Observer,
		logger:      logger,
	}
}

// Key is the object key of fileName within ownerID's prefix.
func Key(ownerID, fileName string) string {
	return ownerID + "/" + fileName
}

// Locator derives the locator of an already uploaded document without touching storage.
func (u *Uploader) Locator(ownerID, fileName string) model.StorageLocator {
	key := Key(ownerID, fileName)
	return model.StorageLocator{
		URL:      u.store.PublicURL(key),
		Key:      key,
		OwnerID:  ownerID,
		FileName: fileName,
	}
}

// Upload writes the artifact to {ownerID}/{artifact name}, replacing any existing object.
// Transient failures are retried with a linearly growing wait; validation failures are not.
func (u *Uploader) Upload(ctx context.Context, artifact model.DocumentArtifact, ownerID string) (model.StorageLocator, error) {
	if strings.TrimSpace(ownerID) == "" {
		return model.StorageLocator{}, ErrOwnerRequired
	}
	if artifact.Path == "" {
		return model.StorageLocator{}, ErrArtifactRequired
	}
	name := artifact.Name
	if name == "" {
		name = filepath.Base(artifact.Path)
	}

	body, err := os.ReadFile(artifact.Path)
	if err != nil {
		return model.StorageLocator{}, fmt.Errorf("%w: read artifact: %v", ErrArtifactRequired, err)
	}

	key := Key(ownerID, name)
	logCtx := u.logger.With("key", key, "size", len(body))

	var lastErr error
	for attempt := 1; attempt <= u.maxAttempts; attempt++ {
		_, lastErr = u.store.Put(ctx, key, bytes.NewReader(body), storage.PutObjectOptions{
			Size:        int64(len(body)),
			ContentType: contentTypePDF,
		})
		u.observe(attempt, lastErr)
		if lastErr == nil {
			logCtx.Info("upload_success", "attempt", attempt)
			return u.Locator(ownerID, name), nil
		}

		logCtx.Warn("upload_attempt_failed", "attempt", attempt, "max_attempts", u.maxAttempts, "error", lastErr.Error())
		if attempt == u.maxAttempts {
			break
		}

		wait := time.Duration(attempt) * u.backoff
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return model.StorageLocator{}, fmt.Errorf("%w: %v", ErrUpload, ctx.Err())
		}
	}

	logCtx.Error("upload_exhausted", "attempts", u.maxAttempts, "error", lastErr.Error())
	return model.StorageLocator{}, fmt.Errorf("%w after %d attempts: %v", ErrUpload, u.maxAttempts, lastErr)
}
