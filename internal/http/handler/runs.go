package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"

	"legalease/internal/acquire"
	"legalease/internal/auth"
	"legalease/internal/model"
	"legalease/internal/pipeline"
)

// RunLauncher starts background runs and reports their progress. *pipeline.Tracker implements it.
type RunLauncher interface {
	Launch(ctx context.Context, ownerID string, src acquire.Source, cleanup func()) (model.RunStatus, error)
	Get(ownerID, runID string) (model.RunStatus, bool)
}

// IntakeConfig bounds what POST /runs accepts.
type IntakeConfig struct {
	WorkDir  string
	MaxPages int
}

type startRunResponse struct {
	RunID string `json:"run_id"`
}

// StartRun accepts scanned pages (multipart field "pages", in order) or one picked PDF
// (field "file") and runs the pipeline for the caller in the background.
//
// @Summary  Start an ingestion run
// @Tags     runs
// @Accept   multipart/form-data
// @Produce  json
// @Param    pages formData file false "page images in order"
// @Param    file  formData file false "a PDF document"
// @Success  202 {object} startRunResponse
// @Failure  400 {object} errorPayload
// @Failure  409 {object} errorPayload
// @Security BearerAuth
// @Router   /runs [post]
func StartRun(l RunLauncher, cfg IntakeConfig, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := auth.FromCtx(c)
		if !ok {
			return writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		}

		form, err := c.MultipartForm()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "MULTIPART_REQUIRED", "multipart form is required")
		}
		pages := form.File["pages"]
		docs := form.File["file"]

		switch {
		case len(pages) > 0 && len(docs) > 0:
			return writeError(c, fiber.StatusBadRequest, "AMBIGUOUS_INPUT", "send either pages or file, not both")
		case len(docs) > 1:
			return writeError(c, fiber.StatusBadRequest, "TOO_MANY_FILES", "only one file is accepted")
		case cfg.MaxPages > 0 && len(pages) > cfg.MaxPages:
			return writeError(c, fiber.StatusBadRequest, "TOO_MANY_PAGES", fmt.Sprintf("at most %d pages are accepted", cfg.MaxPages))
		}

		dir, err := os.MkdirTemp(cfg.WorkDir, "run-*")
		if err != nil {
			logger.Error("run_intake_failed", "error", err.Error())
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		cleanup := func() { _ = os.RemoveAll(dir) }

		var src acquire.Source
		if len(docs) == 1 {
			path, err := save(c, docs[0], filepath.Join(dir, partName(docs[0].Filename, "document.pdf")))
			if err != nil {
				cleanup()
				logger.Error("run_intake_failed", "error", err.Error())
				return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}
			src = acquire.Pick(path)
		} else {
			paths := make([]string, 0, len(pages))
			for i, fh := range pages {
				path, err := save(c, fh, filepath.Join(dir, fmt.Sprintf("%03d_%s", i, partName(fh.Filename, "page"))))
				if err != nil {
					cleanup()
					logger.Error("run_intake_failed", "error", err.Error())
					return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
				}
				paths = append(paths, path)
			}
			src = acquire.Scan(paths, cfg.MaxPages)
		}

		st, err := l.Launch(context.WithoutCancel(c.UserContext()), id.UID, src, cleanup)
		if err != nil {
			if errors.Is(err, pipeline.ErrRunInProgress) {
				return writeError(c, fiber.StatusConflict, "RUN_IN_PROGRESS", "a run is already in progress")
			}
			logger.Error("run_launch_failed", "owner_id", id.UID, "error", err.Error())
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.Status(fiber.StatusAccepted).JSON(startRunResponse{RunID: st.RunID})
	}
}

func save(c *fiber.Ctx, fh *multipart.FileHeader, path string) (string, error) {
	if err := c.SaveFile(fh, path); err != nil {
		return "", err
	}
	return path, nil
}

// partName strips any directory from a client supplied file name.
func partName(name, fallback string) string {
	base := filepath.Base(filepath.Clean("/" + name))
	if base == "/" || base == "." {
		return fallback
	}
	return base
}

// GetRun returns the latest status of one of the caller's runs.
//
// @Summary  Run status
// @Tags     runs
// @Produce  json
// @Param    id path string true "run id"
// @Success  200 {object} model.RunStatus
// @Failure  404 {object} errorPayload
// @Security BearerAuth
// @Router   /runs/{id} [get]
func GetRun(l RunLauncher) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := auth.FromCtx(c)
		if !ok {
			return writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		}
		st, found := l.Get(id.UID, c.Params("id"))
		if !found {
			return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "run not found")
		}
		return c.JSON(st)
	}
}
