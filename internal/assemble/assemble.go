// Package assemble converts an ordered scan session into a single PDF.
package assemble

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	domain "legalease/internal/model"
)

// ErrConversion is returned when no document could be produced from the pages.
var ErrConversion = errors.New("conversion failed")

// pageLayout places every image on its own A4 page, centered and scaled to fit with aspect ratio kept.
const pageLayout = "f:A4, pos:c, sc:1.0 rel"

const probeConcurrency = 4

// Assembler renders page images into one PDF under workDir.
type Assembler struct {
	workDir string
	logger  *slog.Logger
	now     func() time.Time
}

func New(workDir string, logger *slog.Logger) *Assembler {
	if workDir == "" {
		workDir = os.TempDir()
	}
	return &Assembler{workDir: workDir, logger: logger, now: time.Now}
}

// Assemble writes one page per loadable image, in input order.
// Images that cannot be decoded are skipped; the run fails only when none remain.
func (a *Assembler) Assemble(ctx context.Context, pages []domain.PageImage) (domain.DocumentArtifact, error) {
	if len(pages) == 0 {
		return domain.DocumentArtifact{}, fmt.Errorf("%w: no pages provided", ErrConversion)
	}

	loaded, err := a.loadable(ctx, pages)
	if err != nil {
		return domain.DocumentArtifact{}, err
	}
	if len(loaded) == 0 {
		return domain.DocumentArtifact{}, fmt.Errorf("%w: none of %d pages could be loaded", ErrConversion, len(pages))
	}

	imp, err := api.Import(pageLayout, types.POINTS)
	if err != nil {
		return domain.DocumentArtifact{}, fmt.Errorf("%w: import layout: %v", ErrConversion, err)
	}

	name := a.fileName()
	out := filepath.Join(a.workDir, name)
	count, err := render(loaded, out, imp)
	if err != nil {
		_ = os.Remove(out)
		return domain.DocumentArtifact{}, err
	}
	if count != len(loaded) {
		_ = os.Remove(out)
		return domain.DocumentArtifact{}, fmt.Errorf("%w: expected %d pages, rendered %d", ErrConversion, len(loaded), count)
	}

	a.logger.Info("document_assembled", "file", name, "pages", count, "skipped", len(pages)-len(loaded))
	return domain.DocumentArtifact{Path: out, Name: name, Pages: count}, nil
}

// render writes the images to out and returns the page count of the result.
func render(images []string, out string, imp *pdfcpu.Import) (int, error) {
	if err := api.ImportImagesFile(images, out, imp, model.NewDefaultConfiguration()); err != nil {
		return 0, fmt.Errorf("%w: render: %v", ErrConversion, err)
	}
	if st, err := os.Stat(out); err != nil || st.Size() == 0 {
		return 0, fmt.Errorf("%w: renderer produced no output at %s", ErrConversion, out)
	}
	count, err := api.PageCountFile(out)
	if err != nil {
		return 0, fmt.Errorf("%w: page count: %v", ErrConversion, err)
	}
	return count, nil
}

// loadable decodes every page concurrently and returns the paths that decoded, in page order.
func (a *Assembler) loadable(ctx context.Context, pages []domain.PageImage) ([]string, error) {
	ok := make([]bool, len(pages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(probeConcurrency)
	for i, p := range pages {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := decode(p.Path); err != nil {
				a.logger.Warn("page_skipped", "index", p.Index, "path", p.Path, "error", err.Error())
				return nil
			}
			ok[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversion, err)
	}

	paths := make([]string, 0, len(pages))
	for i, p := range pages {
		if ok[i] {
			paths = append(paths, p.Path)
		}
	}
	return paths, nil
}

func decode(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, _, err = image.Decode(f)
	return err
}

func (a *Assembler) fileName() string {
	return fmt.Sprintf("document_%d_%s.pdf", a.now().UnixMilli(), uuid.NewString()[:8])
}
