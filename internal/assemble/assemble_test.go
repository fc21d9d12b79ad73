package assemble

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legalease/internal/logging"
	domain "legalease/internal/model"
)

func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return p
}

func TestAssemble(t *testing.T) {
	src := t.TempDir()
	a := New(t.TempDir(), logging.Discard())

	t.Run("one page per image", func(t *testing.T) {
		pages := []domain.PageImage{
			{Index: 0, Path: writePNG(t, src, "p0.png", 40, 60)},
			{Index: 1, Path: writePNG(t, src, "p1.png", 80, 20)},
			{Index: 2, Path: writePNG(t, src, "p2.png", 50, 50)},
		}

		doc, err := a.Assemble(context.Background(), pages)
		require.NoError(t, err)
		assert.Equal(t, 3, doc.Pages)
		assert.True(t, strings.HasPrefix(doc.Name, "document_"))
		assert.True(t, strings.HasSuffix(doc.Name, ".pdf"))

		n, err := api.PageCountFile(doc.Path)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("unreadable page is skipped", func(t *testing.T) {
		broken := filepath.Join(src, "broken.png")
		require.NoError(t, os.WriteFile(broken, []byte("not an image"), 0o644))

		pages := []domain.PageImage{
			{Index: 0, Path: writePNG(t, src, "q0.png", 30, 30)},
			{Index: 1, Path: broken},
			{Index: 2, Path: writePNG(t, src, "q2.png", 30, 30)},
		}

		doc, err := a.Assemble(context.Background(), pages)
		require.NoError(t, err)
		assert.Equal(t, 2, doc.Pages)
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := a.Assemble(context.Background(), nil)
		assert.ErrorIs(t, err, ErrConversion)
	})

	t.Run("nothing loadable", func(t *testing.T) {
		broken := filepath.Join(src, "only.jpg")
		require.NoError(t, os.WriteFile(broken, []byte{0xff, 0xd8, 0x00}, 0o644))

		_, err := a.Assemble(context.Background(), []domain.PageImage{
			{Index: 0, Path: broken},
			{Index: 1, Path: filepath.Join(src, "missing.png")},
		})
		assert.ErrorIs(t, err, ErrConversion)
	})

	t.Run("unique names", func(t *testing.T) {
		pages := []domain.PageImage{{Index: 0, Path: writePNG(t, src, "u.png", 10, 10)}}
		d1, err := a.Assemble(context.Background(), pages)
		require.NoError(t, err)
		d2, err := a.Assemble(context.Background(), pages)
		require.NoError(t, err)
		assert.NotEqual(t, d1.Path, d2.Path)
	})
}
