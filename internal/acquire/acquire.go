// Package acquire turns raw user input into pipeline input: an ordered scan session
// or a single picked document. A user backing out is reported as a Cancelled input, not an error.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"legalease/internal/model"
)

var (
	ErrTooManyPages = errors.New("too many pages in scan session")
	ErrPageMissing  = errors.New("page image is missing")
	ErrNotDocument  = errors.New("picked file is not a document")
)

// Kind tags which variant an Input holds.
type Kind int

const (
	KindCancelled Kind = iota
	KindPages
	KindDocument
)

func (k Kind) String() string {
	switch k {
	case KindPages:
		return "pages"
	case KindDocument:
		return "document"
	default:
		return "cancelled"
	}
}

// Input is the result of acquisition. Exactly one variant is set:
// Pages for a scan session, Document for a picked file, or neither when cancelled.
type Input struct {
	Pages    []model.PageImage
	Document *model.DocumentArtifact
}

// Cancelled returns the input signalling that the user backed out.
func Cancelled() Input { return Input{} }

// Cancelled reports whether the input carries no pages and no document.
func (in Input) Cancelled() bool { return in.Kind() == KindCancelled }

func (in Input) Kind() Kind {
	switch {
	case in.Document != nil:
		return KindDocument
	case len(in.Pages) > 0:
		return KindPages
	default:
		return KindCancelled
	}
}

// Source produces pipeline input.
type Source interface {
	Acquire(ctx context.Context) (Input, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (Input, error)

func (f SourceFunc) Acquire(ctx context.Context) (Input, error) { return f(ctx) }

type scanSource struct {
	paths    []string
	maxPages int
}

// Scan returns a scan-session source over page image files, kept in the given order.
// A session with no pages is a cancellation. maxPages <= 0 means unbounded.
func Scan(paths []string, maxPages int) Source {
	return &scanSource{paths: paths, maxPages: maxPages}
}

func (s *scanSource) Acquire(ctx context.Context) (Input, error) {
	if ctx.Err() != nil || len(s.paths) == 0 {
		return Cancelled(), nil
	}
	if s.maxPages > 0 && len(s.paths) > s.maxPages {
		return Input{}, fmt.Errorf("%w: got %d, limit %d", ErrTooManyPages, len(s.paths), s.maxPages)
	}

	pages := make([]model.PageImage, 0, len(s.paths))
	for i, p := range s.paths {
		if _, err := os.Stat(p); err != nil {
			return Input{}, fmt.Errorf("%w: page %d: %v", ErrPageMissing, i, err)
		}
		pages = append(pages, model.PageImage{Index: i, Path: p})
	}
	return Input{Pages: pages}, nil
}

type pickSource struct {
	path string
}

// Pick returns a source for a single picked PDF. An empty path is a cancellation.
func Pick(path string) Source {
	return &pickSource{path: path}
}

var pdfMagic = []byte("%PDF-")

func (s *pickSource) Acquire(ctx context.Context) (Input, error) {
	if ctx.Err() != nil || s.path == "" {
		return Cancelled(), nil
	}

	f, err := os.Open(s.path)
	if err != nil {
		return Input{}, fmt.Errorf("open picked document: %w", err)
	}
	defer f.Close()

	head := make([]byte, len(pdfMagic))
	if n, _ := f.Read(head); n < len(pdfMagic) || string(head) != string(pdfMagic) {
		return Input{}, fmt.Errorf("%w: %s", ErrNotDocument, filepath.Base(s.path))
	}

	return Input{Document: &model.DocumentArtifact{
		Path: s.path,
		Name: filepath.Base(s.path),
	}}, nil
}
