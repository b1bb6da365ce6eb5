package pdf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"ragchat/internal/domain"
	"ragchat/internal/logger"
)

// pageSource is the part of a parsed PDF the extractor needs.
type pageSource interface {
	NumPage() int
	PageText(num int) (string, error)
}

type openFunc func(path string) (pageSource, io.Closer, error)

// Extractor reads uploaded PDF files page by page.
type Extractor struct {
	scratchDir string
	open       openFunc
	log        *logger.Logger
}

// NewExtractor returns an Extractor that writes uploads to scratchDir while
// parsing them. An empty scratchDir uses the system temp directory.
func NewExtractor(scratchDir string, log *logger.Logger) *Extractor {
	if log == nil {
		log = logger.NewNop()
	}
	return &Extractor{scratchDir: scratchDir, open: openLedongthuc, log: log}
}

func (e *Extractor) Extract(_ context.Context, ref domain.SourceRef) (*domain.Document, error) {
	name := filepath.Base(ref.Locator)
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		return nil, fmt.Errorf("%s: not a .pdf file: %w", name, domain.ErrUnparsableFile)
	}
	if !isPDF(ref.Data) {
		return nil, fmt.Errorf("%s: missing %%PDF- header: %w", name, domain.ErrUnparsableFile)
	}

	path, err := e.writeScratch(ref.Data)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			e.log.Warn("remove scratch file", "path", path, "error", err)
		}
	}()

	text, pages, err := e.readPages(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", name, err, domain.ErrUnparsableFile)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%s: no extractable text: %w", name, domain.ErrUnparsableFile)
	}
	return &domain.Document{
		ID:      name,
		Kind:    domain.SourceFile,
		Title:   strings.TrimSuffix(name, filepath.Ext(name)),
		Content: text,
		Pages:   pages,
	}, nil
}

func (e *Extractor) writeScratch(data []byte) (string, error) {
	f, err := os.CreateTemp(e.scratchDir, "ragchat-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create scratch file: %w", err)
	}
	path := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write scratch file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close scratch file: %w", err)
	}
	return path, nil
}

// readPages joins the text of every page with newlines. Pages without
// text are skipped.
func (e *Extractor) readPages(path string) (text string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()
	src, closer, err := e.open(path)
	if err != nil {
		return "", 0, err
	}
	defer closer.Close()

	pages = src.NumPage()
	parts := make([]string, 0, pages)
	for i := 1; i <= pages; i++ {
		pageText, err := src.PageText(i)
		if err != nil {
			return "", 0, fmt.Errorf("page %d: %w", i, err)
		}
		pageText = strings.TrimSpace(pageText)
		if pageText != "" {
			parts = append(parts, pageText)
		}
	}
	return strings.Join(parts, "\n"), pages, nil
}

func isPDF(b []byte) bool {
	return len(b) >= 5 && string(b[:5]) == "%PDF-"
}

type ledongthucSource struct {
	r *pdf.Reader
}

func openLedongthuc(path string) (pageSource, io.Closer, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return ledongthucSource{r: r}, f, nil
}

func (s ledongthucSource) NumPage() int { return s.r.NumPage() }

func (s ledongthucSource) PageText(num int) (string, error) {
	p := s.r.Page(num)
	if p.V.IsNull() {
		return "", nil
	}
	return p.GetPlainText(nil)
}
