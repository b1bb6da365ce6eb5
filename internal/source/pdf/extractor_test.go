package pdf

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
)

type fakePages struct {
	pages []string
	err   error
}

func (f fakePages) NumPage() int { return len(f.pages) }

func (f fakePages) PageText(num int) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.pages[num-1], nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func newFakeExtractor(t *testing.T, src pageSource) (*Extractor, string, *string) {
	t.Helper()
	dir := t.TempDir()
	e := NewExtractor(dir, nil)
	var opened string
	e.open = func(path string) (pageSource, io.Closer, error) {
		opened = path
		_, err := os.Stat(path)
		require.NoError(t, err)
		return src, nopCloser{}, nil
	}
	return e, dir, &opened
}

func pdfRef(name string) domain.SourceRef {
	return domain.SourceRef{Kind: domain.SourceFile, Locator: name, Data: []byte("%PDF-1.7\n...")}
}

func TestExtractJoinsPages(t *testing.T) {
	e, dir, opened := newFakeExtractor(t, fakePages{pages: []string{" Page one. ", "", "Page three."}})
	doc, err := e.Extract(context.Background(), pdfRef("/uploads/Report.PDF"))
	require.NoError(t, err)
	assert.Equal(t, "Report.PDF", doc.ID)
	assert.Equal(t, "Report", doc.Title)
	assert.Equal(t, domain.SourceFile, doc.Kind)
	assert.Equal(t, 3, doc.Pages)
	assert.Equal(t, "Page one.\nPage three.", doc.Content)

	assert.NotEmpty(t, *opened)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch file must be removed")
}

func TestExtractRejectsNonPDF(t *testing.T) {
	e := NewExtractor(t.TempDir(), nil)
	_, err := e.Extract(context.Background(), domain.SourceRef{Locator: "notes.txt", Data: []byte("%PDF-1.4")})
	assert.ErrorIs(t, err, domain.ErrUnparsableFile)

	_, err = e.Extract(context.Background(), domain.SourceRef{Locator: "notes.pdf", Data: []byte("hello")})
	assert.ErrorIs(t, err, domain.ErrUnparsableFile)
}

func TestExtractNoText(t *testing.T) {
	e, dir, _ := newFakeExtractor(t, fakePages{pages: []string{"  ", ""}})
	_, err := e.Extract(context.Background(), pdfRef("scan.pdf"))
	assert.ErrorIs(t, err, domain.ErrUnparsableFile)
	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries)
}

func TestExtractPageError(t *testing.T) {
	e, dir, _ := newFakeExtractor(t, fakePages{pages: []string{"x"}, err: errors.New("bad font")})
	_, err := e.Extract(context.Background(), pdfRef("broken.pdf"))
	assert.ErrorIs(t, err, domain.ErrUnparsableFile)
	assert.Equal(t, domain.KindUnparsableFile, domain.KindOf(err))
	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries)
}

func TestExtractMalformedPDF(t *testing.T) {
	dir := t.TempDir()
	e := NewExtractor(dir, nil)
	_, err := e.Extract(context.Background(), domain.SourceRef{Locator: "junk.pdf", Data: []byte("%PDF-1.4\nnot really a pdf")})
	assert.ErrorIs(t, err, domain.ErrUnparsableFile)
	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries)
}
