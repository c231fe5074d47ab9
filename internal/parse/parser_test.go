package parse

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestParser(t *testing.T) *Parser {
	t.Helper()
	return NewParser(Options{OutputDir: t.TempDir()}, zap.NewNop().Sugar())
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseTextFile(t *testing.T) {
	parser := newTestParser(t)

	for _, name := range []string{"notes.txt", "readme.md"} {
		path := writeFile(t, name, "first line\nsecond line")

		blocks, err := parser.Parse(context.Background(), path, "")
		require.NoError(t, err)
		require.Len(t, blocks, 1)
		assert.Equal(t, TypeText, blocks[0].Type)
		assert.Equal(t, "first line\nsecond line", blocks[0].Text)
	}
}

func TestParseHTMLFile(t *testing.T) {
	parser := newTestParser(t)
	path := writeFile(t, "page.html", "<html><body><p>Hello world</p><p>Second paragraph</p></body></html>")

	blocks, err := parser.Parse(context.Background(), path, "")
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, TypeText, blocks[0].Type)
	assert.Contains(t, blocks[0].Text, "Hello world")
	assert.Contains(t, blocks[0].Text, "Second paragraph")
	assert.NotContains(t, blocks[0].Text, "<p>")
}

func TestParsePDFTxtMethodRejectsBrokenFile(t *testing.T) {
	parser := newTestParser(t)
	// The txt method forces in-process text-layer extraction, which must
	// reject a file that is not a PDF at all.
	path := writeFile(t, "broken.pdf", "this is not a pdf")

	_, err := parser.Parse(context.Background(), path, "txt")
	assert.Error(t, err)
}

func TestParseUnknownExtension(t *testing.T) {
	parser := newTestParser(t)
	path := writeFile(t, "slides.xyz", "binary-ish content")

	_, err := parser.Parse(context.Background(), path, "")
	assert.Error(t, err)
}
