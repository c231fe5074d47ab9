package parse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeContentList(t *testing.T) {
	data := []byte(`[
		{"type": "text", "text": "Introduction paragraph.", "page_idx": 0},
		{"type": "text", "text": "   ", "page_idx": 0},
		{"type": "image", "img_path": "images/fig1.jpg", "img_caption": ["Figure 1"], "page_idx": 1},
		{"type": "table", "table_body": "| a | b |", "table_caption": ["Results"], "page_idx": 2},
		{"type": "equation", "latex": "E = mc^2", "page_idx": 3},
		{"text": "untyped block"}
	]`)

	blocks, err := DecodeContentList(data)
	require.NoError(t, err)

	// The whitespace-only block is dropped; the untyped one defaults to text.
	require.Len(t, blocks, 5)
	assert.Equal(t, TypeText, blocks[0].Type)
	assert.Equal(t, TypeImage, blocks[1].Type)
	assert.Equal(t, "images/fig1.jpg", blocks[1].ImgPath)
	assert.Equal(t, TypeTable, blocks[2].Type)
	assert.Equal(t, 2, blocks[2].PageIdx)
	assert.Equal(t, TypeEquation, blocks[3].Type)
	assert.Equal(t, TypeText, blocks[4].Type)
	assert.Equal(t, "untyped block", blocks[4].Text)
}

func TestDecodeContentListKeepsCaptionlessImages(t *testing.T) {
	data := []byte(`[{"type": "image", "img_path": "images/fig2.jpg"}]`)

	blocks, err := DecodeContentList(data)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, TypeImage, blocks[0].Type)
}

func TestDecodeContentListRejectsMalformedJSON(t *testing.T) {
	_, err := DecodeContentList([]byte(`{"not": "a list"}`))
	assert.Error(t, err)
}

func TestRawText(t *testing.T) {
	tests := []struct {
		name  string
		block ContentBlock
		want  string
	}{
		{
			name:  "text",
			block: ContentBlock{Type: TypeText, Text: "hello"},
			want:  "hello",
		},
		{
			name:  "image joins captions and footnotes",
			block: ContentBlock{Type: TypeImage, ImgCaption: []string{"Figure 1"}, ImgFootnote: []string{"Source: internal"}},
			want:  "Figure 1\nSource: internal",
		},
		{
			name:  "table includes body",
			block: ContentBlock{Type: TypeTable, TableCaption: []string{"Results"}, TableBody: "| a |"},
			want:  "Results\n| a |",
		},
		{
			name:  "equation prefers latex",
			block: ContentBlock{Type: TypeEquation, Latex: "x^2", Text: "x squared"},
			want:  "x^2",
		},
		{
			name:  "equation falls back to text",
			block: ContentBlock{Type: TypeEquation, Text: "x squared"},
			want:  "x squared",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.block.RawText())
		})
	}
}

func TestContentDocID(t *testing.T) {
	blocks := []ContentBlock{
		{Type: TypeText, Text: "some content"},
		{Type: TypeTable, TableBody: "| a |"},
	}

	id := ContentDocID(blocks)
	assert.True(t, strings.HasPrefix(id, "doc-"))
	assert.Len(t, id, len("doc-")+32)

	// Same content, same ID; different content, different ID.
	assert.Equal(t, id, ContentDocID(blocks))
	assert.NotEqual(t, id, ContentDocID([]ContentBlock{{Type: TypeText, Text: "other content"}}))
}

func TestContentDocIDIgnoresPagePlacement(t *testing.T) {
	a := []ContentBlock{{Type: TypeText, Text: "same words", PageIdx: 0}}
	b := []ContentBlock{{Type: TypeText, Text: "same words", PageIdx: 7}}

	assert.Equal(t, ContentDocID(a), ContentDocID(b))
}
