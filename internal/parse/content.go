package parse

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// Block types in a content list.
const (
	TypeText     = "text"
	TypeImage    = "image"
	TypeTable    = "table"
	TypeEquation = "equation"
)

// ContentBlock is one entry of a parsed document's content list. The field
// set matches the MinerU content_list.json layout, which is also the payload
// accepted for direct insertion.
type ContentBlock struct {
	Type          string   `json:"type"`
	Text          string   `json:"text,omitempty"`
	ImgPath       string   `json:"img_path,omitempty"`
	ImgCaption    []string `json:"img_caption,omitempty"`
	ImgFootnote   []string `json:"img_footnote,omitempty"`
	TableBody     string   `json:"table_body,omitempty"`
	TableCaption  []string `json:"table_caption,omitempty"`
	TableFootnote []string `json:"table_footnote,omitempty"`
	Latex         string   `json:"latex,omitempty"`
	PageIdx       int      `json:"page_idx"`
}

// RawText is the block's unprocessed textual payload, used for hashing and as
// the fallback when modal processing is disabled.
func (b ContentBlock) RawText() string {
	switch b.Type {
	case TypeText:
		return b.Text
	case TypeImage:
		parts := append([]string{}, b.ImgCaption...)
		parts = append(parts, b.ImgFootnote...)
		return strings.Join(parts, "\n")
	case TypeTable:
		parts := append([]string{}, b.TableCaption...)
		if b.TableBody != "" {
			parts = append(parts, b.TableBody)
		}
		parts = append(parts, b.TableFootnote...)
		return strings.Join(parts, "\n")
	case TypeEquation:
		if b.Latex != "" {
			return b.Latex
		}
		return b.Text
	default:
		return b.Text
	}
}

// ContentDocID derives the content-addressed document ID for a content list.
// Identical content always hashes to the same ID regardless of file name.
func ContentDocID(blocks []ContentBlock) string {
	var b strings.Builder
	for _, block := range blocks {
		b.WriteString(block.Type)
		b.WriteString("\x1f")
		b.WriteString(block.RawText())
		b.WriteString("\x1e")
	}

	return DocID([]byte(b.String()))
}

// DocID derives the content-addressed document ID for raw bytes.
func DocID(content []byte) string {
	sum := md5.Sum(content)
	return "doc-" + hex.EncodeToString(sum[:])
}
