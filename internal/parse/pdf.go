package parse

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dslipak/pdf"
)

// parsePDFText extracts the text layer of a PDF page by page. It covers
// digital PDFs when mineru is unavailable or the method is txt; scanned
// documents have no text layer and need OCR parsing instead.
func parsePDFText(path string) ([]ContentBlock, error) {
	reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open %v: %w", filepath.Base(path), err)
	}

	var blocks []ContentBlock
	fonts := make(map[string]*pdf.Font)
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(fonts)
		if err != nil {
			return nil, fmt.Errorf("could not read page %v of %v: %w", i, filepath.Base(path), err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		blocks = append(blocks, ContentBlock{Type: TypeText, Text: text, PageIdx: i - 1})
	}

	if len(blocks) == 0 {
		return nil, fmt.Errorf("no text layer in %v, OCR parsing required", filepath.Base(path))
	}

	return blocks, nil
}
