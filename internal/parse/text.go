package parse

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jaytaylor/html2text"
)

// parseTextFile reads a plain-text or markdown file as a single text block.
// Splitting into chunks happens downstream.
func parseTextFile(path string) ([]ContentBlock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %v: %w", filepath.Base(path), err)
	}

	return []ContentBlock{{Type: TypeText, Text: string(data)}}, nil
}

// parseHTMLFile converts an HTML file to text before blocking it.
func parseHTMLFile(path string) ([]ContentBlock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %v: %w", filepath.Base(path), err)
	}

	text, err := html2text.FromString(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to convert %v to text: %w", filepath.Base(path), err)
	}

	return []ContentBlock{{Type: TypeText, Text: text}}, nil
}
