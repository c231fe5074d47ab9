package ingest

import (
	"fmt"
	"strings"

	"anyrag/internal/retrieval"
)

// Splitter splits text into overlapping chunks measured in estimated tokens.
// It satisfies the langchaingo TextSplitter interface so document loaders can
// drive it directly.
type Splitter struct {
	chunkTokens   int
	overlapTokens int
}

// NewSplitter returns a new Splitter.
func NewSplitter(chunkTokens, overlapTokens int) (*Splitter, error) {
	if chunkTokens <= 0 {
		return &Splitter{}, fmt.Errorf("chunkTokens must be greater than 0")
	}

	if chunkTokens <= overlapTokens {
		return &Splitter{}, fmt.Errorf("chunkTokens must be greater than overlapTokens")
	}

	return &Splitter{
		chunkTokens:   chunkTokens,
		overlapTokens: overlapTokens,
	}, nil
}

// SplitText splits text into chunks.
func (s *Splitter) SplitText(text string) ([]string, error) {
	words := strings.Fields(text)
	chunks := make([]string, 0)

	for i := 0; i < len(words); i += s.chunkTokens - s.overlapTokens {
		end := i + s.chunkTokens
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[i:end], " "))
		if end == len(words) {
			break
		}
	}

	return chunks, nil
}

// SplitByCharacter splits text on a delimiter instead of the sliding window.
// Oversized pieces are re-split by tokens unless only is set.
func (s *Splitter) SplitByCharacter(text, delimiter string, only bool) ([]string, error) {
	chunks := make([]string, 0)

	for _, piece := range strings.Split(text, delimiter) {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}

		if only || retrieval.EstimateTokens(piece) <= s.chunkTokens {
			chunks = append(chunks, piece)
			continue
		}

		sub, err := s.SplitText(piece)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, sub...)
	}

	return chunks, nil
}
