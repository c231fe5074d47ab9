package ingest

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"

	"github.com/jaytaylor/html2text"
	"golang.org/x/sync/errgroup"

	"anyrag/internal/parse"
	"anyrag/models"
)

// modalChunk is a rendered non-text block, ready for embedding.
type modalChunk struct {
	kind    models.ChunkKind
	text    string
	pageIdx int
}

// renderModalBlocks turns image, table and equation blocks into searchable
// text. Blocks that need a model call run concurrently up to MAX_ASYNC; a
// failed call degrades to the block's raw content rather than failing the
// document.
func (p *Processor) renderModalBlocks(ctx context.Context, blocks []parse.ContentBlock) ([]modalChunk, error) {
	results := make([]modalChunk, len(blocks))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.maxAsync)
	for i, block := range blocks {
		i, block := i, block
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			results[i] = p.renderModalBlock(groupCtx, block)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	chunks := make([]modalChunk, 0, len(results))
	for _, chunk := range results {
		if strings.TrimSpace(chunk.text) == "" {
			continue
		}
		chunks = append(chunks, chunk)
	}

	return chunks, nil
}

func (p *Processor) renderModalBlock(ctx context.Context, block parse.ContentBlock) modalChunk {
	switch block.Type {
	case parse.TypeImage:
		return p.renderImage(ctx, block)
	case parse.TypeTable:
		return p.renderTable(ctx, block)
	case parse.TypeEquation:
		return p.renderEquation(ctx, block)
	}

	return modalChunk{}
}

// renderImage describes an extracted image through the vision model when
// image processing is enabled; otherwise it keeps the captions.
func (p *Processor) renderImage(ctx context.Context, block parse.ContentBlock) modalChunk {
	caption := joinParts(flatten(block.ImgCaption), flatten(block.ImgFootnote))
	text := caption

	if p.enableImages && block.ImgPath != "" {
		if image, err := encodeImageFile(block.ImgPath); err != nil {
			p.logger.Warnw("could not read extracted image", "path", block.ImgPath, "error", err)
		} else if description, err := p.generator.DescribeImage(ctx, image, block.ImgCaption, block.ImgFootnote); err != nil {
			p.logger.Warnw("image description failed", "path", block.ImgPath, "error", err)
		} else {
			text = joinParts(description, caption)
		}
	}

	return modalChunk{kind: models.ImageChunk, text: text, pageIdx: block.PageIdx}
}

func (p *Processor) renderTable(ctx context.Context, block parse.ContentBlock) modalChunk {
	caption := flatten(block.TableCaption)
	footnote := flatten(block.TableFootnote)

	// MinerU emits table bodies as HTML; flatten the markup before embedding.
	body := block.TableBody
	if converted, err := html2text.FromString(body); err == nil && strings.TrimSpace(converted) != "" {
		body = converted
	}
	text := joinParts(caption, body, footnote)

	if p.enableTables && strings.TrimSpace(block.TableBody) != "" {
		analysis, err := p.generator.AnalyzeTable(ctx, block.TableBody, block.TableCaption, block.TableFootnote)
		if err != nil {
			p.logger.Warnw("table analysis failed", "error", err)
		} else {
			text = joinParts(caption, body, footnote, analysis)
		}
	}

	return modalChunk{kind: models.TableChunk, text: text, pageIdx: block.PageIdx}
}

func (p *Processor) renderEquation(ctx context.Context, block parse.ContentBlock) modalChunk {
	text := joinParts(block.Latex, block.Text)

	if p.enableEquations && strings.TrimSpace(block.Latex) != "" {
		explanation, err := p.generator.ExplainEquation(ctx, block.Latex, block.Text)
		if err != nil {
			p.logger.Warnw("equation explanation failed", "error", err)
		} else {
			text = joinParts(block.Latex, explanation)
		}
	}

	return modalChunk{kind: models.EquationChunk, text: text, pageIdx: block.PageIdx}
}

// encodeImageFile reads an image from disk into a data URL for the vision
// model.
func encodeImageFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	mime := "image/jpeg"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		mime = "image/png"
	case ".gif":
		mime = "image/gif"
	case ".webp":
		mime = "image/webp"
	case ".bmp":
		mime = "image/bmp"
	}

	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func flatten(items []string) string {
	return strings.TrimSpace(strings.Join(items, " "))
}

func joinParts(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			kept = append(kept, part)
		}
	}

	return strings.Join(kept, "\n")
}
