package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pgvector/pgvector-go"
	"github.com/tmc/langchaingo/documentloaders"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"anyrag/core"
	"anyrag/internal/parse"
	"anyrag/internal/retrieval"
	"anyrag/models"
)

// BATCH_SIZE is how many chunk rows are inserted per statement.
const BATCH_SIZE = 50

// Result describes the outcome of processing a single input.
type Result struct {
	Document *models.Document
	// Duplicate is set when the content was already processed and ingestion
	// was skipped.
	Duplicate bool
}

// BatchResult aggregates a multi-file run. Failures are collected per file
// instead of aborting the batch.
type BatchResult struct {
	Total       int
	Succeeded   int
	Duplicates  int
	FailedFiles []string
	Errors      map[string]string
}

// SuccessRate is the percentage of files that processed cleanly.
func (r *BatchResult) SuccessRate() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Succeeded) / float64(r.Total) * 100
}

// Processor runs the ingest pipeline: parse into content blocks, split text
// into chunks, render modal blocks through the model bindings, embed
// everything and store it atomically with the owning document row.
type Processor struct {
	db        *gorm.DB
	parser    *parse.Parser
	splitter  *Splitter
	embedder  *retrieval.Embedder
	generator *retrieval.Generator
	logger    *zap.SugaredLogger

	parserName    string
	defaultMethod string
	maxAsync      int

	enableImages    bool
	enableTables    bool
	enableEquations bool
	displayStats    bool

	// sem caps how many files are processed at once server-wide, across the
	// upload, batch and CLI paths.
	sem chan struct{}
}

func NewProcessor(db *gorm.DB, parser *parse.Parser, embedder *retrieval.Embedder, generator *retrieval.Generator, cfg *core.Config, logger *zap.SugaredLogger) (*Processor, error) {
	splitter, err := NewSplitter(cfg.ChunkTokens, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	return &Processor{
		db:        db,
		parser:    parser,
		splitter:  splitter,
		embedder:  embedder,
		generator: generator,
		logger:    logger,

		parserName:    cfg.Parser,
		defaultMethod: cfg.ParseMethod,
		maxAsync:      cfg.MaxAsync,

		enableImages:    cfg.EnableImages,
		enableTables:    cfg.EnableTables,
		enableEquations: cfg.EnableEquations,
		displayStats:    cfg.DisplayStats,

		sem: make(chan struct{}, cfg.MaxConcurrentFiles),
	}, nil
}

// ingestOptions carries per-request knobs into the shared pipeline.
type ingestOptions struct {
	fileName     string
	source       string
	parser       string
	method       string
	docID        string
	splitBy      string
	splitOnly    bool
	displayStats *bool
}

// ContentListOptions configures direct content-list ingestion.
type ContentListOptions struct {
	FileName string
	// DocID overrides the content-derived identifier.
	DocID string
	// SplitBy switches text chunking to a delimiter. SplitOnly disables the
	// token re-split of oversized pieces.
	SplitBy   string
	SplitOnly bool
	// DisplayStats overrides the configured content-stats logging.
	DisplayStats *bool
}

// BatchOptions configures a multi-file run.
type BatchOptions struct {
	// Method is the parse method for every file; empty uses the default.
	Method string
	// MaxWorkers caps files processed concurrently within this batch.
	MaxWorkers   int
	DisplayStats *bool
}

// ProcessFile parses, chunks, embeds and stores one file. An empty method
// uses the configured default.
func (p *Processor) ProcessFile(ctx context.Context, path, method, source string) (Result, error) {
	return p.processPath(ctx, path, ingestOptions{source: source, method: method})
}

func (p *Processor) processPath(ctx context.Context, path string, opts ingestOptions) (Result, error) {
	if err := p.acquire(ctx); err != nil {
		return Result{}, err
	}
	defer p.release()

	if opts.method == "" {
		opts.method = p.defaultMethod
	}
	opts.fileName = filepath.Base(path)
	opts.parser = p.parserName

	blocks, err := p.parser.Parse(ctx, path, opts.method)
	if err != nil {
		return Result{}, err
	}

	return p.ingest(ctx, blocks, opts)
}

// ProcessContentList ingests pre-parsed content blocks, as sent to the
// content endpoint.
func (p *Processor) ProcessContentList(ctx context.Context, blocks []parse.ContentBlock, opts ContentListOptions) (Result, error) {
	if err := p.acquire(ctx); err != nil {
		return Result{}, err
	}
	defer p.release()

	fileName := opts.FileName
	if fileName == "" {
		fileName = "api_content.txt"
	}

	return p.ingest(ctx, blocks, ingestOptions{
		fileName:     fileName,
		source:       "api",
		docID:        opts.DocID,
		splitBy:      opts.SplitBy,
		splitOnly:    opts.SplitOnly,
		displayStats: opts.DisplayStats,
	})
}

// ProcessBatch runs the pipeline over many files with up to MaxWorkers in
// flight. Individual failures are recorded, not propagated.
func (p *Processor) ProcessBatch(ctx context.Context, paths []string, opts BatchOptions) *BatchResult {
	if opts.MaxWorkers < 1 {
		opts.MaxWorkers = 1
	}

	result := &BatchResult{Total: len(paths), Errors: map[string]string{}}
	var mu sync.Mutex

	var group errgroup.Group
	group.SetLimit(opts.MaxWorkers)
	for _, path := range paths {
		path := path
		group.Go(func() error {
			processed, err := p.processPath(ctx, path, ingestOptions{
				source:       "batch",
				method:       opts.Method,
				displayStats: opts.DisplayStats,
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				name := filepath.Base(path)
				result.FailedFiles = append(result.FailedFiles, name)
				result.Errors[name] = err.Error()
				p.logger.Errorw("batch file failed", "file", path, "error", err)
				return nil
			}

			result.Succeeded++
			if processed.Duplicate {
				result.Duplicates++
			}
			return nil
		})
	}
	group.Wait()

	sort.Strings(result.FailedFiles)
	return result
}

func (p *Processor) ingest(ctx context.Context, blocks []parse.ContentBlock, opts ingestOptions) (Result, error) {
	if len(blocks) == 0 {
		return Result{}, fmt.Errorf("no content found in %v", opts.fileName)
	}

	docID := opts.docID
	if docID == "" {
		docID = parse.ContentDocID(blocks)
	}

	existing, err := models.GetDocumentByDocID(p.db, docID)
	if err != nil {
		return Result{}, err
	}
	if existing != nil && existing.Status == models.DocProcessed {
		p.logger.Infow("document already processed, skipping", "doc_id", docID, "file", opts.fileName)
		return Result{Document: existing, Duplicate: true}, nil
	}

	showStats := p.displayStats
	if opts.displayStats != nil {
		showStats = *opts.displayStats
	}
	if showStats {
		p.logContentStats(opts.fileName, blocks)
	}

	document := existing
	if document == nil {
		document, err = models.CreateDocument(p.db, docID, opts.fileName, opts.source, opts.parser, opts.method)
		if err != nil {
			return Result{}, err
		}
	} else {
		// A pending or failed row from an earlier attempt; reprocess it.
		document.Status = models.DocProcessing
		document.FileName = opts.fileName
		document.Error = ""
		if err := p.db.Save(document).Error; err != nil {
			return Result{}, err
		}
	}

	chunks, fullText, err := p.buildChunks(ctx, blocks, opts)
	if err != nil {
		p.fail(document, err)
		return Result{}, err
	}
	if len(chunks) == 0 {
		err := fmt.Errorf("no indexable content in %v", opts.fileName)
		p.fail(document, err)
		return Result{}, err
	}

	// The document summary backs global retrieval; losing it degrades the
	// global mode for this document but is not fatal.
	summary, err := p.generator.Summarize(ctx, opts.fileName, fullText)
	if err != nil {
		p.logger.Warnw("summary generation failed", "file", opts.fileName, "error", err)
	} else if summary != "" {
		document.Summary = summary
		chunks = append(chunks, models.DocumentChunk{
			ChunkIndex: len(chunks),
			Kind:       models.SummaryChunk,
			RawContent: summary,
		})
	}

	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].RawContent
	}
	embeddings, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		p.fail(document, err)
		return Result{}, err
	}

	for i := range chunks {
		chunks[i].DocumentID = document.ID
		chunks[i].Tokens = retrieval.EstimateTokens(chunks[i].RawContent)
		chunks[i].Embedding = pgvector.NewVector(embeddings[i])
	}

	err = p.db.Transaction(func(tx *gorm.DB) error {
		// Drop chunks left over from a previous failed attempt.
		if err := tx.Where("document_id = ?", document.ID).Delete(&models.DocumentChunk{}).Error; err != nil {
			return err
		}
		if err := tx.CreateInBatches(&chunks, BATCH_SIZE).Error; err != nil {
			return err
		}

		document.Status = models.DocProcessed
		document.ChunkCount = len(chunks)
		document.Error = ""
		return tx.Save(document).Error
	})
	if err != nil {
		p.fail(document, err)
		return Result{}, err
	}

	p.logger.Infow("document processed",
		"doc_id", docID, "file", opts.fileName, "chunks", len(chunks), "source", opts.source)
	return Result{Document: document}, nil
}

// buildChunks turns content blocks into unembedded chunk rows. Text blocks
// are grouped per page and split; modal blocks are rendered through the model
// bindings. The returned string is the document's text used for the summary.
func (p *Processor) buildChunks(ctx context.Context, blocks []parse.ContentBlock, opts ingestOptions) ([]models.DocumentChunk, string, error) {
	type page struct {
		idx   int
		parts []string
	}

	var pages []page
	pageAt := map[int]int{}
	var modalBlocks []parse.ContentBlock

	for _, block := range blocks {
		if block.Type != parse.TypeText && block.Type != "" {
			modalBlocks = append(modalBlocks, block)
			continue
		}
		if strings.TrimSpace(block.Text) == "" {
			continue
		}

		at, ok := pageAt[block.PageIdx]
		if !ok {
			at = len(pages)
			pageAt[block.PageIdx] = at
			pages = append(pages, page{idx: block.PageIdx})
		}
		pages[at].parts = append(pages[at].parts, block.Text)
	}

	chunks := make([]models.DocumentChunk, 0)
	corpus := make([]string, 0, len(pages))
	index := 0

	for _, pg := range pages {
		text := strings.Join(pg.parts, "\n")
		corpus = append(corpus, text)

		pieces, err := p.splitText(ctx, text, opts)
		if err != nil {
			return nil, "", err
		}
		for _, piece := range pieces {
			chunks = append(chunks, models.DocumentChunk{
				ChunkIndex: index,
				Kind:       models.TextChunk,
				RawContent: piece,
				PageIdx:    pg.idx,
			})
			index++
		}
	}

	modal, err := p.renderModalBlocks(ctx, modalBlocks)
	if err != nil {
		return nil, "", err
	}
	for _, m := range modal {
		chunks = append(chunks, models.DocumentChunk{
			ChunkIndex: index,
			Kind:       m.kind,
			RawContent: m.text,
			PageIdx:    m.pageIdx,
		})
		index++
		corpus = append(corpus, m.text)
	}

	return chunks, strings.Join(corpus, "\n"), nil
}

// splitText chunks one page of text, honoring the delimiter override from
// content-list requests.
func (p *Processor) splitText(ctx context.Context, text string, opts ingestOptions) ([]string, error) {
	if opts.splitBy != "" {
		return p.splitter.SplitByCharacter(text, opts.splitBy, opts.splitOnly)
	}

	loader := documentloaders.NewText(strings.NewReader(text))
	docs, err := loader.LoadAndSplit(ctx, p.splitter)
	if err != nil {
		return nil, err
	}

	pieces := make([]string, 0, len(docs))
	for _, doc := range docs {
		if strings.TrimSpace(doc.PageContent) == "" {
			continue
		}
		pieces = append(pieces, doc.PageContent)
	}

	return pieces, nil
}

func (p *Processor) logContentStats(fileName string, blocks []parse.ContentBlock) {
	counts := map[string]int{}
	for _, block := range blocks {
		kind := block.Type
		if kind == "" {
			kind = parse.TypeText
		}
		counts[kind]++
	}

	fields := []any{"file", fileName, "blocks", len(blocks)}
	for _, kind := range []string{parse.TypeText, parse.TypeImage, parse.TypeTable, parse.TypeEquation} {
		if counts[kind] > 0 {
			fields = append(fields, kind, counts[kind])
		}
	}
	p.logger.Infow("content statistics", fields...)
}

func (p *Processor) fail(document *models.Document, cause error) {
	if err := models.MarkDocumentFailed(p.db, document, cause.Error()); err != nil {
		p.logger.Errorw("failed to record document failure", "doc_id", document.DocID, "error", err)
	}
}

func (p *Processor) acquire(ctx context.Context) error {
	select {
	case p.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Processor) release() {
	<-p.sem
}
