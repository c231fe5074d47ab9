package parse

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Options selects the parsing backend and where its artifacts go.
type Options struct {
	// Parser names the backend for formats that need one: "mineru" or
	// "native". Native covers only formats with a directly readable text
	// layer.
	Parser string
	// ParseMethod is auto, ocr or txt. txt forces text-layer extraction and
	// never OCRs.
	ParseMethod string
	// OutputDir receives parser artifacts (mineru's per-document trees).
	OutputDir       string
	ModelCacheDir   string
	ModelScopeCache string
}

// Parser turns an input file into a content list. Plain text formats are
// handled in-process; PDFs use the embedded text layer unless mineru is
// selected and available; everything else requires mineru.
type Parser struct {
	parser          string
	parseMethod     string
	outputDir       string
	modelCacheDir   string
	modelScopeCache string
	logger          *zap.SugaredLogger
}

func NewParser(opts Options, logger *zap.SugaredLogger) *Parser {
	if opts.Parser == "" {
		opts.Parser = "mineru"
	}
	if opts.ParseMethod == "" {
		opts.ParseMethod = "auto"
	}

	return &Parser{
		parser:          opts.Parser,
		parseMethod:     opts.ParseMethod,
		outputDir:       opts.OutputDir,
		modelCacheDir:   opts.ModelCacheDir,
		modelScopeCache: opts.ModelScopeCache,
		logger:          logger,
	}
}

// Parse produces the content list for a file. The method argument overrides
// the configured parse method when non-empty (batch requests carry their own).
func (p *Parser) Parse(ctx context.Context, path, method string) ([]ContentBlock, error) {
	if method == "" {
		method = p.parseMethod
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".txt", ".md", ".markdown":
		return parseTextFile(path)
	case ".html", ".htm":
		return parseHTMLFile(path)
	case ".pdf":
		if p.parser == "mineru" && method != "txt" && MinerUAvailable() {
			return p.runMinerU(ctx, path, method)
		}
		p.logger.Debugf("Extracting text layer from %v in-process", filepath.Base(path))
		return parsePDFText(path)
	default:
		if !MinerUAvailable() {
			return nil, fmt.Errorf("no parser available for %v files: mineru is not installed", ext)
		}
		return p.runMinerU(ctx, path, method)
	}
}
