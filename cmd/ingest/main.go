package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"anyrag/core"
	"anyrag/internal/ingest"
	"anyrag/internal/parse"
	"anyrag/internal/retrieval"
	"anyrag/models"
)

// Bulk ingestion without going through the HTTP API: point it at a directory
// (or list files directly) and it runs the same pipeline the server uses.
func main() {
	var (
		dir     string
		exts    string
		method  string
		workers int
	)
	flag.StringVar(&dir, "dir", "", "Directory to scan for documents (recursive)")
	flag.StringVar(&exts, "ext", "pdf", "Comma-separated extensions to pick up when scanning")
	flag.StringVar(&method, "method", "", "Parse method (auto, ocr, txt); empty uses PARSE_METHOD")
	flag.IntVar(&workers, "workers", 0, "Concurrent files; 0 uses MAX_CONCURRENT_FILES")
	flag.Parse()

	godotenv.Load()

	cfg, err := core.LoadConfig()
	if err != nil {
		color.Red("configuration error: %v", err)
		os.Exit(1)
	}

	logger, err := core.NewLogger(cfg.LogLevel, cfg.LogDir)
	if err != nil {
		color.Red("logger error: %v", err)
		os.Exit(1)
	}

	files := flag.Args()
	if dir != "" {
		found, err := scanDir(dir, exts)
		if err != nil {
			color.Red("scan error: %v", err)
			os.Exit(1)
		}
		files = append(files, found...)
	}
	if len(files) == 0 {
		color.Yellow("nothing to do: pass file paths or -dir")
		os.Exit(0)
	}

	// connect to the database
	db, err := core.InitDB()
	if err != nil {
		color.Red("database error: %v", err)
		os.Exit(1)
	}

	// auto migrate the database
	err = db.AutoMigrate(
		&models.Document{},
		&models.DocumentChunk{},
		&models.AccessToken{},
		&models.QueryLog{},
	)
	if err != nil {
		color.Red("migration error: %v", err)
		os.Exit(1)
	}
	if err := core.EnsureVectorSchema(db, cfg.EmbeddingDim); err != nil {
		color.Red("schema error: %v", err)
		os.Exit(1)
	}

	cache, err := retrieval.OpenCache(cfg.WorkingDir)
	if err != nil {
		logger.Warnw("embedding cache unavailable", "error", err)
		cache = nil
	}

	embedder := retrieval.NewEmbedder(cfg, cache, logger.With("component", "embedder"))
	generator := retrieval.NewGenerator(cfg, logger.With("component", "generator"))
	parser := parse.NewParser(parse.Options{
		Parser:          cfg.Parser,
		ParseMethod:     cfg.ParseMethod,
		OutputDir:       cfg.OutputDir,
		ModelCacheDir:   cfg.ModelCacheDir,
		ModelScopeCache: cfg.ModelScopeCache,
	}, logger.With("component", "parser"))

	processor, err := ingest.NewProcessor(db, parser, embedder, generator, cfg, logger.With("component", "processor"))
	if err != nil {
		color.Red("processor error: %v", err)
		os.Exit(1)
	}

	if workers < 1 {
		workers = cfg.MaxConcurrentFiles
	}

	color.Blue("Ingesting %d documents with %d workers\n", len(files), workers)
	bar := getProgressBar(len(files), "Processing documents...")

	var (
		mu         sync.Mutex
		processed  int
		duplicates int
		failures   = map[string]string{}
	)

	var group errgroup.Group
	group.SetLimit(workers)
	for _, path := range files {
		path := path
		group.Go(func() error {
			result, err := processor.ProcessFile(context.Background(), path, method, "cli")

			mu.Lock()
			defer mu.Unlock()
			bar.Add(1)
			if err != nil {
				failures[filepath.Base(path)] = err.Error()
				return nil
			}
			processed++
			if result.Duplicate {
				duplicates++
			}
			return nil
		})
	}
	group.Wait()
	bar.Finish()

	fmt.Println()
	color.Green("✓ %d processed (%d duplicates skipped)\n", processed, duplicates)
	for file, message := range failures {
		color.Red("✗ %v: %v\n", file, message)
	}
	if len(failures) > 0 {
		os.Exit(1)
	}
}

// scanDir collects files with the given extensions, recursively.
func scanDir(dir, exts string) ([]string, error) {
	wanted := map[string]bool{}
	for _, ext := range strings.Split(exts, ",") {
		ext = strings.TrimSpace(strings.TrimPrefix(ext, "."))
		if ext != "" {
			wanted["."+strings.ToLower(ext)] = true
		}
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// Skip dot directories, which in checked-out repositories hold
			// VCS internals.
			if name := d.Name(); name != "." && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if wanted[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("docs"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
	)
}
