package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"anyrag/internal/ingest"
	"anyrag/internal/parse"
)

// DocumentProcessor is the ingest surface the document endpoints drive.
type DocumentProcessor interface {
	ProcessFile(ctx context.Context, path, method, source string) (ingest.Result, error)
	ProcessContentList(ctx context.Context, blocks []parse.ContentBlock, opts ingest.ContentListOptions) (ingest.Result, error)
	ProcessBatch(ctx context.Context, paths []string, opts ingest.BatchOptions) *ingest.BatchResult
}

type DocumentsController struct {
	DB        *gorm.DB
	Logger    *zap.SugaredLogger
	Processor DocumentProcessor
	// InputDir is where uploads are staged before processing.
	InputDir string
	// DefaultWorkers caps batch concurrency when the request does not set
	// max_workers.
	DefaultWorkers int
}

// ProcessResponse reports the outcome of an ingestion request.
type ProcessResponse struct {
	Success        bool    `json:"success"`
	Message        string  `json:"message"`
	DocumentID     string  `json:"document_id,omitempty"`
	ProcessingTime float64 `json:"processing_time,omitempty"`
}

// ContentRequest inserts pre-parsed content blocks directly, bypassing file
// parsing.
type ContentRequest struct {
	ContentList          []parse.ContentBlock `json:"content_list" binding:"required"`
	FilePath             string               `json:"file_path"`
	DocID                string               `json:"doc_id"`
	SplitByCharacter     string               `json:"split_by_character"`
	SplitByCharacterOnly bool                 `json:"split_by_character_only"`
	DisplayStats         *bool                `json:"display_stats"`
}

// Upload stages the posted file under the input directory, runs the full
// pipeline on it and deletes the staged copy afterwards.
func (dc DocumentsController) Upload(c *gin.Context) {
	started := time.Now()

	file, err := c.FormFile("file")
	if err != nil {
		RespondBadRequestErr(c, ErrNoFile)
		return
	}

	// Each upload gets its own staging directory so identical file names
	// cannot race each other.
	dir, err := os.MkdirTemp(dc.InputDir, "upload-*")
	if err != nil {
		dc.Logger.Errorw("failed to create staging directory", "error", err)
		RespondInternalErr(c, ErrInternalError)
		return
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			dc.Logger.Warnw("failed to remove staged upload", "dir", dir, "error", err)
		}
	}()

	path := filepath.Join(dir, filepath.Base(file.Filename))
	if err := c.SaveUploadedFile(file, path); err != nil {
		dc.Logger.Errorw("failed to save upload", "file", file.Filename, "error", err)
		RespondInternalErr(c, fmt.Errorf("Error processing document: %v", err))
		return
	}

	result, err := dc.Processor.ProcessFile(c.Request.Context(), path, "", "upload")
	if err != nil {
		dc.Logger.Errorw("document processing failed", "file", file.Filename, "error", err)
		RespondInternalErr(c, fmt.Errorf("Error processing document: %v", err))
		return
	}

	message := fmt.Sprintf("Document '%v' processed successfully", file.Filename)
	if result.Duplicate {
		message = fmt.Sprintf("Document '%v' already processed, skipped duplicate content", file.Filename)
	}

	RespondOK(c, ProcessResponse{
		Success:        true,
		Message:        message,
		DocumentID:     result.Document.DocID,
		ProcessingTime: time.Since(started).Seconds(),
	})
}

// InsertContent ingests a pre-parsed content list.
func (dc DocumentsController) InsertContent(c *gin.Context) {
	started := time.Now()

	var req ContentRequest
	if err := c.BindJSON(&req); err != nil {
		RespondBadRequestErr(c, err)
		return
	}
	if len(req.ContentList) == 0 {
		RespondBadRequestErr(c, ErrNoContent)
		return
	}

	result, err := dc.Processor.ProcessContentList(c.Request.Context(), req.ContentList, ingest.ContentListOptions{
		FileName:     req.FilePath,
		DocID:        req.DocID,
		SplitBy:      req.SplitByCharacter,
		SplitOnly:    req.SplitByCharacterOnly,
		DisplayStats: req.DisplayStats,
	})
	if err != nil {
		dc.Logger.Errorw("content insertion failed", "error", err)
		RespondInternalErr(c, fmt.Errorf("Error inserting content: %v", err))
		return
	}

	message := fmt.Sprintf("Content list with %v items inserted successfully", len(req.ContentList))
	if result.Duplicate {
		message = "Content already inserted, skipped duplicate"
	}

	RespondOK(c, ProcessResponse{
		Success:        true,
		Message:        message,
		DocumentID:     result.Document.DocID,
		ProcessingTime: time.Since(started).Seconds(),
	})
}

// Batch processes several uploaded files concurrently. Options arrive in the
// request_data form field as JSON.
func (dc DocumentsController) Batch(c *gin.Context) {
	type batchParams struct {
		ParseMethod  string `json:"parse_method"`
		MaxWorkers   int    `json:"max_workers"`
		DisplayStats *bool  `json:"display_stats"`
	}

	started := time.Now()

	form, err := c.MultipartForm()
	if err != nil {
		RespondBadRequestErr(c, err)
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		RespondBadRequestErr(c, ErrNoFile)
		return
	}

	params := batchParams{}
	if raw := c.PostForm("request_data"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			RespondBadRequestErr(c, fmt.Errorf("invalid request_data: %v", err))
			return
		}
	}
	if params.MaxWorkers < 1 {
		params.MaxWorkers = dc.DefaultWorkers
	}

	dir, err := os.MkdirTemp(dc.InputDir, "batch-*")
	if err != nil {
		dc.Logger.Errorw("failed to create staging directory", "error", err)
		RespondInternalErr(c, ErrInternalError)
		return
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			dc.Logger.Warnw("failed to remove staged batch", "dir", dir, "error", err)
		}
	}()

	paths := make([]string, 0, len(files))
	for _, file := range files {
		path := filepath.Join(dir, filepath.Base(file.Filename))
		if err := c.SaveUploadedFile(file, path); err != nil {
			dc.Logger.Errorw("failed to save batch file", "file", file.Filename, "error", err)
			RespondInternalErr(c, fmt.Errorf("Error processing batch: %v", err))
			return
		}
		paths = append(paths, path)
	}

	result := dc.Processor.ProcessBatch(c.Request.Context(), paths, ingest.BatchOptions{
		Method:       params.ParseMethod,
		MaxWorkers:   params.MaxWorkers,
		DisplayStats: params.DisplayStats,
	})

	message := fmt.Sprintf("Batch processing completed: %v/%v files successful (%.1f%%)",
		result.Succeeded, result.Total, result.SuccessRate())
	if len(result.FailedFiles) > 0 {
		message += fmt.Sprintf(". Failed files: %v", result.FailedFiles)
	}

	RespondOK(c, ProcessResponse{
		Success:        result.Succeeded > 0,
		Message:        message,
		DocumentID:     fmt.Sprintf("batch-%v-files", result.Total),
		ProcessingTime: time.Since(started).Seconds(),
	})
}
