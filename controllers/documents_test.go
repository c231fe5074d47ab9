package controllers

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"anyrag/internal/ingest"
	"anyrag/internal/parse"
	"anyrag/models"
)

type fakeProcessor struct {
	result ingest.Result
	err    error
	batch  *ingest.BatchResult

	gotPath        string
	gotMethod      string
	gotSource      string
	gotBlocks      []parse.ContentBlock
	gotContentOpts ingest.ContentListOptions
	gotPaths       []string
	gotBatchOpts   ingest.BatchOptions
}

func (f *fakeProcessor) ProcessFile(_ context.Context, path, method, source string) (ingest.Result, error) {
	f.gotPath = path
	f.gotMethod = method
	f.gotSource = source
	return f.result, f.err
}

func (f *fakeProcessor) ProcessContentList(_ context.Context, blocks []parse.ContentBlock, opts ingest.ContentListOptions) (ingest.Result, error) {
	f.gotBlocks = blocks
	f.gotContentOpts = opts
	return f.result, f.err
}

func (f *fakeProcessor) ProcessBatch(_ context.Context, paths []string, opts ingest.BatchOptions) *ingest.BatchResult {
	f.gotPaths = paths
	f.gotBatchOpts = opts
	return f.batch
}

func newDocumentsEngine(t *testing.T, processor *fakeProcessor) (*gin.Engine, string) {
	inputDir := t.TempDir()
	dc := DocumentsController{
		Logger:         zap.NewNop().Sugar(),
		Processor:      processor,
		InputDir:       inputDir,
		DefaultWorkers: 2,
	}

	engine := gin.New()
	engine.POST("/upload", dc.Upload)
	engine.POST("/content", dc.InsertContent)
	engine.POST("/batch", dc.Batch)
	return engine, inputDir
}

func uploadBody(t *testing.T, field string, names ...string) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, name := range names {
		part, err := writer.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = part.Write([]byte("file contents of " + name))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	return body, writer.FormDataContentType()
}

func TestUpload(t *testing.T) {
	processor := &fakeProcessor{result: ingest.Result{Document: &models.Document{DocID: "doc-abc"}}}
	engine, inputDir := newDocumentsEngine(t, processor)

	body, contentType := uploadBody(t, "file", "report.pdf")
	w := postMultipart(engine, "/upload", contentType, body)
	require.Equal(t, http.StatusOK, w.Code)

	var resp ProcessResponse
	decodeJSON(t, w, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, "Document 'report.pdf' processed successfully", resp.Message)
	assert.Equal(t, "doc-abc", resp.DocumentID)

	assert.Equal(t, "report.pdf", filepath.Base(processor.gotPath))
	assert.Equal(t, "", processor.gotMethod)
	assert.Equal(t, "upload", processor.gotSource)

	// The staged copy is cleaned up after processing.
	entries, err := os.ReadDir(inputDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUploadDuplicate(t *testing.T) {
	processor := &fakeProcessor{result: ingest.Result{
		Document:  &models.Document{DocID: "doc-abc"},
		Duplicate: true,
	}}
	engine, _ := newDocumentsEngine(t, processor)

	body, contentType := uploadBody(t, "file", "report.pdf")
	w := postMultipart(engine, "/upload", contentType, body)
	require.Equal(t, http.StatusOK, w.Code)

	var resp ProcessResponse
	decodeJSON(t, w, &resp)
	assert.Equal(t, "Document 'report.pdf' already processed, skipped duplicate content", resp.Message)
}

func TestUploadWithoutFile(t *testing.T) {
	engine, _ := newDocumentsEngine(t, &fakeProcessor{})

	body, contentType := uploadBody(t, "other", "report.pdf")
	w := postMultipart(engine, "/upload", contentType, body)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No file provided", errorDetail(t, w))
}

func TestUploadProcessingFailure(t *testing.T) {
	processor := &fakeProcessor{err: errors.New("no text layer in report.pdf, OCR parsing required")}
	engine, _ := newDocumentsEngine(t, processor)

	body, contentType := uploadBody(t, "file", "report.pdf")
	w := postMultipart(engine, "/upload", contentType, body)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t,
		"Error processing document: no text layer in report.pdf, OCR parsing required",
		errorDetail(t, w))
}

func TestInsertContent(t *testing.T) {
	processor := &fakeProcessor{result: ingest.Result{Document: &models.Document{DocID: "doc-xyz"}}}
	engine, _ := newDocumentsEngine(t, processor)

	w := postJSON(engine, "/content", `{
		"content_list": [
			{"type": "text", "text": "hello world", "page_idx": 0}
		],
		"file_path": "notes.txt",
		"doc_id": "doc-xyz",
		"split_by_character": "|"
	}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp ProcessResponse
	decodeJSON(t, w, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, "Content list with 1 items inserted successfully", resp.Message)
	assert.Equal(t, "doc-xyz", resp.DocumentID)

	require.Len(t, processor.gotBlocks, 1)
	assert.Equal(t, "hello world", processor.gotBlocks[0].Text)
	assert.Equal(t, "notes.txt", processor.gotContentOpts.FileName)
	assert.Equal(t, "doc-xyz", processor.gotContentOpts.DocID)
	assert.Equal(t, "|", processor.gotContentOpts.SplitBy)
}

func TestInsertContentEmptyList(t *testing.T) {
	engine, _ := newDocumentsEngine(t, &fakeProcessor{})

	w := postJSON(engine, "/content", `{"content_list": []}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "content_list cannot be empty", errorDetail(t, w))
}

func TestInsertContentMissingList(t *testing.T) {
	engine, _ := newDocumentsEngine(t, &fakeProcessor{})

	w := postJSON(engine, "/content", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBatch(t *testing.T) {
	processor := &fakeProcessor{batch: &ingest.BatchResult{
		Total:       2,
		Succeeded:   1,
		FailedFiles: []string{"b.pdf"},
		Errors:      map[string]string{"b.pdf": "broken"},
	}}
	engine, _ := newDocumentsEngine(t, processor)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, name := range []string{"a.pdf", "b.pdf"} {
		part, err := writer.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte("contents"))
		require.NoError(t, err)
	}
	require.NoError(t, writer.WriteField("request_data", `{"parse_method": "auto", "max_workers": 3}`))
	require.NoError(t, writer.Close())

	w := postMultipart(engine, "/batch", writer.FormDataContentType(), body)
	require.Equal(t, http.StatusOK, w.Code)

	var resp ProcessResponse
	decodeJSON(t, w, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t,
		"Batch processing completed: 1/2 files successful (50.0%). Failed files: [b.pdf]",
		resp.Message)
	assert.Equal(t, "batch-2-files", resp.DocumentID)

	require.Len(t, processor.gotPaths, 2)
	assert.Equal(t, "auto", processor.gotBatchOpts.Method)
	assert.Equal(t, 3, processor.gotBatchOpts.MaxWorkers)
}

func TestBatchDefaultsWorkers(t *testing.T) {
	processor := &fakeProcessor{batch: &ingest.BatchResult{Total: 1, Succeeded: 1}}
	engine, _ := newDocumentsEngine(t, processor)

	body, contentType := uploadBody(t, "files", "a.pdf")
	w := postMultipart(engine, "/batch", contentType, body)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, 2, processor.gotBatchOpts.MaxWorkers)
}

func TestBatchWithoutFiles(t *testing.T) {
	engine, _ := newDocumentsEngine(t, &fakeProcessor{})

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("request_data", `{}`))
	require.NoError(t, writer.Close())

	w := postMultipart(engine, "/batch", writer.FormDataContentType(), body)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No file provided", errorDetail(t, w))
}

func TestBatchRejectsMalformedRequestData(t *testing.T) {
	engine, _ := newDocumentsEngine(t, &fakeProcessor{})

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("files", "a.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("contents"))
	require.NoError(t, err)
	require.NoError(t, writer.WriteField("request_data", `{not json`))
	require.NoError(t, writer.Close())

	w := postMultipart(engine, "/batch", writer.FormDataContentType(), body)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorDetail(t, w), "invalid request_data:")
}
