package controllers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"anyrag/internal/retrieval"
)

type fakeRetriever struct {
	passages []retrieval.Passage
	err      error

	gotQuery string
	gotMode  retrieval.Mode
	called   bool
}

func (f *fakeRetriever) Retrieve(_ context.Context, query string, mode retrieval.Mode) ([]retrieval.Passage, error) {
	f.called = true
	f.gotQuery = query
	f.gotMode = mode
	return f.passages, f.err
}

type fakeGenerator struct {
	answer string
	err    error

	gotPassages []retrieval.Passage
	gotContent  []retrieval.MultimodalContent
}

func (f *fakeGenerator) Answer(_ context.Context, _ string, passages []retrieval.Passage) (string, error) {
	f.gotPassages = passages
	return f.answer, f.err
}

func (f *fakeGenerator) AnswerMultimodal(_ context.Context, _ string, content []retrieval.MultimodalContent, passages []retrieval.Passage) (string, error) {
	f.gotContent = content
	f.gotPassages = passages
	return f.answer, f.err
}

func newQueriesEngine(r *fakeRetriever, g *fakeGenerator) *gin.Engine {
	qc := QueriesController{Logger: zap.NewNop().Sugar(), Retriever: r, Generator: g}

	engine := gin.New()
	engine.POST("/query", qc.Query)
	engine.POST("/multimodal-query", qc.MultimodalQuery)
	return engine
}

func TestQueryDefaultsToHybrid(t *testing.T) {
	retr := &fakeRetriever{passages: []retrieval.Passage{{FileName: "a.pdf", Text: "context"}}}
	gen := &fakeGenerator{answer: "42"}
	engine := newQueriesEngine(retr, gen)

	w := postJSON(engine, "/query", `{"query": "what is the answer?"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp QueryResponse
	decodeJSON(t, w, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, "Query processed successfully", resp.Message)
	assert.Equal(t, "42", resp.Answer)

	assert.Equal(t, retrieval.ModeHybrid, retr.gotMode)
	assert.Equal(t, "what is the answer?", retr.gotQuery)
	assert.Equal(t, retr.passages, gen.gotPassages)
}

func TestQueryModeSelection(t *testing.T) {
	for _, mode := range []string{"naive", "local", "global", "hybrid", "mix", "bypass"} {
		retr := &fakeRetriever{}
		engine := newQueriesEngine(retr, &fakeGenerator{answer: "ok"})

		w := postJSON(engine, "/query", `{"query": "q", "mode": "`+mode+`"}`)
		require.Equal(t, http.StatusOK, w.Code, mode)
		assert.Equal(t, retrieval.Mode(mode), retr.gotMode)
	}
}

func TestQueryRejectsUnknownMode(t *testing.T) {
	retr := &fakeRetriever{}
	engine := newQueriesEngine(retr, &fakeGenerator{})

	w := postJSON(engine, "/query", `{"query": "q", "mode": "graph"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t,
		"Invalid mode 'graph'. Must be one of: naive, local, global, hybrid, mix, bypass",
		errorDetail(t, w))
	assert.False(t, retr.called)
}

func TestQueryRequiresQuery(t *testing.T) {
	engine := newQueriesEngine(&fakeRetriever{}, &fakeGenerator{})

	w := postJSON(engine, "/query", `{"mode": "naive"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQueryRetrievalFailure(t *testing.T) {
	retr := &fakeRetriever{err: errors.New("connection refused")}
	engine := newQueriesEngine(retr, &fakeGenerator{})

	w := postJSON(engine, "/query", `{"query": "q"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Error processing query: connection refused", errorDetail(t, w))
}

func TestQueryGenerationFailure(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("model overloaded")}
	engine := newQueriesEngine(&fakeRetriever{}, gen)

	w := postJSON(engine, "/query", `{"query": "q"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Error processing query: model overloaded", errorDetail(t, w))
}

func TestMultimodalQuery(t *testing.T) {
	retr := &fakeRetriever{}
	gen := &fakeGenerator{answer: "the table shows revenue"}
	engine := newQueriesEngine(retr, gen)

	w := postJSON(engine, "/multimodal-query", `{
		"query": "what does the table show?",
		"mode": "naive",
		"multimodal_content": [
			{"type": "table", "table_data": "| q | revenue |", "table_caption": "Quarterly"}
		]
	}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp QueryResponse
	decodeJSON(t, w, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, "Multimodal query processed successfully", resp.Message)
	assert.Equal(t, "the table shows revenue", resp.Answer)

	require.Len(t, gen.gotContent, 1)
	assert.Equal(t, "table", gen.gotContent[0].Type)
	assert.Equal(t, "| q | revenue |", gen.gotContent[0].TableData)
}

func TestMultimodalQueryRetrievalFailure(t *testing.T) {
	retr := &fakeRetriever{err: errors.New("boom")}
	engine := newQueriesEngine(retr, &fakeGenerator{})

	w := postJSON(engine, "/multimodal-query", `{"query": "q"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Error processing multimodal query: boom", errorDetail(t, w))
}
