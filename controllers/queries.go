package controllers

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"anyrag/internal/retrieval"
	"anyrag/models"
)

// Retriever finds context passages for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, mode retrieval.Mode) ([]retrieval.Passage, error)
}

// Generator produces answers through the model bindings.
type Generator interface {
	Answer(ctx context.Context, query string, passages []retrieval.Passage) (string, error)
	AnswerMultimodal(ctx context.Context, query string, content []retrieval.MultimodalContent, passages []retrieval.Passage) (string, error)
}

type QueriesController struct {
	DB        *gorm.DB
	Logger    *zap.SugaredLogger
	Retriever Retriever
	Generator Generator
}

type QueryRequest struct {
	Query string `json:"query" binding:"required"`
	Mode  string `json:"mode"`
}

type MultimodalQueryRequest struct {
	Query             string                        `json:"query" binding:"required"`
	Mode              string                        `json:"mode"`
	MultimodalContent []retrieval.MultimodalContent `json:"multimodal_content"`
}

type QueryResponse struct {
	Success        bool    `json:"success"`
	Message        string  `json:"message"`
	Answer         string  `json:"answer,omitempty"`
	ProcessingTime float64 `json:"processing_time,omitempty"`
}

func (qc QueriesController) Query(c *gin.Context) {
	started := time.Now()

	var req QueryRequest
	if err := c.BindJSON(&req); err != nil {
		RespondBadRequestErr(c, err)
		return
	}
	mode, err := resolveMode(req.Mode)
	if err != nil {
		RespondBadRequestErr(c, err)
		return
	}

	passages, err := qc.Retriever.Retrieve(c.Request.Context(), req.Query, mode)
	if err != nil {
		qc.Logger.Errorw("retrieval failed", "mode", mode, "error", err)
		RespondInternalErr(c, fmt.Errorf("Error processing query: %v", err))
		return
	}

	answer, err := qc.Generator.Answer(c.Request.Context(), req.Query, passages)
	if err != nil {
		qc.Logger.Errorw("generation failed", "mode", mode, "error", err)
		RespondInternalErr(c, fmt.Errorf("Error processing query: %v", err))
		return
	}

	took := time.Since(started)
	qc.recordQuery(CurrentAccount(c), req.Query, mode, answer, false, took)

	RespondOK(c, QueryResponse{
		Success:        true,
		Message:        "Query processed successfully",
		Answer:         answer,
		ProcessingTime: took.Seconds(),
	})
}

func (qc QueriesController) MultimodalQuery(c *gin.Context) {
	started := time.Now()

	var req MultimodalQueryRequest
	if err := c.BindJSON(&req); err != nil {
		RespondBadRequestErr(c, err)
		return
	}
	mode, err := resolveMode(req.Mode)
	if err != nil {
		RespondBadRequestErr(c, err)
		return
	}

	passages, err := qc.Retriever.Retrieve(c.Request.Context(), req.Query, mode)
	if err != nil {
		qc.Logger.Errorw("retrieval failed", "mode", mode, "error", err)
		RespondInternalErr(c, fmt.Errorf("Error processing multimodal query: %v", err))
		return
	}

	answer, err := qc.Generator.AnswerMultimodal(c.Request.Context(), req.Query, req.MultimodalContent, passages)
	if err != nil {
		qc.Logger.Errorw("generation failed", "mode", mode, "error", err)
		RespondInternalErr(c, fmt.Errorf("Error processing multimodal query: %v", err))
		return
	}

	took := time.Since(started)
	qc.recordQuery(CurrentAccount(c), req.Query, mode, answer, true, took)

	RespondOK(c, QueryResponse{
		Success:        true,
		Message:        "Multimodal query processed successfully",
		Answer:         answer,
		ProcessingTime: took.Seconds(),
	})
}

func resolveMode(raw string) (retrieval.Mode, error) {
	if raw == "" {
		return retrieval.DefaultMode, nil
	}

	mode := retrieval.Mode(raw)
	if !mode.Valid() {
		return "", fmt.Errorf(
			"Invalid mode '%v'. Must be one of: naive, local, global, hybrid, mix, bypass", raw)
	}

	return mode, nil
}

// recordQuery persists the query log entry. A nil DB disables logging.
func (qc QueriesController) recordQuery(account, query string, mode retrieval.Mode, answer string, multimodal bool, took time.Duration) {
	if qc.DB == nil {
		return
	}

	if _, err := models.CreateQueryLog(qc.DB, account, query, string(mode), answer, multimodal, took.Milliseconds()); err != nil {
		qc.Logger.Errorw("failed to record query", "error", err)
	}
}
