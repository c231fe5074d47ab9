package retrieval

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"anyrag/core"
)

// Embedder turns text into vectors through the configured embedding binding.
// Batches run concurrently up to MAX_ASYNC, gated by an optional rate limiter,
// and every vector is written through the working-directory cache.
type Embedder struct {
	client    *openai.Client
	model     string
	dim       int
	batchSize int
	maxAsync  int
	cache     *Cache
	limiter   *rate.Limiter
	logger    *zap.SugaredLogger
}

func NewEmbedder(cfg *core.Config, cache *Cache, logger *zap.SugaredLogger) *Embedder {
	limit := rate.Inf
	if cfg.EmbeddingRPS > 0 {
		limit = rate.Limit(cfg.EmbeddingRPS)
	}

	return &Embedder{
		client:    newOpenAIClient(cfg.EmbeddingHost, cfg.EmbeddingAPIKey, cfg.Timeout),
		model:     cfg.EmbeddingModel,
		dim:       cfg.EmbeddingDim,
		batchSize: cfg.EmbeddingBatch,
		maxAsync:  cfg.MaxAsync,
		cache:     cache,
		limiter:   rate.NewLimiter(limit, 1),
		logger:    logger,
	}
}

// EmbedTexts returns one vector per input text, in order.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))

	// Serve what we can from the cache and collect the rest.
	var missing []int
	for i, text := range texts {
		if e.cache != nil {
			if embedding, ok := e.cache.Get(e.model, text); ok {
				embeddings[i] = embedding
				continue
			}
		}
		missing = append(missing, i)
	}
	if len(missing) == 0 {
		return embeddings, nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.maxAsync)

	for start := 0; start < len(missing); start += e.batchSize {
		end := start + e.batchSize
		if end > len(missing) {
			end = len(missing)
		}
		batch := missing[start:end]

		group.Go(func() error {
			if err := e.limiter.Wait(groupCtx); err != nil {
				return err
			}

			input := make([]string, len(batch))
			for i, idx := range batch {
				input[i] = texts[idx]
			}

			response, err := e.client.CreateEmbeddings(groupCtx, openai.EmbeddingRequest{
				Model: openai.EmbeddingModel(e.model),
				Input: input,
			})
			if err != nil {
				return fmt.Errorf("embedding request failed: %w", err)
			}
			if len(response.Data) != len(batch) {
				return fmt.Errorf("embedding response returned %v vectors for %v inputs", len(response.Data), len(batch))
			}

			for i, data := range response.Data {
				if e.dim > 0 && len(data.Embedding) != e.dim {
					return fmt.Errorf(
						"embedding dimension mismatch: model %v returned %v, EMBEDDING_DIM is %v",
						e.model, len(data.Embedding), e.dim,
					)
				}

				idx := batch[i]
				embeddings[idx] = data.Embedding
				if e.cache != nil {
					if err := e.cache.Put(e.model, texts[idx], data.Embedding); err != nil {
						e.logger.Warnw("failed to cache embedding", "error", err)
					}
				}
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return embeddings, nil
}

// EmbedQuery embeds a single query string.
func (e *Embedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	embeddings, err := e.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}
