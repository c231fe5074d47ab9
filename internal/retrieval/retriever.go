package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"anyrag/core"
	"anyrag/models"
)

// Mode selects the retrieval strategy for a query.
type Mode string

const (
	// ModeNaive ranks raw content chunks by vector similarity.
	ModeNaive Mode = "naive"
	// ModeLocal scopes retrieval to the best-matching document and widens
	// each hit with its neighboring chunks.
	ModeLocal Mode = "local"
	// ModeGlobal searches the per-document summaries.
	ModeGlobal Mode = "global"
	// ModeHybrid combines local and global results.
	ModeHybrid Mode = "hybrid"
	// ModeMix adds naive chunk hits on top of hybrid.
	ModeMix Mode = "mix"
	// ModeBypass skips retrieval and sends the query straight to the model.
	ModeBypass Mode = "bypass"
)

const DefaultMode = ModeHybrid

func (m Mode) Valid() bool {
	switch m {
	case ModeNaive, ModeLocal, ModeGlobal, ModeHybrid, ModeMix, ModeBypass:
		return true
	}
	return false
}

// Passage is one unit of assembled context handed to the generator.
type Passage struct {
	FileName string
	Kind     models.ChunkKind
	Text     string
	Score    float64
}

// Retriever finds and assembles context for a query. Similarity search runs
// in Postgres against the pgvector column; the retriever only decides which
// chunk kinds to search, whether to scope to one document, and how much
// neighboring text to pull in around each hit.
type Retriever struct {
	db               *gorm.DB
	embedder         *Embedder
	topK             int
	contextWindow    int
	contextByPage    bool
	maxContextTokens int
	logger           *zap.SugaredLogger
}

func NewRetriever(db *gorm.DB, embedder *Embedder, cfg *core.Config, logger *zap.SugaredLogger) *Retriever {
	return &Retriever{
		db:               db,
		embedder:         embedder,
		topK:             cfg.TopK,
		contextWindow:    cfg.ContextWindow,
		contextByPage:    cfg.ContextMode == "page",
		maxContextTokens: cfg.MaxContextTokens,
		logger:           logger,
	}
}

// Retrieve returns context passages for the query under the given mode,
// trimmed to the configured token budget. Bypass mode returns no passages.
func (r *Retriever) Retrieve(ctx context.Context, query string, mode Mode) ([]Passage, error) {
	if mode == ModeBypass {
		return nil, nil
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("unknown query mode %q", mode)
	}

	queryVector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	embedding := pgvector.NewVector(queryVector)

	var hits []models.ScoredChunk
	switch mode {
	case ModeNaive:
		hits, err = models.SearchChunks(r.db, embedding, models.ContentKinds, 0, r.topK)
	case ModeLocal:
		hits, err = r.localHits(embedding)
	case ModeGlobal:
		hits, err = models.SearchChunks(r.db, embedding, []models.ChunkKind{models.SummaryChunk}, 0, r.topK)
	case ModeHybrid:
		hits, err = r.hybridHits(embedding)
	case ModeMix:
		hits, err = r.hybridHits(embedding)
		if err == nil {
			var naive []models.ScoredChunk
			naive, err = models.SearchChunks(r.db, embedding, models.ContentKinds, 0, r.topK)
			hits = mergeHits(hits, naive)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}

	r.logger.Debugw("retrieved chunks", "mode", mode, "hits", len(hits))

	expand := mode == ModeLocal || mode == ModeHybrid || mode == ModeMix
	return r.assemble(hits, expand), nil
}

// localHits finds the document of the single best content chunk, then ranks
// chunks within that document only.
func (r *Retriever) localHits(embedding pgvector.Vector) ([]models.ScoredChunk, error) {
	top, err := models.SearchChunks(r.db, embedding, models.ContentKinds, 0, 1)
	if err != nil || len(top) == 0 {
		return nil, err
	}
	return models.SearchChunks(r.db, embedding, models.ContentKinds, top[0].DocumentID, r.topK)
}

func (r *Retriever) hybridHits(embedding pgvector.Vector) ([]models.ScoredChunk, error) {
	local, err := r.localHits(embedding)
	if err != nil {
		return nil, err
	}

	global, err := models.SearchChunks(r.db, embedding, []models.ChunkKind{models.SummaryChunk}, 0, r.topK)
	if err != nil {
		return nil, err
	}

	return mergeHits(local, global), nil
}

// mergeHits unions two result sets, dropping duplicate chunks and ordering by
// descending similarity.
func mergeHits(a, b []models.ScoredChunk) []models.ScoredChunk {
	seen := make(map[uint]bool, len(a)+len(b))
	merged := make([]models.ScoredChunk, 0, len(a)+len(b))
	for _, hit := range append(a, b...) {
		if seen[hit.ID] {
			continue
		}
		seen[hit.ID] = true
		merged = append(merged, hit)
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	return merged
}

// assemble converts hits into passages under the token budget. When expand is
// set, text hits are widened to their neighboring chunks or pages so the
// model sees the surrounding discussion, not a bare excerpt.
func (r *Retriever) assemble(hits []models.ScoredChunk, expand bool) []Passage {
	passages := make([]Passage, 0, len(hits))
	budget := r.maxContextTokens

	for _, hit := range hits {
		if budget <= 0 {
			break
		}

		text := hit.RawContent
		if expand && hit.Kind == models.TextChunk && r.contextWindow > 0 {
			if widened := r.expandHit(hit); widened != "" {
				text = widened
			}
		}

		tokens := EstimateTokens(text)
		if tokens > budget {
			text = TruncateTokens(text, budget)
			tokens = budget
		}
		budget -= tokens

		passages = append(passages, Passage{
			FileName: hit.FileName,
			Kind:     hit.Kind,
			Text:     text,
			Score:    hit.Score,
		})
	}

	return passages
}

func (r *Retriever) expandHit(hit models.ScoredChunk) string {
	position := hit.ChunkIndex
	if r.contextByPage {
		position = hit.PageIdx
	}

	lo := position - r.contextWindow
	hi := position + r.contextWindow

	neighbors, err := models.GetChunkWindow(r.db, hit.DocumentID, lo, hi, r.contextByPage)
	if err != nil {
		r.logger.Warnw("context window lookup failed", "document_id", hit.DocumentID, "error", err)
		return ""
	}
	if len(neighbors) == 0 {
		return ""
	}

	parts := make([]string, 0, len(neighbors))
	for _, neighbor := range neighbors {
		parts = append(parts, neighbor.RawContent)
	}
	return strings.Join(parts, "\n")
}
