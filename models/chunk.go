package models

import (
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// ChunkKind mirrors the content-list block types, plus the synthetic summary
// kind used by global retrieval.
type ChunkKind string

const (
	TextChunk     ChunkKind = "text"
	ImageChunk    ChunkKind = "image"
	TableChunk    ChunkKind = "table"
	EquationChunk ChunkKind = "equation"
	SummaryChunk  ChunkKind = "summary"
)

// ContentKinds are the kinds produced directly from document content. Summary
// chunks are excluded; they are searched separately by the global mode.
var ContentKinds = []ChunkKind{TextChunk, ImageChunk, TableChunk, EquationChunk}

// DocumentChunks are the embedded text units used for semantic search and
// question answering. They are derived from Documents.
type DocumentChunk struct {
	Generic

	DocumentID uint `gorm:"index;not null" json:"document_id"`
	Document   Document
	ChunkIndex int             `gorm:"index;not null" json:"chunk_index"`
	Kind       ChunkKind       `gorm:"index;not null" json:"kind"`
	RawContent string          `gorm:"not null" json:"raw_content"`
	PageIdx    int             `json:"page_idx"`
	Tokens     int             `json:"tokens"`
	Embedding  pgvector.Vector `gorm:"type:vector(3072)" json:"-"`
}

// ScoredChunk is a search hit: chunk columns plus the owning document's name
// and the cosine similarity against the query vector.
type ScoredChunk struct {
	ID         uint      `json:"id"`
	DocumentID uint      `json:"document_id"`
	ChunkIndex int       `json:"chunk_index"`
	Kind       ChunkKind `json:"kind"`
	RawContent string    `json:"raw_content"`
	PageIdx    int       `json:"page_idx"`
	Tokens     int       `json:"tokens"`
	FileName   string    `json:"file_name"`
	Score      float64   `json:"score"`
}

// SearchChunks returns the top chunks of the given kinds by cosine similarity.
// A zero documentID searches the whole corpus; otherwise hits are restricted
// to that document.
func SearchChunks(db *gorm.DB, embedding pgvector.Vector, kinds []ChunkKind, documentID uint, limit int) ([]ScoredChunk, error) {
	query := `
		SELECT c.id, c.document_id, c.chunk_index, c.kind, c.raw_content, c.page_idx, c.tokens,
		       d.file_name, 1 - (c.embedding <=> ?) AS score
		FROM document_chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.deleted_at IS NULL AND d.deleted_at IS NULL AND c.kind IN ?`
	args := []any{embedding, kinds}

	if documentID != 0 {
		query += ` AND c.document_id = ?`
		args = append(args, documentID)
	}

	query += ` ORDER BY c.embedding <=> ? LIMIT ?`
	args = append(args, embedding, limit)

	var chunks []ScoredChunk
	if err := db.Raw(query, args...).Scan(&chunks).Error; err != nil {
		return nil, err
	}

	return chunks, nil
}

// GetChunkWindow returns the text chunks of a document whose position falls
// within [lo, hi]. The column compared is chunk_index or page_idx depending on
// byPage. Used to pull neighboring context around a search hit.
func GetChunkWindow(db *gorm.DB, documentID uint, lo, hi int, byPage bool) ([]DocumentChunk, error) {
	column := "chunk_index"
	if byPage {
		column = "page_idx"
	}

	var chunks []DocumentChunk
	err := db.Where("document_id = ? AND kind = ? AND "+column+" BETWEEN ? AND ?",
		documentID, TextChunk, lo, hi).
		Order("chunk_index").
		Find(&chunks).Error
	if err != nil {
		return nil, err
	}

	return chunks, nil
}
