package models

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DocStatus tracks a document through the processing pipeline.
type DocStatus string

const (
	DocPending    DocStatus = "pending"
	DocProcessing DocStatus = "processing"
	DocProcessed  DocStatus = "processed"
	DocFailed     DocStatus = "failed"
)

// Documents are processed inputs. The raw bytes are not kept; what we store is
// enough to answer queries (chunks live in DocumentChunk) and to skip
// re-processing when the same content is uploaded again.
type Document struct {
	Generic

	// UUID is the document's stable external identifier. DocID is derived
	// from content and therefore shared by re-uploads of the same bytes.
	UUID uuid.UUID `gorm:"index;not null" json:"uuid"`
	// DocID is the content-derived identifier ("doc-" + md5 of the content).
	// Identical content always maps to the same DocID, which is how duplicate
	// uploads are detected.
	DocID       string    `gorm:"uniqueIndex;not null" json:"doc_id"`
	FileName    string    `gorm:"not null" json:"file_name"`
	Source      string    `json:"source"`
	Parser      string    `json:"parser"`
	ParseMethod string    `json:"parse_method"`
	Status      DocStatus `gorm:"index;not null" json:"status"`
	// Summary is generated at ingest time and embedded as a summary chunk. It
	// backs the global retrieval mode.
	Summary    string `json:"summary"`
	ChunkCount int    `json:"chunk_count"`
	Error      string `json:"-"`
}

func CreateDocument(db *gorm.DB, docID, fileName, source, parser, parseMethod string) (*Document, error) {
	document := Document{
		UUID:        uuid.New(),
		DocID:       docID,
		FileName:    fileName,
		Source:      source,
		Parser:      parser,
		ParseMethod: parseMethod,
		Status:      DocPending,
	}

	if err := db.Create(&document).Error; err != nil {
		return nil, err
	}

	return &document, nil
}

func GetDocumentByDocID(db *gorm.DB, docID string) (*Document, error) {
	var document Document
	err := db.Where("doc_id = ?", docID).First(&document).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		return nil, err
	}

	return &document, nil
}

// MarkDocumentFailed records the failure reason. Chunks written for the
// document in an aborted transaction are rolled back with it, so a failed
// document never contributes to retrieval.
func MarkDocumentFailed(db *gorm.DB, document *Document, reason string) error {
	document.Status = DocFailed
	document.Error = reason
	return db.Save(document).Error
}
