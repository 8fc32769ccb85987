package knowledge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ValmirAutomacao/optusadmin-sub000/internal/model"
	"github.com/ValmirAutomacao/optusadmin-sub000/prometheus"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrInvalidUpload covers bad MIME types and oversized files
	ErrInvalidUpload = errors.New("invalid upload")
	// ErrDocumentNotFound is returned for unknown document IDs
	ErrDocumentNotFound = errors.New("knowledge document not found")
)

// allowedMimeTypes is the upload allow-list
var allowedMimeTypes = map[string]bool{
	"text/plain":      true,
	"text/csv":        true,
	"application/pdf": true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

// UploadRequest carries the file bytes plus the metadata the UI collected.
// Text is the extracted document text; extraction itself happens upstream.
type UploadRequest struct {
	Name     string
	Category string
	MimeType string
	Keywords []string
	Data     []byte
	Text     string
}

// Service owns knowledge document storage, chunking and retrieval
type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	dir      string
	maxBytes int64
}

// NewService creates a knowledge service that writes raw uploads under dir
func NewService(db *gorm.DB, log *zap.Logger, dir string, maxBytes int64) *Service {
	return &Service{db: db, log: log, dir: dir, maxBytes: maxBytes}
}

// Upload validates, stores and chunks a document. Validation happens before
// any write; if anything fails after the raw file was written, the file is
// removed so no orphaned blob remains.
func (s *Service) Upload(ctx context.Context, tenantID uint, req UploadRequest) (*model.KnowledgeDocument, error) {
	if req.Name == "" {
		prometheus.KnowledgeUploadCounter.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: name is required", ErrInvalidUpload)
	}
	if !allowedMimeTypes[req.MimeType] {
		prometheus.KnowledgeUploadCounter.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: unsupported file type %q", ErrInvalidUpload, req.MimeType)
	}
	if int64(len(req.Data)) > s.maxBytes {
		prometheus.KnowledgeUploadCounter.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidUpload, s.maxBytes)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		prometheus.KnowledgeUploadCounter.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to prepare upload directory: %w", err)
	}

	filePath := filepath.Join(s.dir, uuid.New().String())
	if err := os.WriteFile(filePath, req.Data, 0o644); err != nil {
		prometheus.KnowledgeUploadCounter.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	doc, err := s.ingest(ctx, tenantID, req, filePath)
	if err != nil {
		// Remove the raw file so a failed ingestion leaves nothing behind
		if rmErr := os.Remove(filePath); rmErr != nil {
			s.log.Error("Failed to remove orphaned upload file",
				zap.String("path", filePath), zap.Error(rmErr))
		}
		prometheus.KnowledgeUploadCounter.WithLabelValues("error").Inc()
		return nil, err
	}

	prometheus.KnowledgeUploadCounter.WithLabelValues("ok").Inc()
	return doc, nil
}

func (s *Service) ingest(ctx context.Context, tenantID uint, req UploadRequest, filePath string) (*model.KnowledgeDocument, error) {
	text := req.Text
	if text == "" {
		text = string(req.Data)
	}

	doc := model.KnowledgeDocument{
		TenantID:  tenantID,
		Name:      req.Name,
		Category:  req.Category,
		MimeType:  req.MimeType,
		FilePath:  filePath,
		SizeBytes: int64(len(req.Data)),
		Status:    model.DocumentProcessing,
		Active:    true,
		RawText:   text,
		Keywords:  model.StringSlice(req.Keywords),
	}
	if err := s.db.WithContext(ctx).Create(&doc).Error; err != nil {
		return nil, fmt.Errorf("failed to create knowledge document: %w", err)
	}

	// Chunking happens once; the document then becomes ready
	chunks := Chunk(text, DefaultChunkSize, DefaultChunkOverlap)
	err := s.db.WithContext(ctx).Model(&doc).Updates(map[string]interface{}{
		"chunks": model.StringSlice(chunks),
		"status": model.DocumentReady,
	}).Error
	if err != nil {
		// Leave the row in error state rather than silently half-processed
		s.db.WithContext(ctx).Model(&doc).UpdateColumn("status", model.DocumentError)
		return nil, fmt.Errorf("failed to chunk document: %w", err)
	}

	doc.Chunks = model.StringSlice(chunks)
	doc.Status = model.DocumentReady

	s.log.Info("Knowledge document ingested",
		zap.Uint("tenant_id", tenantID),
		zap.Uint("document_id", doc.ID),
		zap.String("name", doc.Name),
		zap.Int("chunks", len(chunks)))
	return &doc, nil
}

// Reupload replaces the content of a document that ended in error status.
// Ready documents are immutable and must be deleted and re-created instead.
func (s *Service) Reupload(ctx context.Context, tenantID, docID uint, req UploadRequest) (*model.KnowledgeDocument, error) {
	var existing model.KnowledgeDocument
	err := s.db.WithContext(ctx).Where("id = ? AND tenant_id = ?", docID, tenantID).First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	if existing.Status != model.DocumentError {
		return nil, fmt.Errorf("%w: only failed documents may be replaced", ErrInvalidUpload)
	}

	if err := s.db.WithContext(ctx).Delete(&existing).Error; err != nil {
		return nil, fmt.Errorf("failed to remove failed document: %w", err)
	}
	return s.Upload(ctx, tenantID, req)
}

// UpdateMetadata edits name, category and keywords. Content is immutable
// once a document is ready.
func (s *Service) UpdateMetadata(ctx context.Context, tenantID, docID uint, name, category string, keywords []string) (*model.KnowledgeDocument, error) {
	var doc model.KnowledgeDocument
	err := s.db.WithContext(ctx).Where("id = ? AND tenant_id = ?", docID, tenantID).First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to load document: %w", err)
	}

	updates := map[string]interface{}{}
	if name != "" {
		updates["name"] = name
	}
	if category != "" {
		updates["category"] = category
	}
	if keywords != nil {
		updates["keywords"] = model.StringSlice(keywords)
	}
	if len(updates) == 0 {
		return &doc, nil
	}

	if err := s.db.WithContext(ctx).Model(&doc).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update document metadata: %w", err)
	}
	return &doc, nil
}

// List returns the tenant's documents, newest first
func (s *Service) List(ctx context.Context, tenantID uint) ([]model.KnowledgeDocument, error) {
	var docs []model.KnowledgeDocument
	err := s.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Find(&docs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

// Delete removes a document and its stored file
func (s *Service) Delete(ctx context.Context, tenantID, docID uint) error {
	var doc model.KnowledgeDocument
	err := s.db.WithContext(ctx).Where("id = ? AND tenant_id = ?", docID, tenantID).First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDocumentNotFound
		}
		return fmt.Errorf("failed to load document: %w", err)
	}

	if err := s.db.WithContext(ctx).Delete(&doc).Error; err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	if doc.FilePath != "" {
		if err := os.Remove(doc.FilePath); err != nil && !os.IsNotExist(err) {
			s.log.Error("Failed to remove document file",
				zap.String("path", doc.FilePath), zap.Error(err))
		}
	}
	return nil
}
