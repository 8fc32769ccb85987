package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ValmirAutomacao/optusadmin-sub000/internal/knowledge"
	"github.com/ValmirAutomacao/optusadmin-sub000/pkg/logger"
	"github.com/ValmirAutomacao/optusadmin-sub000/prometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// UploadDocument ingests one knowledge document from a multipart form
func UploadDocument(c echo.Context) error {
	log := logger.FromEcho(c)
	tenantID := c.Get("tenant_id").(uint)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "file is required"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		log.Error("Failed to open uploaded file", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to read upload"})
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		log.Error("Failed to read uploaded file", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to read upload"})
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	var keywords []string
	if raw := c.FormValue("keywords"); raw != "" {
		for _, k := range strings.Split(raw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keywords = append(keywords, k)
			}
		}
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	doc, err := docs.Upload(c.Request().Context(), tenantID, knowledge.UploadRequest{
		Name:     c.FormValue("name"),
		Category: c.FormValue("category"),
		MimeType: mimeType,
		Keywords: keywords,
		Data:     data,
		Text:     c.FormValue("text"),
	})
	if err != nil {
		if errors.Is(err, knowledge.ErrInvalidUpload) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		log.Error("Document upload failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "upload failed"})
	}

	return c.JSON(http.StatusCreated, doc)
}

// ListDocuments returns the tenant's knowledge documents
func ListDocuments(c echo.Context) error {
	log := logger.FromEcho(c)
	tenantID := c.Get("tenant_id").(uint)

	defer prometheus.TrackDBOperation("query")(time.Now())

	list, err := docs.List(c.Request().Context(), tenantID)
	if err != nil {
		log.Error("Failed to list documents", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list documents"})
	}
	return c.JSON(http.StatusOK, echo.Map{"documents": list})
}

// UpdateDocument edits a document's metadata; content stays immutable
func UpdateDocument(c echo.Context) error {
	log := logger.FromEcho(c)
	tenantID := c.Get("tenant_id").(uint)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid document id"})
	}

	var req struct {
		Name     string   `json:"name"`
		Category string   `json:"category"`
		Keywords []string `json:"keywords"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	doc, err := docs.UpdateMetadata(c.Request().Context(), tenantID, uint(id), req.Name, req.Category, req.Keywords)
	if err != nil {
		if errors.Is(err, knowledge.ErrDocumentNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "document not found"})
		}
		log.Error("Failed to update document", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.JSON(http.StatusOK, doc)
}

// DeleteDocument removes a document and its stored file
func DeleteDocument(c echo.Context) error {
	log := logger.FromEcho(c)
	tenantID := c.Get("tenant_id").(uint)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid document id"})
	}

	if err := docs.Delete(c.Request().Context(), tenantID, uint(id)); err != nil {
		if errors.Is(err, knowledge.ErrDocumentNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "document not found"})
		}
		log.Error("Failed to delete document", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "deleted"})
}

// SearchKnowledge runs a relevance query over the tenant's documents
func SearchKnowledge(c echo.Context) error {
	log := logger.FromEcho(c)
	tenantID := c.Get("tenant_id").(uint)

	query := c.QueryParam("q")
	if query == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "q is required"})
	}

	limit := 5
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	results, err := docs.Search(c.Request().Context(), tenantID, query, c.QueryParam("category"), limit)
	if err != nil {
		log.Error("Knowledge search failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "search failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"results": results})
}
