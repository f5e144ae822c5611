package api

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/semaj90/campaign-rag/internal/apperr"
	"github.com/semaj90/campaign-rag/internal/queue"
	"github.com/semaj90/campaign-rag/internal/store"
)

// UploadDocumentHandler handles POST /campaigns/:id/documents, grounded in
// unified-rag-service's uploadDocumentHandler: accept a multipart file,
// push it to object storage under a timestamped key, create the document
// record, and hand off to the async indexing queue rather than blocking
// the request on extraction.
func (s *Server) UploadDocumentHandler(c *gin.Context) {
	campaignID := c.Param("id")

	file, header, err := c.Request.FormFile("document")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("failed to read uploaded file: %v", err)})
		return
	}
	defer file.Close()

	documentType := c.PostForm("documentType")
	if documentType == "" {
		documentType = string(store.DocumentTypeNotes)
	}
	var tags []string
	if raw := c.PostForm("tags"); raw != "" {
		tags = strings.Split(raw, ",")
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := fmt.Sprintf("%s/%s_%d_%s", campaignID, strings.ReplaceAll(header.Filename, " ", "_"), time.Now().Unix(), filepath.Base(header.Filename))
	storagePath, err := s.Storage.Put(c.Request.Context(), key, file, header.Size, contentType)
	if err != nil {
		s.Logger.Error("document upload failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return
	}

	doc := &store.Document{
		CampaignID:   campaignID,
		Name:         header.Filename,
		DocumentType: store.DocumentType(documentType),
		MimeType:     contentType,
		Tags:         tags,
		StoragePath:  storagePath,
		Metadata:     map[string]interface{}{},
	}
	if err := s.Store.CreateDocument(c.Request.Context(), doc); err != nil {
		s.Logger.Error("failed to create document record", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record document"})
		return
	}

	if err := s.Queue.Enqueue(c.Request.Context(), queue.Payload{DocumentID: doc.ID, CampaignID: campaignID}); err != nil {
		s.Logger.Error("failed to enqueue indexing job", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to queue document for indexing"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"documentId": doc.ID,
		"status":     doc.Status,
		"message":    "document uploaded, indexing started",
	})
}

// GetDocumentHandler handles GET /campaigns/:id/documents/:documentId.
func (s *Server) GetDocumentHandler(c *gin.Context) {
	doc, err := s.Store.GetDocument(c.Request.Context(), c.Param("documentId"))
	if err != nil {
		if ae, ok := apperr.As(err); ok && ae.Code == apperr.CodeNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
			return
		}
		s.Logger.Error("failed to load document", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load document"})
		return
	}
	c.JSON(http.StatusOK, doc)
}

// DocumentStatusHandler handles GET /campaigns/:id/documents/:documentId/status,
// reporting the live indexing progress persisted by the worker
// (spec.md §6's job status/progress polling).
func (s *Server) DocumentStatusHandler(c *gin.Context) {
	documentID := c.Param("documentId")
	doc, err := s.Store.GetDocument(c.Request.Context(), documentID)
	if err != nil {
		if ae, ok := apperr.As(err); ok && ae.Code == apperr.CodeNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
			return
		}
		s.Logger.Error("failed to load document", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load document"})
		return
	}

	progress, err := s.Queue.GetProgress(c.Request.Context(), documentID)
	if err != nil {
		s.Logger.Warn("failed to read job progress", zap.Error(err))
	}

	resp := gin.H{"status": doc.Status, "chunkCount": doc.ChunkCount}
	if doc.FailureMessage != "" {
		resp["failureMessage"] = doc.FailureMessage
	}
	if progress != nil {
		resp["percentage"] = progress.Percentage
		resp["message"] = progress.Message
	}
	c.JSON(http.StatusOK, resp)
}
