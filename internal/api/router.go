package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/semaj90/campaign-rag/internal/config"
	"github.com/semaj90/campaign-rag/internal/embedding"
	"github.com/semaj90/campaign-rag/internal/llm"
	"github.com/semaj90/campaign-rag/internal/queue"
	"github.com/semaj90/campaign-rag/internal/storage"
	"github.com/semaj90/campaign-rag/internal/store"
)

// Server holds the dependencies every handler needs, grounded in
// sse-rag-service's StreamingRAGService receiver-struct wiring pattern.
type Server struct {
	Store     *store.Store
	Storage   *storage.Client
	Embedding *embedding.Client
	LLM       llm.Provider
	Queue     *queue.Queue
	Config    *config.Config
	Logger    *zap.Logger
}

// NewRouter builds the gin engine with the same New()+Logger()+Recovery()+
// permissive-CORS setup sse-rag-service's main() uses, generalized from a
// single flat route list into the campaign-scoped surface spec.md §6 names.
func NewRouter(s *Server) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Accept")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	r.GET("/healthz", s.HealthHandler)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	campaigns := r.Group("/campaigns/:id")
	{
		campaigns.POST("/query", s.QueryHandler)
		campaigns.POST("/documents", s.UploadDocumentHandler)
		campaigns.GET("/documents/:documentId", s.GetDocumentHandler)
		campaigns.GET("/documents/:documentId/status", s.DocumentStatusHandler)
		campaigns.POST("/generate/hooks", s.GenerateHooksHandler)
		campaigns.POST("/generate/npcs", s.GenerateNPCsHandler)
	}

	return r
}

// HealthHandler reports liveness plus the backing LLM provider's own
// health check (spec.md's ambient ops surface).
func (s *Server) HealthHandler(c *gin.Context) {
	if err := s.LLM.HealthCheck(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "llm": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
