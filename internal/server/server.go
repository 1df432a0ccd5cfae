package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/medbillai/medbill/internal/bills"
	"github.com/medbillai/medbill/internal/common"
	"github.com/medbillai/medbill/internal/extract"
	"github.com/medbillai/medbill/internal/jobs"
	"github.com/medbillai/medbill/internal/refdata"
)

// Server wires the audit pipeline to its HTTP surface.
type Server struct {
	orch      *jobs.Orchestrator
	bills     *bills.Service
	ref       *refdata.Index
	fields    extract.FieldExtractor
	uploadDir string
	log       *slog.Logger
}

func New(orch *jobs.Orchestrator, billSvc *bills.Service, ref *refdata.Index, fields extract.FieldExtractor, uploadDir string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		orch:      orch,
		bills:     billSvc,
		ref:       ref,
		fields:    fields,
		uploadDir: uploadDir,
		log:       logger,
	}
}

// Router builds the gin engine with all routes attached.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())

	api := r.Group("/api")
	{
		api.GET("/status", s.handleStatus)
		api.POST("/upload", s.handleUpload)
		api.GET("/jobs/:id", s.handleJob)
		api.GET("/jobs/:id/stream", s.handleJobStream)
		api.GET("/bills", s.handleBillList)
		api.GET("/bills/:id", s.handleBillDetail)
		api.POST("/bills/:id/save", s.handleBillSave)
		api.GET("/rates/search", s.handleRateSearch)
		api.GET("/hospitals/search", s.handleHospitalSearch)
	}
	return r
}

// HTTPServer wraps the router in an http.Server with sane timeouts. SSE
// needs an unbounded write timeout, so only the read side is capped.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("http.request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// writeError maps domain errors onto HTTP statuses.
func (s *Server) writeError(c *gin.Context, err error) {
	var status int
	switch {
	case errors.Is(err, common.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, common.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	default:
		status = http.StatusInternalServerError
	}
	if status >= 500 {
		s.log.Error("http.error", "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
