// Package server exposes the verification pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agenthands/certverify/internal/config"
	"github.com/agenthands/certverify/internal/model"
)

type Verifier interface {
	Verify(ctx context.Context, filename string, data []byte) *model.Verdict
}

type RecordCounter interface {
	Len() int
}

type Server struct {
	Verifier Verifier
	Records  RecordCounter
	Config   config.ServerConfig
	Logger   *slog.Logger
}

func NewServer(v Verifier, records RecordCounter, cfg config.ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 16
	}
	return &Server{Verifier: v, Records: records, Config: cfg, Logger: logger}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), s.cors())
	r.MaxMultipartMemory = s.maxUpload()

	r.GET("/", s.Index)
	r.GET("/healthz", s.Health)
	r.POST("/api/verify", s.Verify)

	return r
}

func (s *Server) maxUpload() int64 {
	return int64(s.Config.MaxUploadMB) << 20
}

const indexText = `Certificate verification service

POST /api/verify  multipart/form-data with a "file" field (.pdf, .jpg, .jpeg, .png)
GET  /healthz     liveness and loaded record count
`

func (s *Server) Index(c *gin.Context) {
	c.String(http.StatusOK, indexText)
}

func (s *Server) Health(c *gin.Context) {
	n := 0
	if s.Records != nil {
		n = s.Records.Len()
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "records": n})
}

func (s *Server) Verify(c *gin.Context) {
	// Multipart framing is small; leave 1MB of headroom over the file limit.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload()+1<<20)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
		case errors.Is(err, http.ErrMissingFile) && hasEmptyFilePart(c):
			c.JSON(http.StatusBadRequest, gin.H{"error": "No file selected"})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "No file part in request"})
		}
		return
	}
	if fh.Filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file selected"})
		return
	}
	if fh.Size > s.maxUpload() {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		s.Logger.Error("failed to open upload", "filename", fh.Filename, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read upload"})
		return
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		s.Logger.Error("failed to read upload", "filename", fh.Filename, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read upload"})
		return
	}

	verdict := s.Verifier.Verify(c.Request.Context(), fh.Filename, data)
	status := http.StatusOK
	if verdict.Failure == model.FailureUnsupportedFormat {
		status = http.StatusBadRequest
	}
	c.JSON(status, verdict)
}

// hasEmptyFilePart reports whether the form carried a "file" part with no
// filename, which the multipart reader files under values.
func hasEmptyFilePart(c *gin.Context) bool {
	form := c.Request.MultipartForm
	return form != nil && len(form.Value["file"]) > 0
}

func (s *Server) cors() gin.HandlerFunc {
	origin := s.Config.AllowedOrigin
	return func(c *gin.Context) {
		if origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.Logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP())
	}
}
