package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"audioreport/internal/ai"
	"audioreport/internal/logging"
	"audioreport/internal/memory"
	"audioreport/internal/metrics"
	"audioreport/internal/model"
	"audioreport/internal/report"
	"audioreport/internal/storage"
	"audioreport/internal/stt"
	"audioreport/internal/utils"
)

// Transcriber turns an upload into a transcript record.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string, wantCleaning bool) (*model.TranscriptRecord, error)
}

// Reporter generates reports and corrections.
type Reporter interface {
	Generate(ctx context.Context, req model.ReportRequest) (*model.Report, error)
	Correct(ctx context.Context, text, style string) (*report.Correction, error)
	ServiceStatus(ctx context.Context) (*ai.ServiceStatus, error)
}

// ModelStatus reports the speech model slot.
type ModelStatus interface {
	Status() stt.Status
}

// Handler serves the HTTP API.
type Handler struct {
	transcriber Transcriber
	reporter    Reporter
	catalog     *report.Catalog
	probe       memory.Prober
	models      ModelStatus
	metrics     *metrics.Metrics
	maxUpload   int64
	formats     []string
	log         zerolog.Logger
}

// NewHandler wires the API to its services.
func NewHandler(t Transcriber, r Reporter, catalog *report.Catalog, probe memory.Prober, models ModelStatus, m *metrics.Metrics, maxUpload int64) *Handler {
	return &Handler{
		transcriber: t,
		reporter:    r,
		catalog:     catalog,
		probe:       probe,
		models:      models,
		metrics:     m,
		maxUpload:   maxUpload,
		formats:     storage.AllowedExtensions,
		log:         logging.Component("api"),
	}
}

// WithFormats restricts uploads to the given extensions.
func (h *Handler) WithFormats(exts []string) *Handler {
	h.formats = exts
	return h
}

// RegisterRoutes mounts the API at the root and under /api.
func RegisterRoutes(r *gin.Engine, h *Handler) {
	r.Use(RequestID(), logging.Middleware(), h.metricsMiddleware(), CORS())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h.register(r)
	h.register(r.Group("/api"))
}

func (h *Handler) register(g gin.IRoutes) {
	g.GET("/health", h.healthCheck)
	g.POST("/transcribe", h.transcribe)
	g.POST("/generate-report", h.generateReport)
	g.POST("/correct-text", h.correctText)
	g.POST("/clean-transcript", h.cleanTranscript)
	g.GET("/templates", h.templates)
	g.GET("/memory-stats", h.memoryStats)
	g.GET("/generation-service-status", h.generationStatus)
	g.GET("/ollama-status", h.generationStatus)
}

// healthCheck returns server health status
func (h *Handler) healthCheck(c *gin.Context) {
	utils.JSON(c, http.StatusOK, gin.H{
		"status":  "ok",
		"service": "audioreport",
	})
}

// transcribe handles an audio upload and returns its transcript
func (h *Handler) transcribe(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "No file part")
		return
	}
	if file.Filename == "" {
		utils.Error(c, http.StatusBadRequest, "No selected file")
		return
	}
	if err := storage.ValidateExtension(file.Filename, h.formats); err != nil {
		utils.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	if h.maxUpload > 0 && file.Size > h.maxUpload {
		utils.Error(c, http.StatusBadRequest, fmt.Sprintf("file size exceeds %dMB limit", h.maxUpload>>20))
		return
	}

	clean := strings.ToLower(c.DefaultPostForm("clean_filler_words", "true")) == "true"

	src, err := file.Open()
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "failed to read upload")
		return
	}
	defer src.Close()

	h.log.Info().
		Str("request_id", c.GetString(logging.RequestIDKey)).
		Str("file", file.Filename).
		Int64("size", file.Size).
		Bool("clean", clean).
		Msg("transcription requested")

	rec, err := h.transcriber.Transcribe(c.Request.Context(), src, file.Filename, clean)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.JSON(c, http.StatusOK, rec)
}

type generateReportRequest struct {
	Transcript *string        `json:"transcript"`
	TemplateID string         `json:"templateId"`
	Metadata   model.Metadata `json:"metadata"`
}

// generateReport builds a report from a transcript
func (h *Handler) generateReport(c *gin.Context) {
	var req generateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Transcript == nil {
		utils.Error(c, http.StatusBadRequest, "No transcript provided")
		return
	}

	rep, err := h.reporter.Generate(c.Request.Context(), model.ReportRequest{
		Transcript: *req.Transcript,
		TemplateID: req.TemplateID,
		Metadata:   req.Metadata,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.JSON(c, http.StatusOK, rep)
}

type textRequest struct {
	Text  *string `json:"text"`
	Style string  `json:"style"`
}

func bindText(c *gin.Context) (*textRequest, bool) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Text == nil {
		utils.Error(c, http.StatusBadRequest, "No text provided")
		return nil, false
	}
	return &req, true
}

// correctText rewrites text in an academic register
func (h *Handler) correctText(c *gin.Context) {
	req, ok := bindText(c)
	if !ok {
		return
	}
	out, err := h.reporter.Correct(c.Request.Context(), *req.Text, req.Style)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.JSON(c, http.StatusOK, out)
}

// cleanTranscript removes filler words from text
func (h *Handler) cleanTranscript(c *gin.Context) {
	req, ok := bindText(c)
	if !ok {
		return
	}
	utils.JSON(c, http.StatusOK, gin.H{"cleaned_text": ai.CleanFillers(*req.Text)})
}

func (h *Handler) templates(c *gin.Context) {
	utils.JSON(c, http.StatusOK, h.catalog.Info())
}

func (h *Handler) memoryStats(c *gin.Context) {
	snap := h.probe.Snapshot(c.Request.Context())
	st := h.models.Status()
	utils.JSON(c, http.StatusOK, gin.H{
		"memory": snap,
		"models": gin.H{
			"whisper_loaded": st.Loaded,
			"state":          st.State,
			"tier":           st.Tier,
			"device":         st.Device,
			"backend":        st.Backend,
			"cuda_available": snap.AcceleratorAvailable,
		},
	})
}

func (h *Handler) generationStatus(c *gin.Context) {
	st, err := h.reporter.ServiceStatus(c.Request.Context())
	if err != nil {
		h.log.Warn().Err(err).Msg("generation service status check failed")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}
	utils.JSON(c, http.StatusOK, st)
}

func (h *Handler) fail(c *gin.Context, err error) {
	code := statusFor(err)
	ev := h.log.Warn()
	if code >= http.StatusInternalServerError {
		ev = h.log.Error()
	}
	ev.Err(err).
		Str("request_id", c.GetString(logging.RequestIDKey)).
		Str("path", c.FullPath()).
		Int("status", code).
		Msg("request failed")
	utils.Error(c, code, publicMessage(err, code))
}
