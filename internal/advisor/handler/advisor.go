// Package handler provides HTTP handlers for the advisor service.
package handler

import (
	"context"
	stderrors "errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/sentinel-advisor/internal/advisor/biz"
	"github.com/kart-io/sentinel-advisor/internal/advisor/metrics"
	"github.com/kart-io/sentinel-advisor/internal/model"
	log "github.com/kart-io/sentinel-advisor/pkg/infra/logger"
	"github.com/kart-io/sentinel-advisor/pkg/utils/errors"
	"github.com/kart-io/sentinel-advisor/pkg/utils/response"
	"github.com/kart-io/sentinel-advisor/pkg/utils/validator"
)

// Multipart field names used by the frontend.
const (
	FieldPDFs = "pdfs"
	FieldURLs = "urls"
)

// MetricsNamespace and MetricsSubsystem prefix every exported metric.
const (
	MetricsNamespace = "sentinel"
	MetricsSubsystem = "advisor"
)

// Config controls handler behaviour.
type Config struct {
	// RequestTimeout bounds ingest and recommend calls.
	RequestTimeout time.Duration
	// ReturnSources adds retrieved sources to /recommend responses.
	ReturnSources bool
}

// AdvisorHandler handles advisor HTTP requests.
type AdvisorHandler struct {
	service biz.Service
	metrics *metrics.AdvisorMetrics
	config  Config
}

// NewAdvisorHandler creates a new AdvisorHandler.
func NewAdvisorHandler(service biz.Service, m *metrics.AdvisorMetrics, cfg Config) *AdvisorHandler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if m == nil {
		m = metrics.Global()
	}
	return &AdvisorHandler{service: service, metrics: m, config: cfg}
}

// recommendResponse is the default /recommend payload.
type recommendResponse struct {
	Recommendation string `json:"recommendation"`
}

// Profile scores a questionnaire.
func (h *AdvisorHandler) Profile(c *gin.Context) {
	var q model.Questionnaire
	if err := c.ShouldBindJSON(&q); err != nil {
		response.Fail(c, errors.ErrBadRequest.WithCause(err))
		return
	}

	profile, err := h.service.Profile(c.Request.Context(), &q)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Write(c, http.StatusOK, profile)
}

// IngestSources loads uploaded PDFs and URLs into a fresh vector index.
func (h *AdvisorHandler) IngestSources(c *gin.Context) {
	req, err := parseIngestForm(c)
	if err != nil {
		response.Fail(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.config.RequestTimeout)
	defer cancel()

	result, err := h.service.Ingest(ctx, req)
	if err != nil {
		response.Fail(c, h.timeoutOr(ctx, err))
		return
	}
	response.Write(c, http.StatusOK, result)
}

// Recommend answers a question for a risk profile.
func (h *AdvisorHandler) Recommend(c *gin.Context) {
	var req biz.RecommendRequest
	// 字段校验交给 biz 层，保证先返回索引未就绪
	if err := c.ShouldBindJSON(&req); err != nil && !stderrors.Is(err, io.EOF) && !validator.IsValidationError(err) {
		response.Fail(c, errors.ErrBadRequest.WithCause(err))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.config.RequestTimeout)
	defer cancel()

	result, err := h.service.Recommend(ctx, &req)
	if err != nil {
		response.Fail(c, h.timeoutOr(ctx, err))
		return
	}

	if h.config.ReturnSources {
		response.Write(c, http.StatusOK, result)
		return
	}
	response.Write(c, http.StatusOK, recommendResponse{Recommendation: result.Recommendation})
}

// Health reports liveness.
func (h *AdvisorHandler) Health(c *gin.Context) {
	response.Write(c, http.StatusOK, gin.H{"status": "ok"})
}

// Stats returns index and business statistics.
func (h *AdvisorHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Write(c, http.StatusOK, stats)
}

// Metrics exports business metrics in Prometheus text format.
func (h *AdvisorHandler) Metrics(c *gin.Context) {
	c.Data(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8",
		[]byte(h.metrics.Export(MetricsNamespace, MetricsSubsystem)))
}

func (h *AdvisorHandler) timeoutOr(ctx context.Context, err error) error {
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		log.FromContext(ctx).Warnw("advisor request timed out", "timeout", h.config.RequestTimeout.String(), "error", err.Error())
		return errors.ErrRequestTimeout.WithCause(err)
	}
	return err
}

// parseIngestForm reads the pdfs files and urls fields. A request that is not
// multipart is treated as carrying no sources.
func parseIngestForm(c *gin.Context) (*biz.IngestRequest, error) {
	req := &biz.IngestRequest{}
	form, err := c.MultipartForm()
	if err != nil {
		if stderrors.Is(err, http.ErrNotMultipart) || stderrors.Is(err, http.ErrMissingBoundary) {
			if v := c.PostFormArray(FieldURLs); len(v) > 0 {
				req.URLs = SplitURLs(v)
			}
			return req, nil
		}
		return nil, errors.ErrBadRequest.WithCause(err)
	}

	for _, fh := range form.File[FieldPDFs] {
		if fh.Filename == "" && fh.Size == 0 {
			continue
		}
		req.PDFs = append(req.PDFs, biz.PDFUpload{
			Filename: fh.Filename,
			Open:     opener(fh),
		})
	}
	req.URLs = SplitURLs(form.Value[FieldURLs])
	return req, nil
}

func opener(fh *multipart.FileHeader) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		return fh.Open()
	}
}

// SplitURLs flattens url fields that may hold several newline or comma
// separated values, dropping blanks.
func SplitURLs(values []string) []string {
	var urls []string
	for _, v := range values {
		for _, u := range strings.FieldsFunc(v, func(r rune) bool {
			return r == '\n' || r == '\r' || r == ','
		}) {
			if u = strings.TrimSpace(u); u != "" {
				urls = append(urls, u)
			}
		}
	}
	return urls
}
