package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	reportstack_errors "github.com/dmarcwatch/reportstack/errors"
	"github.com/dmarcwatch/reportstack/interfaces"
	"github.com/dmarcwatch/reportstack/internal/repository"
	"github.com/dmarcwatch/reportstack/internal/tracing"
	"github.com/dmarcwatch/reportstack/services"
)

type AdminHandler struct {
	ingestedReportRepository interfaces.IngestedReportRepository
	services                 *services.Services
}

func NewAdminHandler(repos *repository.Repositories, s *services.Services) *AdminHandler {
	return &AdminHandler{
		ingestedReportRepository: repos.IngestedReportRepository,
		services:                 s,
	}
}

// TriggerIngest runs one ingestion pass outside the cron schedule
func (h *AdminHandler) TriggerIngest(batchLimit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "TriggerIngest")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		summary, err := h.services.IngestionService.IngestFromInbox(ctx, batchLimit)
		if err != nil {
			tracing.TraceErr(span, err)
			if errors.Is(err, reportstack_errors.ErrMailConfigMissing) {
				c.JSON(http.StatusConflict, gin.H{"error": "Mail fetch is not configured"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "summary": summary})
			return
		}

		c.JSON(http.StatusOK, gin.H{"summary": summary})
	}
}

// TriggerProcess drains pending ingested reports outside the cron schedule
func (h *AdminHandler) TriggerProcess(batchLimit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "TriggerProcess")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		summary, err := h.services.ProcessingService.ProcessPendingReports(ctx, batchLimit)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "summary": summary})
			return
		}

		c.JSON(http.StatusOK, gin.H{"summary": summary})
	}
}

// RequeueReport flips a failed ingested report back to pending so the
// next processing pass retries it
func (h *AdminHandler) RequeueReport() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "RequeueReport")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
			return
		}

		if err := h.ingestedReportRepository.Requeue(ctx, uint(id)); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "No failed report with that id"})
				return
			}
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to requeue report"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"requeued": id})
	}
}
