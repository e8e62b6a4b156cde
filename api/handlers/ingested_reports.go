package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/dmarcwatch/reportstack/interfaces"
	"github.com/dmarcwatch/reportstack/internal/enum"
	"github.com/dmarcwatch/reportstack/internal/repository"
	"github.com/dmarcwatch/reportstack/internal/tracing"
)

type IngestedReportsHandler struct {
	ingestedReportRepository interfaces.IngestedReportRepository
}

func NewIngestedReportsHandler(repos *repository.Repositories) *IngestedReportsHandler {
	return &IngestedReportsHandler{
		ingestedReportRepository: repos.IngestedReportRepository,
	}
}

// List returns ingested report rows, newest first, optionally filtered
// by status (?status=pending|processing|completed|failed)
func (h *IngestedReportsHandler) List() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "ListIngestedReports")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		var statusFilter *enum.IngestionStatus
		if raw := c.Query("status"); raw != "" {
			status, ok := enum.DecodeIngestionStatus(raw)
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status: " + raw})
				return
			}
			statusFilter = &status
		}

		limit := queryInt(c, "limit", 50)
		offset := queryInt(c, "offset", 0)

		reports, err := h.ingestedReportRepository.List(ctx, statusFilter, limit, offset)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list ingested reports"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"ingested_reports": reports})
	}
}

// Get returns a single ingested report row by id
func (h *IngestedReportsHandler) Get() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "GetIngestedReport")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
			return
		}

		report, err := h.ingestedReportRepository.GetByID(ctx, uint(id))
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get ingested report"})
			return
		}
		if report == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Ingested report not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"ingested_report": report})
	}
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
