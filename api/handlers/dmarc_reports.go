package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/dmarcwatch/reportstack/interfaces"
	"github.com/dmarcwatch/reportstack/internal/repository"
	"github.com/dmarcwatch/reportstack/internal/tracing"
)

type DmarcReportsHandler struct {
	dmarcReportRepository interfaces.DmarcReportRepository
}

func NewDmarcReportsHandler(repos *repository.Repositories) *DmarcReportsHandler {
	return &DmarcReportsHandler{
		dmarcReportRepository: repos.DmarcReportRepository,
	}
}

// List returns parsed reports newest first, optionally filtered by
// published domain (?domain=example.com)
func (h *DmarcReportsHandler) List() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "ListDmarcReports")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		limit := queryInt(c, "limit", 50)
		offset := queryInt(c, "offset", 0)

		reports, err := h.dmarcReportRepository.List(ctx, c.Query("domain"), limit, offset)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list reports"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"reports": reports})
	}
}

// Get returns a single parsed report with its records
func (h *DmarcReportsHandler) Get() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "GetDmarcReport")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
			return
		}

		report, err := h.dmarcReportRepository.GetByID(ctx, uint(id))
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get report"})
			return
		}
		if report == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Report not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"report": report})
	}
}
