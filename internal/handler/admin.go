package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mybeatfi/securegate/internal/security"
	"github.com/mybeatfi/securegate/internal/service"
)

type AdminHandler struct {
	analytics *service.AnalyticsService
	sessions  *security.Registry
}

func NewAdminHandler(analytics *service.AnalyticsService, sessions *security.Registry) *AdminHandler {
	return &AdminHandler{analytics: analytics, sessions: sessions}
}

// Handles GET /api/admin/security/summary
func (h *AdminHandler) GetSummary(c *gin.Context) {
	from, to, err := parseTimeRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	summary, err := h.analytics.GetSummary(c.Request.Context(), from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// Handles GET /api/admin/security/timeseries
func (h *AdminHandler) GetTimeSeries(c *gin.Context) {
	from, to, err := parseTimeRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	series, err := h.analytics.GetTimeSeries(c.Request.Context(), from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, series)
}

// Handles GET /api/admin/security/events
func (h *AdminHandler) GetEvents(c *gin.Context) {
	from, to, err := parseTimeRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	limit, offset := parsePagination(c)
	kind := c.Query("kind")

	events, err := h.analytics.GetEvents(c.Request.Context(), kind, from, to, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"limit":  limit,
		"offset": offset,
	})
}

// Handles GET /api/admin/security/sessions/:id
func (h *AdminHandler) GetSession(c *gin.Context) {
	id := c.Param("id")
	limit, _ := parsePagination(c)

	events, err := h.analytics.GetSessionEvents(c.Request.Context(), id, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{
		"session_id": id,
		"active":     false,
		"events":     events,
	}
	if g, ok := h.sessions.Lookup(id); ok {
		resp["active"] = true
		resp["blocked"] = g.IsBlocked()
		resp["violations"] = g.Violations()
	}

	c.JSON(http.StatusOK, resp)
}

// Handles DELETE /api/admin/security/sessions/:id/violations
func (h *AdminHandler) ClearSession(c *gin.Context) {
	g, ok := h.sessions.Lookup(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	g.ClearViolations()
	c.JSON(http.StatusOK, gin.H{"message": "Violations cleared"})
}

// Parses 'limit' and 'offset' query parameters
func parsePagination(c *gin.Context) (int, int) {
	limit := 100
	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 1000 {
			limit = l
		}
	}

	offset := 0
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	return limit, offset
}

// Parses 'from' and 'to' query parameters
func parseTimeRange(c *gin.Context) (time.Time, time.Time, error) {
	// Default: last 24 hours
	to := time.Now()
	from := to.Add(-24 * time.Hour)

	if fromStr := c.Query("from"); fromStr != "" {
		parsed, err := parseTime(fromStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = parsed
	}

	if toStr := c.Query("to"); toStr != "" {
		parsed, err := parseTime(toStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = parsed
	}

	return from, to, nil
}

// RFC 3339 or Unix seconds
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	if timestamp, convErr := strconv.ParseInt(s, 10, 64); convErr == nil {
		return time.Unix(timestamp, 0), nil
	}
	return time.Time{}, err
}
