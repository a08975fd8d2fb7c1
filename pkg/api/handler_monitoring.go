package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/carlosapgomes/triage-automation/pkg/models"
	"github.com/carlosapgomes/triage-automation/pkg/monitoring"
)

type monitoringCaseListItem struct {
	CaseID           string    `json:"case_id"`
	Status           string    `json:"status"`
	LatestActivityAt time.Time `json:"latest_activity_at"`
}

type monitoringCaseListResponse struct {
	Items    []monitoringCaseListItem `json:"items"`
	Page     int                      `json:"page"`
	PageSize int                      `json:"page_size"`
	Total    int                      `json:"total"`
}

type monitoringTimelineItem struct {
	Source      string    `json:"source"`
	Timestamp   time.Time `json:"timestamp"`
	RoomID      *string   `json:"room_id"`
	Actor       string    `json:"actor"`
	EventType   string    `json:"event_type"`
	ContentText *string   `json:"content_text"`
	Payload     any       `json:"payload"`
}

type monitoringCaseDetailResponse struct {
	CaseID   string                   `json:"case_id"`
	Status   string                   `json:"status"`
	Timeline []monitoringTimelineItem `json:"timeline"`
}

// handleListCases serves GET /monitoring/cases: audit-read auth, then
// page/page_size/status/from_date/to_date query params delegated to
// monitoring.Service.
func (s *Server) handleListCases(c *gin.Context) {
	if _, err := s.guard.RequireAuditUser(c.Request.Context(), c.GetHeader("Authorization")); err != nil {
		writeAuthError(c, err)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	if pageSize < 1 {
		pageSize = 10
	}

	query := monitoring.ListQuery{Page: page, PageSize: pageSize}
	if raw := c.Query("status"); raw != "" {
		status := models.CaseStatus(raw)
		query.Status = &status
	}
	if raw := c.Query("from_date"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid from_date"})
			return
		}
		query.FromDate = &t
	}
	if raw := c.Query("to_date"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid to_date"})
			return
		}
		query.ToDate = &t
	}

	result, err := s.monitoring.ListCases(c.Request.Context(), query)
	if err != nil {
		if errors.Is(err, monitoring.ErrInvalidPeriod) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	resp := monitoringCaseListResponse{Page: result.Page, PageSize: result.PageSize, Total: result.Total}
	for _, item := range result.Items {
		resp.Items = append(resp.Items, monitoringCaseListItem{
			CaseID: item.CaseID, Status: string(item.Status), LatestActivityAt: item.LatestActivityAt,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// handleGetCaseDetail serves GET /monitoring/cases/:case_id, grounded
// on monitoring_router.py's get_case_detail.
func (s *Server) handleGetCaseDetail(c *gin.Context) {
	if _, err := s.guard.RequireAuditUser(c.Request.Context(), c.GetHeader("Authorization")); err != nil {
		writeAuthError(c, err)
		return
	}

	caseID := c.Param("case_id")
	detail, err := s.monitoring.GetCaseDetail(c.Request.Context(), caseID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if detail == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "case not found"})
		return
	}

	resp := monitoringCaseDetailResponse{CaseID: detail.CaseID, Status: string(detail.Status)}
	for _, entry := range detail.Timeline {
		var payload any
		if len(entry.Payload) > 0 {
			payload = json.RawMessage(entry.Payload)
		}
		resp.Timeline = append(resp.Timeline, monitoringTimelineItem{
			Source: string(entry.Source), Timestamp: entry.Timestamp, RoomID: entry.RoomID,
			Actor: entry.Actor, EventType: entry.EventType, ContentText: entry.ContentText, Payload: payload,
		})
	}
	c.JSON(http.StatusOK, resp)
}
