package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/carlosapgomes/triage-automation/pkg/models"
	"github.com/carlosapgomes/triage-automation/pkg/pipeline"
)

type widgetBootstrapRequest struct {
	CaseID string `json:"case_id" binding:"required,uuid"`
}

type widgetBootstrapResponse struct {
	CaseID         string  `json:"case_id"`
	Status         string  `json:"status"`
	DoctorDecision *string `json:"doctor_decision"`
	DoctorReason   *string `json:"doctor_reason"`
}

// handleWidgetBootstrap serves POST /widget/room2/bootstrap, grounded
// on widget_router.py's widget_bootstrap: admin-only, 404 on unknown
// case, 409 when the case has already left WAIT_DOCTOR.
func (s *Server) handleWidgetBootstrap(c *gin.Context) {
	if _, err := s.guard.RequireAdminUser(c.Request.Context(), c.GetHeader("Authorization")); err != nil {
		writeAuthError(c, err)
		return
	}

	var req widgetBootstrapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snap, err := s.widget.GetWidgetDecisionSnapshot(c.Request.Context(), req.CaseID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if snap == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "case not found"})
		return
	}
	if snap.Status != models.StatusWaitDoctor {
		c.JSON(http.StatusConflict, gin.H{"error": "case not in WAIT_DOCTOR"})
		return
	}

	c.JSON(http.StatusOK, widgetBootstrapResponse{
		CaseID: snap.CaseID, Status: string(snap.Status),
		DoctorDecision: snap.DoctorDecision, DoctorReason: snap.DoctorReason,
	})
}

type widgetSubmitRequest struct {
	CaseID       string  `json:"case_id" binding:"required,uuid"`
	DoctorUserID string  `json:"doctor_user_id" binding:"required"`
	Decision     string  `json:"decision" binding:"required,oneof=accept deny"`
	SupportFlag  string  `json:"support_flag" binding:"omitempty,oneof=none anesthesist anesthesist_icu"`
	Reason       *string `json:"reason"`
}

// handleWidgetSubmit serves POST /widget/room2/submit. support_flag
// defaults to "none" when absent, and deny+non-none support_flag is
// rejected the same way the chat-reply path rejects it.
func (s *Server) handleWidgetSubmit(c *gin.Context) {
	if _, err := s.guard.RequireAdminUser(c.Request.Context(), c.GetHeader("Authorization")); err != nil {
		writeAuthError(c, err)
		return
	}

	var req widgetSubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	supportFlag := req.SupportFlag
	if supportFlag == "" {
		supportFlag = string(models.SupportNone)
	}
	if req.Decision == string(models.DoctorDecisionDeny) && supportFlag != string(models.SupportNone) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_support_flag_for_decision"})
		return
	}
	reason := ""
	if req.Reason != nil {
		reason = *req.Reason
	}

	outcome, err := s.widget.HandleWidgetDoctorDecision(
		c.Request.Context(), req.CaseID, req.DoctorUserID,
		models.DoctorDecision(req.Decision), models.SupportFlag(supportFlag), reason)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	switch outcome {
	case pipeline.WidgetDecisionNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": "case not found"})
	case pipeline.WidgetDecisionWrongState:
		c.JSON(http.StatusConflict, gin.H{"error": "case not in WAIT_DOCTOR"})
	default:
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
