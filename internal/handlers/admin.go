package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/voltaprotect/groupbuy-backend/internal/platform/apierr"
	"github.com/voltaprotect/groupbuy-backend/internal/platform/ctxutil"
	"github.com/voltaprotect/groupbuy-backend/internal/repos"
	"github.com/voltaprotect/groupbuy-backend/internal/services"
	"github.com/voltaprotect/groupbuy-backend/internal/types"
)

// AdminHandler exposes the operator surface: proposal review, lifecycle
// progression and payment bookkeeping. All routes sit behind RequireAuth.
type AdminHandler struct {
	groups    services.GroupOrderService
	proposals services.ProposalService
	payments  services.PaymentService
}

func NewAdminHandler(
	groups services.GroupOrderService,
	proposals services.ProposalService,
	payments services.PaymentService,
) *AdminHandler {
	return &AdminHandler{
		groups:    groups,
		proposals: proposals,
		payments:  payments,
	}
}

func (ah *AdminHandler) ListPendingProposals(c *gin.Context) {
	groups, err := ah.proposals.ListPending(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"groups": groups})
}

func (ah *AdminHandler) ReviewProposal(c *gin.Context) {
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.AdminID == uuid.Nil {
		RespondError(c, apierr.Unauthorizedf("admin session required"))
		return
	}
	var req struct {
		Action string `json:"action"`
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	group, err := ah.proposals.Review(c.Request.Context(), groupID, rd.AdminID, services.ReviewAction(req.Action), req.Reason)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"group": group})
}

func (ah *AdminHandler) Advance(c *gin.Context) {
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}
	var req struct {
		Status types.GroupStatus `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	group, err := ah.groups.Advance(c.Request.Context(), groupID, req.Status)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"group": group})
}

func (ah *AdminHandler) Cancel(c *gin.Context) {
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}
	group, err := ah.groups.Cancel(c.Request.Context(), groupID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"group": group})
}

func (ah *AdminHandler) UpdatePayment(c *gin.Context) {
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}
	participantID, err := uuid.Parse(c.Param("participantId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid participant id"})
		return
	}
	var req struct {
		Status        types.PaymentStatus `json:"status"`
		PaidAmount    *int64              `json:"paid_amount"`
		TransactionID *string             `json:"transaction_id"`
		AdminNote     *string             `json:"admin_note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	participant, err := ah.payments.UpdateStatus(c.Request.Context(), groupID, participantID, repos.PaymentUpdate{
		Status:        req.Status,
		PaidAmount:    req.PaidAmount,
		TransactionID: req.TransactionID,
		AdminNote:     req.AdminNote,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"participant": participant})
}
