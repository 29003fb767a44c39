package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/voltaprotect/groupbuy-backend/internal/services"
	"github.com/voltaprotect/groupbuy-backend/internal/types"
)

type GroupHandler struct {
	groups       services.GroupOrderService
	participants services.ParticipantService
	proposals    services.ProposalService
	payments     services.PaymentService
}

func NewGroupHandler(
	groups services.GroupOrderService,
	participants services.ParticipantService,
	proposals services.ProposalService,
	payments services.PaymentService,
) *GroupHandler {
	return &GroupHandler{
		groups:       groups,
		participants: participants,
		proposals:    proposals,
		payments:     payments,
	}
}

type actorRequest struct {
	UserID *uuid.UUID `json:"user_id,omitempty"`
	Name   string     `json:"name"`
	Phone  string     `json:"phone"`
	Email  string     `json:"email,omitempty"`
}

func (ar actorRequest) toActor() services.Actor {
	return services.Actor{
		UserID: ar.UserID,
		Name:   ar.Name,
		Phone:  ar.Phone,
		Email:  ar.Email,
	}
}

func (gh *GroupHandler) Create(c *gin.Context) {
	var req struct {
		ProductID      uuid.UUID    `json:"product_id"`
		Actor          actorRequest `json:"actor"`
		Qty            int          `json:"qty"`
		Deadline       time.Time    `json:"deadline"`
		ShippingMethod string       `json:"shipping_method"`
		Description    string       `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	result, err := gh.groups.CreateDirect(c.Request.Context(), services.CreateGroupInput{
		ProductID:      req.ProductID,
		Actor:          req.Actor.toActor(),
		Qty:            req.Qty,
		Deadline:       req.Deadline,
		ShippingMethod: req.ShippingMethod,
		Description:    req.Description,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondCreated(c, gin.H{
		"group":       result.Group,
		"participant": result.Participant,
		"chat_token":  result.ChatToken,
	})
}

func (gh *GroupHandler) List(c *gin.Context) {
	filter := services.ListGroupsFilter{
		ActiveOnly: c.Query("active") == "true",
	}
	if raw := c.Query("status"); raw != "" {
		filter.Statuses = append(filter.Statuses, types.GroupStatus(raw))
	}
	if raw := c.Query("product_id"); raw != "" {
		productID, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
			return
		}
		filter.ProductID = &productID
	}
	groups, err := gh.groups.List(c.Request.Context(), filter)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"groups": groups})
}

// Get resolves either a UUID or a public group code.
func (gh *GroupHandler) Get(c *gin.Context) {
	ref := c.Param("id")
	var (
		group *types.GroupOrder
		err   error
	)
	if groupID, pErr := uuid.Parse(ref); pErr == nil {
		group, err = gh.groups.Get(c.Request.Context(), groupID)
	} else {
		group, err = gh.groups.GetByCode(c.Request.Context(), ref)
	}
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"group": group})
}

func (gh *GroupHandler) Join(c *gin.Context) {
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}
	var req struct {
		Actor actorRequest `json:"actor"`
		Qty   int          `json:"qty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	result, err := gh.participants.Join(c.Request.Context(), groupID, req.Actor.toActor(), req.Qty)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondCreated(c, gin.H{
		"participant":        result.Participant,
		"current_qty":        result.NewCurrentQty,
		"current_unit_price": result.NewUnitPrice,
		"group_status":       result.Group.Status,
		"chat_token":         result.ChatToken,
	})
}

func (gh *GroupHandler) Propose(c *gin.Context) {
	var req struct {
		ProductID  uuid.UUID    `json:"product_id"`
		Actor      actorRequest `json:"actor"`
		DesiredQty int          `json:"desired_qty"`
		Message    string       `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	group, err := gh.proposals.Propose(c.Request.Context(), req.ProductID, req.Actor.toActor(), req.DesiredQty, req.Message)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondCreated(c, gin.H{"group": group})
}

// PaymentLinks issues provider links for one participant, identified by id
// or by the phone used at join.
func (gh *GroupHandler) PaymentLinks(c *gin.Context) {
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}
	var participantID *uuid.UUID
	if raw := c.Query("participant_id"); raw != "" {
		parsed, pErr := uuid.Parse(raw)
		if pErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid participant id"})
			return
		}
		participantID = &parsed
	}
	result, err := gh.payments.PaymentLinks(c.Request.Context(), groupID, participantID, c.Query("phone"))
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, result)
}
