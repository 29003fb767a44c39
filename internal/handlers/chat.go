package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/voltaprotect/groupbuy-backend/internal/platform/ctxutil"
	"github.com/voltaprotect/groupbuy-backend/internal/services"
)

type ChatHandler struct {
	chatService services.ChatService
}

func NewChatHandler(chatService services.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// capabilityFrom assembles the chat capability for the request: an admin
// session placed in context by OptionalAuth, or the participant id plus
// capability token from query/header.
func capabilityFrom(c *gin.Context) services.ChatCapability {
	var capability services.ChatCapability
	if rd := ctxutil.GetRequestData(c.Request.Context()); rd != nil && rd.AdminID != uuid.Nil {
		adminID := rd.AdminID
		capability.AdminID = &adminID
		capability.AdminEmail = rd.Email
		return capability
	}
	if raw := c.Query("participant_id"); raw != "" {
		if participantID, err := uuid.Parse(raw); err == nil {
			capability.ParticipantID = &participantID
		}
	}
	capability.Token = c.Query("chat_token")
	if capability.Token == "" {
		capability.Token = c.GetHeader("X-Chat-Token")
	}
	return capability
}

func (ch *ChatHandler) Post(c *gin.Context) {
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	msg, err := ch.chatService.PostMessage(c.Request.Context(), groupID, capabilityFrom(c), req.Text)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondCreated(c, gin.H{"message": msg})
}

func (ch *ChatHandler) List(c *gin.Context) {
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}
	var since *time.Time
	if raw := c.Query("since"); raw != "" {
		parsed, pErr := time.Parse(time.RFC3339Nano, raw)
		if pErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since timestamp"})
			return
		}
		since = &parsed
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	msgs, err := ch.chatService.ListMessages(c.Request.Context(), groupID, capabilityFrom(c), since, limit)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"messages": msgs})
}
