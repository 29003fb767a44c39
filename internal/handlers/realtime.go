package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/voltaprotect/groupbuy-backend/internal/platform/logger"
	"github.com/voltaprotect/groupbuy-backend/internal/realtime"
	"github.com/voltaprotect/groupbuy-backend/internal/realtime/feed"
	"github.com/voltaprotect/groupbuy-backend/internal/services"
)

type RealtimeHandler struct {
	log         *logger.Logger
	hub         *realtime.SSEHub
	chatService services.ChatService
}

func NewRealtimeHandler(baseLog *logger.Logger, hub *realtime.SSEHub, chatService services.ChatService) *RealtimeHandler {
	return &RealtimeHandler{
		log:         baseLog.With("handler", "RealtimeHandler"),
		hub:         hub,
		chatService: chatService,
	}
}

// GroupStream serves the group's full event stream (joins, status changes,
// payments, chat) over SSE. Any valid chat capability grants access.
func (rh *RealtimeHandler) GroupStream(c *gin.Context) {
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}
	if err := rh.chatService.Authorize(c.Request.Context(), groupID, capabilityFrom(c)); err != nil {
		RespondError(c, err)
		return
	}

	client := rh.hub.NewSSEClient()
	rh.hub.AddChannel(client, realtime.GroupChannel(groupID))
	rh.log.Debug("Group stream open", "groupID", groupID, "clientID", client.ID)

	rh.hub.ServeHTTP(c.Writer, c.Request, client)
	rh.hub.CloseClient(client)
}

// ChatStream serves only chat messages, delivered through the feed so that
// hub drops and broker outages degrade to database polling instead of a
// silent gap.
func (rh *RealtimeHandler) ChatStream(c *gin.Context) {
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}
	if err := rh.chatService.Authorize(c.Request.Context(), groupID, capabilityFrom(c)); err != nil {
		RespondError(c, err)
		return
	}

	opts := feed.Options{RetryPush: 30 * time.Second}
	if raw := c.Query("since"); raw != "" {
		since, pErr := time.Parse(time.RFC3339Nano, raw)
		if pErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since timestamp"})
			return
		}
		opts.Since = since
	}

	chatFeed := feed.New(rh.log, feed.NewHubSource(rh.hub), rh.chatService, groupID, opts)

	ctx := c.Request.Context()
	go func() {
		_ = chatFeed.Run(ctx)
	}()

	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case msg, open := <-chatFeed.Messages():
			if !open {
				return
			}
			jsonBytes, mErr := json.Marshal(msg)
			if mErr != nil {
				rh.log.Warn("Failed to marshal chat message", "error", mErr)
				continue
			}
			fmt.Fprintf(w, "event: chat_message\ndata: %s\n\n", string(jsonBytes))
			flusher.Flush()
		}
	}
}
