package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"email-digest/internal/sse"
)

type EventHandler struct {
	sseManager *sse.Manager
	logger     echo.Logger
}

func NewEventHandler(sseManager *sse.Manager, logger echo.Logger) *EventHandler {
	return &EventHandler{
		sseManager: sseManager,
		logger:     logger,
	}
}

// StreamOutcomes provides Server-Sent Events for every reported thread outcome
func (h *EventHandler) StreamOutcomes(c echo.Context) error {
	// Set response headers for SSE
	c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().WriteHeader(http.StatusOK)

	clientChannel := h.sseManager.AddClient()
	defer h.sseManager.RemoveClient(clientChannel)

	initJSON, _ := json.Marshal(map[string]any{
		"type": "connection",
		"data": map[string]string{"message": "Connected to thread outcomes"},
		"time": time.Now().Unix(),
	})
	fmt.Fprintf(c.Response(), "data: %s\n\n", initJSON)
	c.Response().Flush()

	for {
		select {
		case eventData, ok := <-clientChannel:
			if !ok {
				return nil
			}
			fmt.Fprintf(c.Response(), "data: %s\n\n", eventData)
			c.Response().Flush()
		case <-c.Request().Context().Done():
			// Client disconnected
			return nil
		}
	}
}
