package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"email-digest/internal/handler"
	"email-digest/internal/middleware"
)

func SetupRoutes(
	e *echo.Echo,
	threadHandler *handler.ThreadHandler,
	contactHandler *handler.ContactHandler,
	eventHandler *handler.EventHandler,
	apiToken string,
) {
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	// Protected API routes
	protected := e.Group("/api")
	protected.Use(middleware.TokenAuth(apiToken))

	// Thread API routes
	protected.GET("/threads", threadHandler.ListThreads)
	protected.GET("/threads/:id", threadHandler.GetThread)
	protected.POST("/threads/:id/resubmit", threadHandler.ResubmitThread)

	// Contact API routes
	protected.GET("/contacts", contactHandler.ListContacts)

	// Live thread outcomes via Server-Sent Events (SSE)
	protected.GET("/events", eventHandler.StreamOutcomes)
}
