package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"email-digest/internal/model"
	"email-digest/internal/pipeline"
	"email-digest/internal/repository"
)

// Resubmitter re-queues a failed thread.
type Resubmitter interface {
	Resubmit(ctx context.Context, threadID string) (model.RawThread, error)
}

type ThreadHandler struct {
	threadRepo  repository.ThreadRepository
	resubmitter Resubmitter
	logger      echo.Logger
}

func NewThreadHandler(threadRepo repository.ThreadRepository, resubmitter Resubmitter, logger echo.Logger) *ThreadHandler {
	return &ThreadHandler{
		threadRepo:  threadRepo,
		resubmitter: resubmitter,
		logger:      logger,
	}
}

type threadDetail struct {
	*model.ThreadRecord
	Skipped []model.SkippedMessage `json:"skipped"`
}

// ListThreads lists thread records, optionally filtered by ?status=
func (h *ThreadHandler) ListThreads(c echo.Context) error {
	status := model.ThreadStatus(c.QueryParam("status"))
	switch status {
	case "", model.StatusPending, model.StatusCompleted, model.StatusFailed:
	default:
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid status",
		})
	}

	records, err := h.threadRepo.List(c.Request().Context(), status)
	if err != nil {
		h.logger.Error("Failed to list threads:", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to list threads",
		})
	}
	if records == nil {
		records = []*model.ThreadRecord{}
	}

	return c.JSON(http.StatusOK, records)
}

// GetThread returns one thread record with its skipped messages
func (h *ThreadHandler) GetThread(c echo.Context) error {
	ctx := c.Request().Context()
	threadID := c.Param("id")

	record, err := h.threadRepo.FindByThreadID(ctx, threadID)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "Thread not found",
		})
	}
	if err != nil {
		h.logger.Error("Failed to get thread:", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to get thread",
		})
	}

	skipped, err := h.threadRepo.ListSkipped(ctx, threadID)
	if err != nil {
		h.logger.Error("Failed to list skipped messages:", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to get thread",
		})
	}
	if skipped == nil {
		skipped = []model.SkippedMessage{}
	}

	return c.JSON(http.StatusOK, threadDetail{ThreadRecord: record, Skipped: skipped})
}

// ResubmitThread puts a failed thread back on the work queue
func (h *ThreadHandler) ResubmitThread(c echo.Context) error {
	thread, err := h.resubmitter.Resubmit(c.Request().Context(), c.Param("id"))
	switch {
	case err == nil:
		return c.JSON(http.StatusAccepted, map[string]any{
			"thread_id": thread.ID,
			"messages":  len(thread.Messages),
		})
	case errors.Is(err, pipeline.ErrThreadNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, pipeline.ErrNotFailed):
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, pipeline.ErrStopped):
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	default:
		h.logger.Error("Failed to resubmit thread:", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to resubmit thread",
		})
	}
}
