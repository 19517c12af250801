package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"email-digest/internal/model"
	"email-digest/internal/repository"
)

type ContactHandler struct {
	contactRepo repository.ContactRepository
	logger      echo.Logger
}

func NewContactHandler(contactRepo repository.ContactRepository, logger echo.Logger) *ContactHandler {
	return &ContactHandler{
		contactRepo: contactRepo,
		logger:      logger,
	}
}

// ListContacts returns every known contact
func (h *ContactHandler) ListContacts(c echo.Context) error {
	contacts, err := h.contactRepo.FindAll(c.Request().Context())
	if err != nil {
		h.logger.Error("Failed to list contacts:", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to list contacts",
		})
	}
	if contacts == nil {
		contacts = []*model.ContactRecord{}
	}

	return c.JSON(http.StatusOK, contacts)
}
