package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vinylverse/storefront/internal/service"
)

type ContactHandler struct {
	Contact *service.ContactService
}

func NewContactHandler(contact *service.ContactService) *ContactHandler {
	return &ContactHandler{Contact: contact}
}

type contactReq struct {
	Message string `json:"message"`
}

// Send forwards the caller's message to the support inbox.
func (h *ContactHandler) Send(c echo.Context) error {
	id, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	var req contactReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.Contact.Send(ctx, id, req.Message); err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			return c.JSON(http.StatusBadGateway, echo.Map{"error": "message could not be delivered"})
		}
		return fail(c, err)
	}
	return c.JSON(http.StatusAccepted, echo.Map{"message": "sent"})
}
