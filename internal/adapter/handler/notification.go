package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/ibrahimkeyboad/digibank/internal/core/domain"
	"github.com/ibrahimkeyboad/digibank/internal/core/ledger"
)

type NotificationHandler struct {
	Notifications *ledger.Notifications
}

func (h *NotificationHandler) Unread(c *fiber.Ctx) error {
	userID, err := caller(c)
	if err != nil {
		return err
	}
	list, err := h.Notifications.Unread(c.UserContext(), userID)
	if err != nil {
		return fail(c, err)
	}
	if list == nil {
		list = []domain.Notification{}
	}
	return c.JSON(domain.Ok(list, ""))
}

func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	userID, err := caller(c)
	if err != nil {
		return err
	}
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return badRequest(c, "Invalid notification id")
	}
	if err := h.Notifications.MarkRead(c.UserContext(), userID, id); err != nil {
		return fail(c, err)
	}
	return c.JSON(domain.OkMessage("Notification marked as read"))
}

func (h *NotificationHandler) MarkAllRead(c *fiber.Ctx) error {
	userID, err := caller(c)
	if err != nil {
		return err
	}
	n, err := h.Notifications.MarkAllRead(c.UserContext(), userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(domain.Ok(fiber.Map{"updated": n}, "All notifications marked as read"))
}
