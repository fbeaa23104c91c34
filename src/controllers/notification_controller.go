package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/theleywin/Backend-Social-Feed/src/lib"
	"github.com/theleywin/Backend-Social-Feed/src/middleware"
	"github.com/theleywin/Backend-Social-Feed/src/services"
)

type NotificationController struct {
	notifications *services.NotificationService
}

func NewNotificationController(notifications *services.NotificationService) *NotificationController {
	return &NotificationController{notifications: notifications}
}

// GetUserNotifications returns all notifications for the authenticated user, newest first
func (nc *NotificationController) GetUserNotifications(c *fiber.Ctx) error {
	list, err := nc.notifications.List(c.UserContext(), middleware.CurrentUser(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(list)
}

// MarkNotificationAsRead marks a notification as read for the authenticated user
func (nc *NotificationController) MarkNotificationAsRead(c *fiber.Ctx) error {
	n, err := nc.notifications.MarkRead(c.UserContext(), middleware.CurrentUser(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(n)
}

// DeleteNotification deletes a notification for the authenticated user
func (nc *NotificationController) DeleteNotification(c *fiber.Ctx) error {
	if err := nc.notifications.Delete(c.UserContext(), middleware.CurrentUser(c), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(lib.MessageResponse("Notification deleted successfully"))
}
