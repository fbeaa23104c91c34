package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/theleywin/Backend-Social-Feed/src/controllers"
)

// NotificationRoutes sets up notification routes for listing, marking as read, and deleting notifications
func NotificationRoutes(app *fiber.App, nc *controllers.NotificationController, protect fiber.Handler) {
	notification := app.Group("/notifications", protect)

	notification.Get("/", nc.GetUserNotifications)
	notification.Put("/:id/read", nc.MarkNotificationAsRead)
	notification.Delete("/:id", nc.DeleteNotification)
}
