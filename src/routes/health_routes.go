package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/theleywin/Backend-Social-Feed/src/controllers"
)

func HealthRoutes(app *fiber.App, hc *controllers.HealthController) {
	app.Get("/healthz", hc.Health)
}
