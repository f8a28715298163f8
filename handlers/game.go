package handlers

import (
	"game-tournament-system/middleware"
	"game-tournament-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupGameRoutes(app *fiber.App, gameService *services.GameService) {
	// 🔓 Public: the client resolves artwork per tournament through these
	app.Get("/game-templates", gameService.GetGameTemplates)
	app.Get("/games/:id/template", gameService.GetTemplateForGame)

	// 🔒 Admin-only
	secured := app.Group("/", middleware.UserContextMiddleware())
	admin := secured.Group("/admin")
	admin.Post("/game-templates", gameService.CreateGameTemplate)
	admin.Post("/games", gameService.CreateGame)
}
