package handlers

import (
	"game-tournament-system/middleware"
	"game-tournament-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupTournamentRoutes(app *fiber.App, tournamentService *services.TournamentService, accrualService *services.AccrualService) {
	// 🔓 Public read routes for the mobile client
	app.Get("/tournaments/open", tournamentService.GetOpenTournaments)
	app.Get("/tournaments/past", tournamentService.GetPastTournaments)
	app.Get("/tournaments/:id", tournamentService.GetTournamentByID)
	app.Get("/tournaments/:id/leaderboard", tournamentService.GetLeaderboard)

	// 🔐 Authenticated routes
	secured := app.Group("/", middleware.UserContextMiddleware())

	// Join flow — the accrual path. Clients retry with the same token.
	secured.Post("/tournaments/:id/join", accrualService.JoinTournament)
	secured.Post("/tournaments/:id/scores", tournamentService.SubmitScore)

	// 🔒 Admin-only routes
	admin := secured.Group("/admin")
	admin.Post("/tournaments", tournamentService.CreateTournament)
	admin.Patch("/tournaments/:id/status", tournamentService.UpdateTournamentStatus)
	admin.Delete("/tournaments/:id", tournamentService.DeleteTournament)
}
