package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"game-tournament-system/handlers"
	"game-tournament-system/models"
	"game-tournament-system/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(
		&models.GameTemplate{},
		&models.Game{},
		&models.Tournament{},
		&models.TournamentPhoto{},
		&models.LeaderboardEntry{},
		&models.JoinReceipt{},
	); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}

	app := fiber.New()
	handlers.SetupTournamentRoutes(app, services.NewTournamentService(db), services.NewAccrualService(db))
	handlers.SetupGameRoutes(app, services.NewGameService(db))
	return app, db
}

func joinRequest(t *testing.T, app *fiber.App, tournamentID, token string, authed bool) *http.Response {
	t.Helper()
	body, _ := json.Marshal(fiber.Map{"token": token})
	req := httptest.NewRequest("POST", "/tournaments/"+tournamentID+"/join", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("X-User-ID", "user-1")
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("join request failed: %v", err)
	}
	return resp
}

type joinEnvelope struct {
	Status       string  `json:"status"`
	Message      string  `json:"message"`
	NewPlayCount int64   `json:"newPlayCount"`
	NewPrizePool float64 `json:"newPrizePool"`
}

func decodeJoin(t *testing.T, resp *http.Response) joinEnvelope {
	t.Helper()
	defer resp.Body.Close()
	var env joinEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode join response: %v", err)
	}
	return env
}

func TestJoinEndpoint(t *testing.T) {
	app, db := newTestApp(t)
	tour := &models.Tournament{
		GameID:           1,
		Name:             "Endpoint Cup",
		PlayerJoiningFee: 2.5,
		SeedPrizePool:    12.5,
		PlayCount:        3,
		PrizePool:        20.0,
		Status:           models.TournamentStatusOpen,
		StartAt:          time.Now().Add(-time.Hour),
	}
	if err := db.Create(tour).Error; err != nil {
		t.Fatalf("failed to seed tournament: %v", err)
	}
	id := fmt.Sprint(tour.ID)

	resp := joinRequest(t, app, id, "tokA", true)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	env := decodeJoin(t, resp)
	if env.Status != "success" {
		t.Fatalf("expected success envelope, got %q (%s)", env.Status, env.Message)
	}
	if env.NewPlayCount != 4 || env.NewPrizePool != 22.5 {
		t.Fatalf("got (%d, %v), want (4, 22.5)", env.NewPlayCount, env.NewPrizePool)
	}

	// Retry with the same token — byte-for-byte identical accrual result.
	retry := decodeJoin(t, joinRequest(t, app, id, "tokA", true))
	if retry.NewPlayCount != env.NewPlayCount || retry.NewPrizePool != env.NewPrizePool {
		t.Fatalf("retry diverged: got (%d, %v)", retry.NewPlayCount, retry.NewPrizePool)
	}
}

func TestJoinEndpointRequiresUserContext(t *testing.T) {
	app, _ := newTestApp(t)
	resp := joinRequest(t, app, "1", "tok", false)
	if resp.StatusCode != 401 {
		t.Fatalf("expected 401 without user context, got %d", resp.StatusCode)
	}
}

func TestJoinEndpointInvalidInput(t *testing.T) {
	app, _ := newTestApp(t)

	resp := joinRequest(t, app, "not-a-number", "tok", true)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400 for bad id, got %d", resp.StatusCode)
	}
	env := decodeJoin(t, resp)
	if env.Status != "error" {
		t.Fatalf("expected error envelope, got %q", env.Status)
	}

	resp = joinRequest(t, app, "1", "", true)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400 for missing token, got %d", resp.StatusCode)
	}
}

func TestJoinEndpointNotFoundAndClosed(t *testing.T) {
	app, db := newTestApp(t)

	resp := joinRequest(t, app, "404", "tok", true)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	closed := &models.Tournament{
		GameID:  1,
		Name:    "Closed Cup",
		Status:  models.TournamentStatusClosed,
		StartAt: time.Now().Add(-time.Hour),
	}
	if err := db.Create(closed).Error; err != nil {
		t.Fatalf("failed to seed tournament: %v", err)
	}
	resp = joinRequest(t, app, fmt.Sprint(closed.ID), "tok", true)
	if resp.StatusCode != 409 {
		t.Fatalf("expected 409 for closed tournament, got %d", resp.StatusCode)
	}
	env := decodeJoin(t, resp)
	if env.Status != "error" {
		t.Fatalf("expected error envelope, got %q", env.Status)
	}
}

func TestGameTemplateLookup(t *testing.T) {
	app, db := newTestApp(t)

	template := &models.GameTemplate{Name: "Mole", ImageURL: "https://cdn/mole.png", AccentColor: "#00AAFF"}
	if err := db.Create(template).Error; err != nil {
		t.Fatalf("failed to seed template: %v", err)
	}
	game := &models.Game{Name: "Whack-a-Mole", TemplateID: template.ID}
	if err := db.Create(game).Error; err != nil {
		t.Fatalf("failed to seed game: %v", err)
	}

	req := httptest.NewRequest("GET", fmt.Sprintf("/games/%d/template", game.ID), nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var got models.GameTemplate
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode template: %v", err)
	}
	if got.ID != template.ID || got.ImageURL != template.ImageURL {
		t.Fatalf("unexpected template: %+v", got)
	}

	req = httptest.NewRequest("GET", "/games/999/template", nil)
	resp, _ = app.Test(req, -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404 for unknown game, got %d", resp.StatusCode)
	}
}
