package services

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"game-tournament-system/models"
	"game-tournament-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

type TournamentService struct {
	DB *gorm.DB
}

func NewTournamentService(db *gorm.DB) *TournamentService {
	return &TournamentService{DB: db}
}

// CreateTournament creates a new open tournament. Counters start at the
// sponsor seed; only the accrual path may move them afterwards.
func (s *TournamentService) CreateTournament(c *fiber.Ctx) error {
	gameIDStr := c.FormValue("game_id")
	name := c.FormValue("name")
	hostName := c.FormValue("host_name")
	socialLink := c.FormValue("social_link")
	feeStr := c.FormValue("player_joining_fee")
	seedStr := c.FormValue("seed_prize_pool")
	startAtStr := c.FormValue("start_at")
	endAtStr := c.FormValue("end_at")

	if gameIDStr == "" || name == "" || startAtStr == "" {
		return c.Status(400).JSON(fiber.Map{"error": "game_id, name, and start_at are required"})
	}

	gameID, err := strconv.ParseUint(gameIDStr, 10, 32)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "game_id must be an integer"})
	}

	fee := 0.0
	if feeStr != "" {
		if f, err := strconv.ParseFloat(feeStr, 64); err == nil && f >= 0 {
			fee = f
		} else {
			return c.Status(400).JSON(fiber.Map{"error": "player_joining_fee must be a non-negative number"})
		}
	}

	seed := 0.0
	if seedStr != "" {
		if f, err := strconv.ParseFloat(seedStr, 64); err == nil && f >= 0 {
			seed = f
		} else {
			return c.Status(400).JSON(fiber.Map{"error": "seed_prize_pool must be a non-negative number"})
		}
	}

	startAt, err := time.Parse(time.RFC3339, startAtStr)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid start_at (use RFC3339)"})
	}

	var endAt time.Time
	if endAtStr != "" {
		endAt, err = time.Parse(time.RFC3339, endAtStr)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid end_at (use RFC3339)"})
		}
		if !endAt.After(startAt) {
			return c.Status(400).JSON(fiber.Map{"error": "end_at must be after start_at"})
		}
	}

	// Check game exists
	var game models.Game
	if err := s.DB.First(&game, "id = ?", uint(gameID)).Error; err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "game_id not found"})
	}

	// Handle main photo → R2
	var mainPhotoURL string
	if mainPhoto, err := c.FormFile("main_photo"); err == nil && mainPhoto.Size > 0 {
		ext := filepath.Ext(mainPhoto.Filename)
		if ext == "" {
			ext = ".jpg"
		}
		key := "tournaments/main/" + uuid.NewString() + ext
		url, err := utils.UploadImage(mainPhoto, key)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "failed to upload main photo"})
		}
		mainPhotoURL = url
	}

	// Secondary photos (up to 5)
	var photos []models.TournamentPhoto
	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("secondary_photos[%d]", i)
		if photo, err := c.FormFile(key); err == nil && photo.Size > 0 {
			ext := filepath.Ext(photo.Filename)
			if ext == "" {
				ext = ".jpg"
			}
			photoKey := "tournaments/photos/" + uuid.NewString() + ext
			url, err := utils.UploadImage(photo, photoKey)
			if err != nil {
				return c.Status(500).JSON(fiber.Map{"error": fmt.Sprintf("failed to upload photo %d", i+1)})
			}
			photos = append(photos, models.TournamentPhoto{
				ID:        uuid.NewString(),
				URL:       url,
				SortOrder: i,
			})
		} else {
			break // stop on first missing
		}
	}

	tournament := &models.Tournament{
		GameID:           uint(gameID),
		Name:             name,
		Slug:             s.uniqueSlug(name),
		HostName:         hostName,
		SocialLink:       socialLink,
		PlayerJoiningFee: fee,
		SeedPrizePool:    seed,
		PrizePool:        seed, // pool starts at the seed, grows by fee per join
		StartAt:          startAt,
		EndAt:            endAt,
		MainPhotoURL:     mainPhotoURL,
		Status:           models.TournamentStatusOpen,
	}

	err = s.insertTournament(tournament, photos)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Someone else took the slug between the pre-check and the insert
		// (a concurrent create, or a soft-deleted tournament still holding
		// the unique index). Retry once with a suffixed slug.
		tournament.Slug = suffixSlug(tournament.Slug)
		err = s.insertTournament(tournament, photos)
	}
	if err != nil {
		log.Printf("ERROR creating tournament: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "DB insert failed"})
	}

	s.DB.Preload("Game.Template").
		Preload("Photos", func(db *gorm.DB) *gorm.DB {
			return db.Order("\"sort_order\" ASC")
		}).
		First(tournament, "id = ?", tournament.ID)
	return c.Status(201).JSON(tournament)
}

// insertTournament writes the tournament and its photos in one transaction.
func (s *TournamentService) insertTournament(tournament *models.Tournament, photos []models.TournamentPhoto) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Photos").Create(tournament).Error; err != nil {
			return err
		}
		for i := range photos {
			photos[i].TournamentID = tournament.ID
			if err := tx.Create(&photos[i]).Error; err != nil {
				return err
			}
		}
		tournament.Photos = photos
		return nil
	})
}

// uniqueSlug derives a URL slug from the tournament name, suffixing on
// collision. The pre-check covers the common case; the insert itself
// retries with a suffix if the unique index still objects.
func (s *TournamentService) uniqueSlug(name string) string {
	base := slug.Make(name)
	var count int64
	s.DB.Model(&models.Tournament{}).Where("slug = ?", base).Count(&count)
	if count > 0 {
		return suffixSlug(base)
	}
	return base
}

func suffixSlug(base string) string {
	return base + "-" + strings.Split(uuid.NewString(), "-")[0]
}

// GetOpenTournaments returns the active tournament list the client's home
// screen binds to, including the template id used to pick artwork.
func (s *TournamentService) GetOpenTournaments(c *fiber.Ctx) error {
	var tournaments []models.MiniTournament
	query := `
        SELECT
            t.id,
            t.game_id,
            t.name,
            t.host_name,
            t.status,
            t.player_joining_fee,
            t.play_count,
            t.prize_pool,
            t.start_at,
            t.end_at,
            t.completed_at,
            t.main_photo_url,
            g.template_id
        FROM tournaments t
        LEFT JOIN games g ON t.game_id = g.id
        WHERE t.status = ? AND t.deleted_at IS NULL
        ORDER BY t.start_at ASC
    `
	if err := s.DB.Raw(query, models.TournamentStatusOpen).Scan(&tournaments).Error; err != nil {
		log.Printf("ERROR fetching open tournaments: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to fetch tournaments"})
	}
	return c.JSON(tournaments)
}

// GetPastTournaments returns completed tournaments, newest first, with the
// podium fields the past-tournament buttons display.
func (s *TournamentService) GetPastTournaments(c *fiber.Ctx) error {
	var tournaments []models.Tournament
	err := s.DB.Preload("Game.Template").
		Where("status = ?", models.TournamentStatusCompleted).
		Order("completed_at DESC").
		Find(&tournaments).Error
	if err != nil {
		log.Printf("ERROR fetching past tournaments: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to fetch tournaments"})
	}
	return c.JSON(tournaments)
}

// GetTournamentByID retrieves a tournament with its game, template and photos.
func (s *TournamentService) GetTournamentByID(c *fiber.Ctx) error {
	id := c.Params("id")
	var tournament models.Tournament
	err := s.DB.
		Preload("Game.Template").
		Preload("Photos", func(db *gorm.DB) *gorm.DB {
			return db.Order("\"sort_order\" ASC")
		}).
		First(&tournament, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "tournament not found"})
		}
		log.Printf("ERROR fetching tournament %s: %v", id, err)
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(tournament)
}

// UpdateTournamentStatus moves a tournament through open → closed →
// completed. Completion stamps completed_at and records the podium; joins
// against anything but an open tournament are rejected by the accrual path.
func (s *TournamentService) UpdateTournamentStatus(c *fiber.Ctx) error {
	id := c.Params("id")
	type Req struct {
		Status           string `json:"status"`
		WinnerID         *uint  `json:"winner_id,omitempty"`
		RunnerUpID       *uint  `json:"runner_up_id,omitempty"`
		SecondRunnerUpID *uint  `json:"second_runner_up_id,omitempty"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}

	var tournament models.Tournament
	if err := s.DB.First(&tournament, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "tournament not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}

	var updates map[string]interface{}
	switch req.Status {
	case models.TournamentStatusOpen:
		if tournament.Status == models.TournamentStatusCompleted {
			return c.Status(400).JSON(fiber.Map{"error": "completed tournaments cannot reopen"})
		}
		updates = map[string]interface{}{"status": models.TournamentStatusOpen}
	case models.TournamentStatusClosed:
		if tournament.Status != models.TournamentStatusOpen {
			return c.Status(400).JSON(fiber.Map{"error": "only open tournaments can be closed"})
		}
		updates = map[string]interface{}{"status": models.TournamentStatusClosed}
	case models.TournamentStatusCompleted:
		if tournament.Status != models.TournamentStatusClosed {
			return c.Status(400).JSON(fiber.Map{"error": "only closed tournaments can be completed"})
		}
		now := time.Now()
		updates = map[string]interface{}{
			"status":              models.TournamentStatusCompleted,
			"completed_at":        &now,
			"winner_id":           req.WinnerID,
			"runner_up_id":        req.RunnerUpID,
			"second_runner_up_id": req.SecondRunnerUpID,
		}
	default:
		return c.Status(400).JSON(fiber.Map{"error": "invalid status"})
	}

	if err := s.DB.Model(&tournament).Updates(updates).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "DB update failed"})
	}

	var updated models.Tournament
	s.DB.Preload("Game.Template").First(&updated, "id = ?", id)
	return c.JSON(updated)
}

// DeleteTournament removes a tournament and its dependent rows.
func (s *TournamentService) DeleteTournament(c *fiber.Ctx) error {
	id := c.Params("id")
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tournament_id = ?", id).Delete(&models.TournamentPhoto{}).Error; err != nil {
			return err
		}
		if err := tx.Where("tournament_id = ?", id).Delete(&models.LeaderboardEntry{}).Error; err != nil {
			return err
		}
		if err := tx.Where("tournament_id = ?", id).Delete(&models.JoinReceipt{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Tournament{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fiber.NewError(404, "tournament not found")
		}
		return nil
	})
}

// SubmitScore records one play's score for the tournament leaderboard.
func (s *TournamentService) SubmitScore(c *fiber.Ctx) error {
	tournamentID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid tournament id"})
	}
	type Req struct {
		UserID string `json:"user_id"`
		Score  int64  `json:"score"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.UserID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "user_id is required"})
	}

	var tournament models.Tournament
	if err := s.DB.First(&tournament, "id = ?", uint(tournamentID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "tournament not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	if !tournament.IsOpen() {
		return c.Status(409).JSON(fiber.Map{"error": "tournament is not accepting scores"})
	}

	entry := models.LeaderboardEntry{
		ID:           uuid.NewString(),
		TournamentID: uint(tournamentID),
		UserID:       req.UserID,
		Score:        req.Score,
	}
	if err := s.DB.Create(&entry).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to record score"})
	}
	return c.Status(201).JSON(entry)
}

// GetLeaderboard returns the tournament's entries, best score first.
func (s *TournamentService) GetLeaderboard(c *fiber.Ctx) error {
	tournamentID := c.Params("id")
	var entries []models.LeaderboardEntry
	if err := s.DB.Where("tournament_id = ?", tournamentID).
		Order("score DESC, submitted_at ASC").
		Find(&entries).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to fetch leaderboard"})
	}
	return c.JSON(entries)
}
