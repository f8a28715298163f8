package services

import (
	"errors"
	"log"
	"path/filepath"
	"strconv"

	"game-tournament-system/models"
	"game-tournament-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GameService struct {
	DB *gorm.DB
}

func NewGameService(db *gorm.DB) *GameService {
	return &GameService{DB: db}
}

// CreateGameTemplate registers a template with its artwork. The image goes to
// R2 and the stored URL is what clients load for every tournament using a
// game built on this template.
func (s *GameService) CreateGameTemplate(c *fiber.Ctx) error {
	name := c.FormValue("name")
	accentColor := c.FormValue("accent_color")
	if name == "" {
		return c.Status(400).JSON(fiber.Map{"error": "name is required"})
	}

	var imageURL string
	if image, err := c.FormFile("image"); err == nil && image.Size > 0 {
		ext := filepath.Ext(image.Filename)
		if ext == "" {
			ext = ".png"
		}
		key := "templates/" + uuid.NewString() + ext
		url, err := utils.UploadImage(image, key)
		if err != nil {
			log.Printf("ERROR uploading template image: %v", err)
			return c.Status(500).JSON(fiber.Map{"error": "failed to upload template image"})
		}
		imageURL = url
	}

	template := &models.GameTemplate{
		Name:        name,
		ImageURL:    imageURL,
		AccentColor: accentColor,
	}
	if err := s.DB.Create(template).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "DB insert failed"})
	}
	return c.Status(201).JSON(template)
}

// GetGameTemplates lists all templates.
func (s *GameService) GetGameTemplates(c *fiber.Ctx) error {
	var templates []models.GameTemplate
	if err := s.DB.Find(&templates).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to fetch templates"})
	}
	return c.JSON(templates)
}

// CreateGame registers a playable game against an existing template.
func (s *GameService) CreateGame(c *fiber.Ctx) error {
	type Req struct {
		Name       string `json:"name"`
		TemplateID uint   `json:"template_id"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.Name == "" || req.TemplateID == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "name and template_id are required"})
	}
	if err := s.DB.First(&models.GameTemplate{}, "id = ?", req.TemplateID).Error; err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "template_id not found"})
	}

	game := &models.Game{Name: req.Name, TemplateID: req.TemplateID}
	if err := s.DB.Create(game).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "DB insert failed"})
	}
	return c.Status(201).JSON(game)
}

// GetTemplateForGame resolves a game id to its template. This is the lookup
// the client runs when populating a tournament button's image and color.
func (s *GameService) GetTemplateForGame(c *fiber.Ctx) error {
	gameID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid game id"})
	}

	var game models.Game
	if err := s.DB.Preload("Template").First(&game, "id = ?", uint(gameID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "game not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(game.Template)
}
