package models

import (
	"time"

	"gorm.io/gorm"
)

// Tournament statuses. Joins accrue only while a tournament is open;
// closed tournaments wait for winners, completed ones are history.
const (
	TournamentStatusOpen      = "open"
	TournamentStatusClosed    = "closed"
	TournamentStatusCompleted = "completed"
)

// Tournament is the aggregate the accrual path mutates. PlayCount and
// PrizePool only ever change together, through a single conditional UPDATE,
// so prize_pool == seed_prize_pool + play_count * player_joining_fee holds
// at every observable instant while the fee is fixed.
type Tournament struct {
	ID         uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	GameID     uint   `json:"game_id" gorm:"not null;index"`
	Name       string `json:"name" gorm:"not null"`
	Slug       string `json:"slug" gorm:"uniqueIndex"`
	HostName   string `json:"host_name"`
	SocialLink string `json:"social_link"`

	PlayerJoiningFee float64 `json:"player_joining_fee" gorm:"not null;default:0;check:player_joining_fee >= 0"`
	SeedPrizePool    float64 `json:"seed_prize_pool" gorm:"not null;default:0"`
	PlayCount        int64   `json:"play_count" gorm:"not null;default:0"`
	PrizePool        float64 `json:"prize_pool" gorm:"not null;default:0"`

	Status      string     `json:"status" gorm:"type:varchar(16);default:'open';index"`
	StartAt     time.Time  `json:"start_at" gorm:"not null"`
	EndAt       time.Time  `json:"end_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	MainPhotoURL string `json:"main_photo_url"`

	// Podium, filled in when the tournament is completed
	WinnerID         *uint `json:"winner_id,omitempty"`
	RunnerUpID       *uint `json:"runner_up_id,omitempty"`
	SecondRunnerUpID *uint `json:"second_runner_up_id,omitempty"`

	// Relationships
	Game   Game              `json:"game,omitempty" gorm:"foreignKey:GameID"`
	Photos []TournamentPhoto `json:"photos,omitempty" gorm:"foreignKey:TournamentID"`

	Timestamps
}

// IsOpen reports whether joins may still accrue against this tournament.
func (t *Tournament) IsOpen() bool {
	return t.Status == TournamentStatusOpen
}

type TournamentPhoto struct {
	ID           string `json:"id" gorm:"primaryKey"`
	TournamentID uint   `json:"tournament_id" gorm:"not null;index"`
	URL          string `json:"url"`
	SortOrder    int    `json:"sort_order" gorm:"column:sort_order;default:0"`
}

// LeaderboardEntry — populated by client score submission after a play
type LeaderboardEntry struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	TournamentID uint      `json:"tournament_id" gorm:"index"`
	UserID       string    `json:"user_id" gorm:"index"`
	Score        int64     `json:"score"`
	SubmittedAt  time.Time `json:"submitted_at" gorm:"autoCreateTime"`
}

// MiniTournament is the trimmed listing shape the mobile client's tournament
// screens bind to (active and past lists).
type MiniTournament struct {
	ID               uint       `json:"id"`
	GameID           uint       `json:"game_id"`
	Name             string     `json:"name"`
	HostName         string     `json:"host_name"`
	Status           string     `json:"status"`
	PlayerJoiningFee float64    `json:"player_joining_fee"`
	PlayCount        int64      `json:"play_count"`
	PrizePool        float64    `json:"prize_pool"`
	StartAt          time.Time  `json:"start_at"`
	EndAt            time.Time  `json:"end_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	MainPhotoURL     string     `json:"main_photo_url"`
	TemplateID       uint       `json:"template_id"`
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
