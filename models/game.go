package models

// Game is one playable mini-game. Tournaments reference a game; the client
// renders a tournament with the artwork of the game's template.
type Game struct {
	ID         uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	Name       string `json:"name" gorm:"not null"`
	TemplateID uint   `json:"template_id" gorm:"not null;index"`

	Template GameTemplate `json:"template,omitempty" gorm:"foreignKey:TemplateID"`

	Timestamps
}

// GameTemplate carries the shared presentation assets for a family of games:
// the sprite the tournament buttons show and the accent color they tint with.
type GameTemplate struct {
	ID          uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	Name        string `json:"name" gorm:"not null"`
	ImageURL    string `json:"image_url"`
	AccentColor string `json:"accent_color" gorm:"type:varchar(9)"` // e.g. "#FF8800"

	Timestamps
}
