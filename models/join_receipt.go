package models

import "time"

// JoinReceipt is the idempotency ledger. One row per accepted join attempt,
// keyed by the client-supplied token (stable across network retries of the
// same attempt). The unique index on Token is the claim: the first insert
// wins, every later attempt with the same token reads this row back instead
// of touching the tournament counters again.
//
// AppliedPlayCount/AppliedPrizePool capture the counters as of the first
// application, so replays return exactly the original response.
type JoinReceipt struct {
	ID               string    `json:"id" gorm:"primaryKey;type:uuid"`
	Token            string    `json:"token" gorm:"uniqueIndex;not null"`
	TournamentID     uint      `json:"tournament_id" gorm:"index;not null"`
	AppliedPlayCount int64     `json:"applied_play_count"`
	AppliedPrizePool float64   `json:"applied_prize_pool"`
	CreatedAt        time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName implements the GORM tabler interface.
func (JoinReceipt) TableName() string { return "join_receipts" }
