package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"game-tournament-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Terminal join outcomes. Anything else coming out of Join is a transient
// storage fault already retried with backoff.
var (
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrTournamentClosed   = errors.New("tournament closed")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// AccrualResult is what a join returns: the tournament counters after the
// token's one and only application. Replayed is true when the token had
// already been applied and the stored receipt was returned instead.
type AccrualResult struct {
	TournamentID uint    `json:"tournament_id"`
	PlayCount    int64   `json:"play_count"`
	PrizePool    float64 `json:"prize_pool"`
	Replayed     bool    `json:"-"`
}

// AccrualService applies join events to a tournament's play count and prize
// pool: exactly once per token, atomically with respect to concurrent joins
// on the same tournament.
type AccrualService struct {
	DB *gorm.DB

	// retry policy for transient storage faults
	maxRetries uint64
	retryBase  time.Duration
}

func NewAccrualService(db *gorm.DB) *AccrualService {
	return &AccrualService{
		DB:         db,
		maxRetries: 3,
		retryBase:  50 * time.Millisecond,
	}
}

// Join applies one join event to the tournament.
//
// The token is the caller's idempotency key: stable per join attempt, reused
// on network retries. The whole accrual runs in one transaction so the
// receipt insert (the claim) and the counter update commit or roll back
// together — two concurrent calls bearing the same token can never both
// mutate the tournament, and a crash between the two leaves no partial state.
func (s *AccrualService) Join(ctx context.Context, tournamentID uint, token string) (*AccrualResult, error) {
	if token == "" {
		return nil, fmt.Errorf("join: empty idempotency token")
	}

	// Fast path: a committed receipt means this is a replay. No locks taken.
	// A failed lookup falls through to the transactional path, which resolves
	// replays through the claim conflict and carries the retry policy.
	if res, err := s.lookupReceipt(ctx, token); err != nil {
		log.Printf("[ACCRUAL] receipt lookup failed, using transactional path: %v", err)
	} else if res != nil {
		return res, nil
	}

	var result *AccrualResult
	backoff := retry.WithMaxRetries(s.maxRetries, retry.NewExponential(s.retryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		res, err := s.joinOnce(ctx, tournamentID, token)
		if err != nil {
			if errors.Is(err, ErrTournamentNotFound) || errors.Is(err, ErrTournamentClosed) {
				return err
			}
			log.Printf("[ACCRUAL] transient failure for tournament %d: %v", tournamentID, err)
			return retry.RetryableError(err)
		}
		result = res
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrTournamentNotFound) || errors.Is(err, ErrTournamentClosed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return result, nil
}

// joinOnce is a single transactional accrual attempt.
func (s *AccrualService) joinOnce(ctx context.Context, tournamentID uint, token string) (*AccrualResult, error) {
	var result *AccrualResult
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Claim the token. The unique index on join_receipts.token makes
		// this the serialization point: of N concurrent calls with the same
		// token, exactly one insert lands.
		claim := models.JoinReceipt{
			ID:           uuid.NewString(),
			Token:        token,
			TournamentID: tournamentID,
		}
		ins := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "token"}},
			DoNothing: true,
		}).Create(&claim)
		if ins.Error != nil {
			return ins.Error
		}
		if ins.RowsAffected == 0 {
			// A concurrent call won the claim and has committed by the time
			// our insert resolved the conflict. Return its stored result.
			var prior models.JoinReceipt
			if err := tx.First(&prior, "token = ?", token).Error; err != nil {
				return err
			}
			result = &AccrualResult{
				TournamentID: prior.TournamentID,
				PlayCount:    prior.AppliedPlayCount,
				PrizePool:    prior.AppliedPrizePool,
				Replayed:     true,
			}
			return nil
		}

		// One conditional statement: increment both counters together, only
		// while open. The delta is computed in SQL from the row's own fee,
		// so there is no read-then-write window to lose updates in.
		upd := tx.Model(&models.Tournament{}).
			Where("id = ? AND status = ?", tournamentID, models.TournamentStatusOpen).
			Updates(map[string]interface{}{
				"play_count": gorm.Expr("play_count + ?", 1),
				"prize_pool": gorm.Expr("prize_pool + player_joining_fee"),
			})
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected == 0 {
			// Missing or not open. Either way the transaction aborts, the
			// claim rolls back, and no ledger entry is written.
			var t models.Tournament
			if err := tx.First(&t, "id = ?", tournamentID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrTournamentNotFound
				}
				return err
			}
			return ErrTournamentClosed
		}

		var t models.Tournament
		if err := tx.First(&t, "id = ?", tournamentID).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.JoinReceipt{}).
			Where("id = ?", claim.ID).
			Updates(map[string]interface{}{
				"applied_play_count": t.PlayCount,
				"applied_prize_pool": t.PrizePool,
			}).Error; err != nil {
			return err
		}

		result = &AccrualResult{
			TournamentID: tournamentID,
			PlayCount:    t.PlayCount,
			PrizePool:    t.PrizePool,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// lookupReceipt returns the stored result for a token, or nil when the token
// has never been applied.
func (s *AccrualService) lookupReceipt(ctx context.Context, token string) (*AccrualResult, error) {
	var receipt models.JoinReceipt
	err := s.DB.WithContext(ctx).First(&receipt, "token = ?", token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &AccrualResult{
		TournamentID: receipt.TournamentID,
		PlayCount:    receipt.AppliedPlayCount,
		PrizePool:    receipt.AppliedPrizePool,
		Replayed:     true,
	}, nil
}

// JoinTournament handles POST /tournaments/:id/join.
//
// The mobile client predates this service and binds to the legacy envelope:
// {"status": "success"|"error", "message": ..., "newPlayCount": ..., "newPrizePool": ...}
// so this handler keeps that shape rather than the fiber.Map{"error": ...}
// style used elsewhere.
func (s *AccrualService) JoinTournament(c *fiber.Ctx) error {
	tournamentID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || tournamentID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Invalid input. Please provide a valid tournamentId.",
		})
	}

	type Req struct {
		Token string `json:"token"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil || req.Token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Invalid input. Please provide a join token.",
		})
	}

	res, err := s.Join(c.UserContext(), uint(tournamentID), req.Token)
	switch {
	case errors.Is(err, ErrTournamentNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"status":  "error",
			"message": "Tournament not found for the provided tournamentId.",
		})
	case errors.Is(err, ErrTournamentClosed):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"status":  "error",
			"message": "Tournament is not open for joining.",
		})
	case err != nil:
		log.Printf("[ACCRUAL] join failed for tournament %d: %v", tournamentID, err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":  "error",
			"message": "Failed to update play count and prize pool.",
		})
	}

	if userID, ok := c.Locals("user_id").(string); ok && userID != "" {
		log.Printf("[ACCRUAL] user %s joined tournament %d (replay=%v)", userID, tournamentID, res.Replayed)
	}

	return c.JSON(fiber.Map{
		"status":       "success",
		"message":      "Play count and prize pool updated successfully.",
		"newPlayCount": res.PlayCount,
		"newPrizePool": res.PrizePool,
	})
}
