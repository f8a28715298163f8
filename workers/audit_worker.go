package workers

import (
	"context"
	"log"
	"math"
	"time"

	"game-tournament-system/models"

	"gorm.io/gorm"
)

// AccrualAuditor periodically re-derives each open tournament's prize pool
// from its seed and play count and logs any drift. The accrual path keeps the
// two counters in lockstep, so drift means either a bug or someone writing
// counters outside that path.
type AccrualAuditor struct {
	DB *gorm.DB

	// Tolerance absorbs float accumulation on pools built from many
	// non-representable fees.
	Tolerance float64
}

func NewAccrualAuditor(db *gorm.DB) *AccrualAuditor {
	return &AccrualAuditor{DB: db, Tolerance: 1e-6}
}

// CheckOnce audits every open tournament and returns the ids that drifted.
func (a *AccrualAuditor) CheckOnce(ctx context.Context) ([]uint, error) {
	var tournaments []models.Tournament
	if err := a.DB.WithContext(ctx).
		Where("status = ?", models.TournamentStatusOpen).
		Find(&tournaments).Error; err != nil {
		return nil, err
	}

	var drifted []uint
	for _, t := range tournaments {
		expected := t.SeedPrizePool + float64(t.PlayCount)*t.PlayerJoiningFee
		if math.Abs(t.PrizePool-expected) > a.Tolerance {
			drifted = append(drifted, t.ID)
			log.Printf("❌ [AUDIT] tournament %d prize pool drift: have %.4f, expected %.4f (plays=%d fee=%.4f seed=%.4f)",
				t.ID, t.PrizePool, expected, t.PlayCount, t.PlayerJoiningFee, t.SeedPrizePool)
		}
	}
	return drifted, nil
}

// PollAccrualAudit runs the audit on a fixed interval until ctx is cancelled.
func PollAccrualAudit(ctx context.Context, auditor *AccrualAuditor, pollInterval time.Duration) {
	log.Println("Starting accrual audit polling...")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Accrual audit polling stopped.")
			return
		case <-ticker.C:
			drifted, err := auditor.CheckOnce(ctx)
			if err != nil {
				log.Printf("❌ Error auditing accruals: %v", err)
				continue
			}
			if len(drifted) == 0 {
				continue
			}
			log.Printf("⚠️  Accrual audit found %d tournament(s) with prize pool drift: %v", len(drifted), drifted)
		}
	}
}
