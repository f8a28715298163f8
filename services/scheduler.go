// services/scheduler.go
package services

import (
	"log"
	"os"
	"strconv"
	"time"

	"game-tournament-system/models"

	"github.com/go-co-op/gocron/v2"
)

// StartMaintenanceScheduler runs the background housekeeping jobs: closing
// tournaments whose end time has passed, and purging join receipts once the
// owning tournament has been completed for the retention window.
func (s *TournamentService) StartMaintenanceScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			closed, err := s.CloseExpiredTournaments()
			if err != nil {
				log.Printf("[Scheduler] DB error closing tournaments: %v", err)
				return
			}
			if closed > 0 {
				log.Printf("✅ Auto-closed %d tournament(s) past end time", closed)
			}
		}),
	)

	retention := receiptRetention()
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(func() {
			purged, err := s.PurgeExpiredReceipts(retention)
			if err != nil {
				log.Printf("[Scheduler] DB error purging join receipts: %v", err)
				return
			}
			if purged > 0 {
				log.Printf("✅ Purged %d expired join receipt(s)", purged)
			}
		}),
	)
}

// CloseExpiredTournaments closes every open tournament whose end time has
// passed, returning how many rows changed. A zero end_at means the tournament
// has no scheduled end.
func (s *TournamentService) CloseExpiredTournaments() (int64, error) {
	result := s.DB.Model(&models.Tournament{}).
		Where("status = ? AND end_at > ? AND end_at <= ?",
			models.TournamentStatusOpen, time.Time{}, time.Now()).
		Update("status", models.TournamentStatusClosed)
	return result.RowsAffected, result.Error
}

// PurgeExpiredReceipts drops join receipts whose tournament has been
// completed for longer than the retention window. Receipts for open or
// closed tournaments are never touched — a replayed token must keep
// resolving until the tournament is long done.
func (s *TournamentService) PurgeExpiredReceipts(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	result := s.DB.
		Where("tournament_id IN (?)",
			s.DB.Model(&models.Tournament{}).Select("id").
				Where("status = ? AND completed_at <= ?",
					models.TournamentStatusCompleted, cutoff)).
		Delete(&models.JoinReceipt{})
	return result.RowsAffected, result.Error
}

// receiptRetention reads RECEIPT_RETENTION_HOURS, defaulting to 30 days.
func receiptRetention() time.Duration {
	if v := os.Getenv("RECEIPT_RETENTION_HOURS"); v != "" {
		if h, err := strconv.Atoi(v); err == nil && h > 0 {
			return time.Duration(h) * time.Hour
		}
		log.Printf("⚠️  Invalid RECEIPT_RETENTION_HOURS %q, using default", v)
	}
	return 720 * time.Hour
}
