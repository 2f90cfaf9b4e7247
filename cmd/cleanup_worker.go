package cmd

import (
	"context"
	"sync"
	"time"

	"dicegame/service"

	log "github.com/sirupsen/logrus"
)

// GameCleaner removes stale games
type GameCleaner interface {
	CleanupOldGames(ctx context.Context, hoursOld int) (int, error)
}

// StartCleanupWorker starts a background worker that sweeps stale games every interval.
// Returns a cleanup function to stop the worker gracefully
func StartCleanupWorker(ctx context.Context, cleaner GameCleaner, hoursOld int, interval time.Duration) func() {
	ticker := time.NewTicker(interval)
	stopChan := make(chan struct{})
	done := make(chan struct{})

	sweep := func() {
		deleted, err := cleaner.CleanupOldGames(ctx, hoursOld)
		if err != nil {
			log.Errorf("Error cleaning up old games: %v", err)
			return
		}

		fields := log.Fields{
			"hoursOld": hoursOld,
			"nextRun":  service.NextCleanupRun(time.Now().UTC(), interval).Format(time.RFC3339),
		}
		if deleted > 0 {
			fields["deleted"] = deleted
			log.WithFields(fields).Info("Cleanup worker removed stale games")
		} else {
			log.WithFields(fields).Debug("Cleanup worker found nothing to remove")
		}
	}

	go func() {
		defer close(done)
		log.Info("Cleanup worker started")

		// Run immediately on startup
		sweep()

		for {
			select {
			case <-ctx.Done():
				log.Info("Cleanup worker shutting down (context cancelled)...")
				return
			case <-stopChan:
				log.Info("Cleanup worker shutting down (stop requested)...")
				return
			case <-ticker.C:
				sweep()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(stopChan)
		})
		<-done
	}
}
