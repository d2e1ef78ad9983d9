package cron

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/atrium-collab/atrium/internal/repositories"
)

// staleMembershipAge is how long an inactive membership row lingers
// before the cleanup job removes it.
const staleMembershipAge = 60 * 24 * time.Hour

// StartCronJobs schedules retention cleanup and returns the scheduler
// so main can stop it on shutdown.
func StartCronJobs(repo repositories.ChatRepository) *gocron.Scheduler {
	s := gocron.NewScheduler(time.Local)

	s.Every(1).Day().Do(func() { mainCleanup(repo) })
	s.StartAsync()
	return s
}

func mainCleanup(repo repositories.ChatRepository) {
	cleanupExpiredMessages(repo)
	cleanupStaleMemberships(repo)
}

// cleanupExpiredMessages enforces per-chat auto-delete retention.
func cleanupExpiredMessages(repo repositories.ChatRepository) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	deleted, err := repo.PurgeExpiredMessages(ctx)
	if err != nil {
		log.Printf("Failed to purge expired messages: %v", err)
		return
	}
	log.Printf("Purged %v expired messages", deleted)
}

func cleanupStaleMemberships(repo repositories.ChatRepository) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	deleted, err := repo.RemoveStaleMemberships(ctx, time.Now().Add(-staleMembershipAge))
	if err != nil {
		log.Printf("Failed to remove stale memberships: %v", err)
		return
	}
	log.Printf("Removed %v stale membership rows", deleted)
}
