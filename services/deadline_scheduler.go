package services

import (
	"fmt"
	"log"
	"time"

	"thesis-portal/models"
	"thesis-portal/repositories"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

const reminderPrefix = "Deadline approaching"

// DeadlineScheduler sweeps the ledger on a fixed interval and emits one
// reminder per submission whose deadline falls within the next 24 hours.
type DeadlineScheduler struct {
	cron             *cron.Cron
	submissionRepo   repositories.SubmissionRepository
	notificationRepo repositories.NotificationRepository
}

func NewDeadlineScheduler(submissionRepo repositories.SubmissionRepository, notificationRepo repositories.NotificationRepository) *DeadlineScheduler {
	return &DeadlineScheduler{
		cron:             cron.New(),
		submissionRepo:   submissionRepo,
		notificationRepo: notificationRepo,
	}
}

func (s *DeadlineScheduler) Start() {
	if _, err := s.cron.AddFunc("@hourly", s.Sweep); err != nil {
		log.Fatal("Failed to schedule deadline sweep:", err)
	}
	s.cron.Start()
}

func (s *DeadlineScheduler) Stop() {
	s.cron.Stop()
}

// Sweep is read-only re-classification plus reminder writes; it takes no
// locks and always works from a fresh snapshot.
func (s *DeadlineScheduler) Sweep() {
	subs, err := s.submissionRepo.ListAll()
	if err != nil {
		log.Printf("deadline sweep read failed: %v", err)
		return
	}

	now := time.Now()
	cutoff := now.Add(24 * time.Hour)
	dayStart := now.Truncate(24 * time.Hour).UnixMilli()

	for _, sub := range LatestPerBase(subs) {
		if sub.Deadline == nil || sub.Stage == models.Stage4 {
			continue
		}
		if sub.Deadline.Before(now) || sub.Deadline.After(cutoff) {
			continue
		}

		// One reminder per submission per day.
		exists, err := s.notificationRepo.ExistsForFilenameSince(sub.Filename, reminderPrefix, dayStart)
		if err != nil {
			log.Printf("deadline sweep dedup check failed: %v", err)
			continue
		}
		if exists {
			continue
		}

		n := &models.Notification{
			ID:          uuid.NewString(),
			Filename:    sub.Filename,
			TargetUser:  sub.Owner,
			TargetStage: sub.Stage,
			Time:        now.UnixMilli(),
			Message:     fmt.Sprintf("%s: %s is due %s", reminderPrefix, sub.Filename, sub.Deadline.Format("2006-01-02")),
		}
		if err := s.notificationRepo.Create(n); err != nil {
			log.Printf("deadline reminder write failed: %v", err)
		}
	}
}
