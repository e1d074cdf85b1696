package services

import (
	"fmt"
	"log"
	"strings"
	"time"

	"thesis-portal/models"
	"thesis-portal/repositories"

	"github.com/google/uuid"
)

type NotificationService interface {
	NotifyTransition(sub *models.Submission, action models.AuditAction)
	ListForUser(username string) ([]models.Notification, error)
	MarkRead(id, username string) error
	CalendarICS(subs []models.Submission) string
}

type notificationService struct {
	notificationRepo repositories.NotificationRepository
	userRepo         repositories.UserRepository
}

func NewNotificationService(notificationRepo repositories.NotificationRepository, userRepo repositories.UserRepository) NotificationService {
	return &notificationService{
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
	}
}

// NotifyTransition derives notification records from a finished transition.
// The sidecar carries no business rules; a failed notification write is
// logged and never fails the transition that produced it.
func (s *notificationService) NotifyTransition(sub *models.Submission, action models.AuditAction) {
	var targets []string
	var message string

	switch action {
	case models.ActionSubmitted:
		targets = s.usernamesByRole(models.RoleLibrarian)
		message = fmt.Sprintf("New submission %s is awaiting review", sub.Filename)
	case models.ActionSentToReviewer:
		targets = s.usernamesByRole(models.RoleReviewer)
		message = fmt.Sprintf("Submission %s was sent to review", sub.Filename)
	case models.ActionSentBack:
		targets = []string{sub.Owner}
		message = fmt.Sprintf("Your submission %s was returned to you", sub.Filename)
	case models.ActionReturnedFromReview:
		targets = s.usernamesByRole(models.RoleLibrarian)
		message = fmt.Sprintf("Submission %s was returned from review", sub.Filename)
	case models.ActionSentToAdmin:
		targets = s.usernamesByRole(models.RoleAdmin)
		message = fmt.Sprintf("Submission %s was approved and awaits publication", sub.Filename)
	case models.ActionPublished:
		targets = []string{sub.Owner}
		message = fmt.Sprintf("Your submission %s was published", sub.Filename)
	default:
		return
	}

	for _, target := range targets {
		n := &models.Notification{
			ID:          uuid.NewString(),
			Filename:    sub.Filename,
			TargetUser:  target,
			TargetStage: sub.Stage,
			Time:        sub.Time,
			Message:     message,
		}
		if err := s.notificationRepo.Create(n); err != nil {
			log.Printf("notification write failed for %s: %v", target, err)
		}
	}
}

func (s *notificationService) usernamesByRole(role models.UserRole) []string {
	users, err := s.userRepo.ListByRole(role)
	if err != nil {
		log.Printf("listing %s users failed: %v", role, err)
		return nil
	}
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.Username)
	}
	return names
}

func (s *notificationService) ListForUser(username string) ([]models.Notification, error) {
	return s.notificationRepo.ListForUser(username)
}

func (s *notificationService) MarkRead(id, username string) error {
	return s.notificationRepo.MarkRead(id, username)
}

// CalendarICS renders one VEVENT per submission carrying a deadline. Output
// is deterministic for a fixed snapshot: ordering and timestamps come from
// the submissions themselves, never from the wall clock.
func (s *notificationService) CalendarICS(subs []models.Submission) string {
	var b strings.Builder
	writeLine := func(line string) {
		b.WriteString(line)
		b.WriteString("\r\n")
	}

	writeLine("BEGIN:VCALENDAR")
	writeLine("VERSION:2.0")
	writeLine("PRODID:-//thesis-portal//submission deadlines//EN")

	for _, sub := range LatestPerBase(subs) {
		if sub.Deadline == nil {
			continue
		}
		writeLine("BEGIN:VEVENT")
		writeLine(fmt.Sprintf("UID:%s@thesis-portal", sub.BaseIdentity))
		writeLine(fmt.Sprintf("DTSTAMP:%s", time.UnixMilli(sub.Time).UTC().Format("20060102T150405Z")))
		writeLine(fmt.Sprintf("DTSTART;VALUE=DATE:%s", sub.Deadline.UTC().Format("20060102")))
		writeLine(fmt.Sprintf("SUMMARY:Submission deadline: %s", sub.Filename))
		writeLine("END:VEVENT")
	}

	writeLine("END:VCALENDAR")
	return b.String()
}
