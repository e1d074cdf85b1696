package services

import (
	"sort"
	"strings"
	"time"

	"thesis-portal/models"
	"thesis-portal/repositories"
)

type QueueName string

const (
	QueueToReview    QueueName = "to-review"
	QueueReturned    QueueName = "returned"
	QueueSent        QueueName = "sent"
	QueueSentBack    QueueName = "sent-back"
	QueueAll         QueueName = "all"
	QueueSubmitted   QueueName = "submitted"
	QueuePublication QueueName = "publication"
	QueueMine        QueueName = "mine"
)

type queuePredicate func(s models.Submission, actingUser string) bool

// queuePredicates is the single enforcement point for role-scoped visibility.
// A reviewer must never see Stage1 submissions; that invariant lives here and
// only here. New roles or queues are added to this table, nowhere else.
var queuePredicates = map[models.UserRole]map[QueueName]queuePredicate{
	models.RoleLibrarian: {
		QueueToReview: func(s models.Submission, _ string) bool {
			return (s.Stage == models.Stage1 && !s.ReturnedFromReview) ||
				(s.Stage == models.Stage2 && !s.SentToReviewer)
		},
		QueueReturned: func(s models.Submission, _ string) bool {
			return s.Stage == models.Stage2 && s.ReturnedFromReview
		},
		QueueSent: func(s models.Submission, user string) bool {
			return s.SentBy == user
		},
		QueueSentBack: func(s models.Submission, user string) bool {
			return s.Stage == models.Stage1 && s.SentBackToStudent && s.SentBackBy == user
		},
	},
	models.RoleReviewer: {
		QueueToReview: func(s models.Submission, _ string) bool {
			return s.Stage == models.Stage2 && !s.ReturnedFromReview
		},
		QueueReturned: func(s models.Submission, _ string) bool {
			return s.Stage == models.Stage2 && s.ReturnedFromReview
		},
		QueueSent: func(s models.Submission, user string) bool {
			return s.Stage == models.Stage3 && s.SentBy == user
		},
		QueueSentBack: func(s models.Submission, user string) bool {
			return s.Stage == models.Stage1 && s.SentBackBy == user
		},
	},
	models.RoleAdmin: {
		QueueAll: func(_ models.Submission, _ string) bool {
			return true
		},
		QueueSubmitted: func(s models.Submission, _ string) bool {
			return s.Stage == models.Stage3
		},
		QueuePublication: func(s models.Submission, _ string) bool {
			return s.Stage == models.Stage3 && s.ReadyForPublication
		},
	},
	models.RoleStudent: {
		QueueMine: func(s models.Submission, user string) bool {
			return s.Owner == user
		},
		QueueReturned: func(s models.Submission, user string) bool {
			return s.Stage == models.Stage0 && s.Owner == user
		},
	},
}

// LatestPerBase reduces a full snapshot to the current version of each
// logical submission: maximum Time per base identity. Stale versions are
// never reasoned over.
func LatestPerBase(subs []models.Submission) []models.Submission {
	latest := make(map[string]models.Submission)
	for _, s := range subs {
		base := s.BaseIdentity
		if base == "" {
			base = models.BaseIdentity(s.Filename)
		}
		cur, ok := latest[base]
		if !ok || s.Time > cur.Time {
			latest[base] = s
		}
	}

	out := make([]models.Submission, 0, len(latest))
	for _, s := range latest {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Time != out[j].Time {
			return out[i].Time > out[j].Time
		}
		return out[i].Filename < out[j].Filename
	})
	return out
}

// Classify maps a snapshot to the named queue for one role and user. Pure and
// idempotent; an unknown role or queue yields an empty result, never an error.
func Classify(subs []models.Submission, actingUser string, role models.UserRole, queue QueueName) []models.Submission {
	byRole, ok := queuePredicates[role]
	if !ok {
		return []models.Submission{}
	}
	pred, ok := byRole[queue]
	if !ok {
		return []models.Submission{}
	}

	current := LatestPerBase(subs)
	out := make([]models.Submission, 0, len(current))
	for _, s := range current {
		if pred(s, actingUser) {
			out = append(out, s)
		}
	}
	return out
}

// Narrow applies AND-composed filters on top of a classified set. It can only
// shrink the set, never widen it past the role restriction.
func Narrow(subs []models.Submission, params models.QueueParams) []models.Submission {
	out := make([]models.Submission, 0, len(subs))
	var deadlineBefore *time.Time
	if params.DeadlineBefore != "" {
		if t, err := time.Parse("2006-01-02", params.DeadlineBefore); err == nil {
			deadlineBefore = &t
		}
	}
	now := time.Now()

	for _, s := range subs {
		if params.Search != "" {
			needle := strings.ToLower(params.Search)
			if !strings.Contains(strings.ToLower(s.Filename), needle) &&
				!strings.Contains(strings.ToLower(s.Notes), needle) {
				continue
			}
		}
		if deadlineBefore != nil {
			if s.Deadline == nil || !s.Deadline.Before(*deadlineBefore) {
				continue
			}
		}
		if params.Overdue {
			if s.Deadline == nil || !s.Deadline.Before(now) || s.Stage == models.Stage4 {
				continue
			}
		}
		out = append(out, s)
	}
	return out
}

type QueueService interface {
	ListQueue(actingUser string, role models.UserRole, params models.QueueParams) ([]models.Submission, error)
}

type queueService struct {
	submissionRepo repositories.SubmissionRepository
}

func NewQueueService(submissionRepo repositories.SubmissionRepository) QueueService {
	return &queueService{submissionRepo: submissionRepo}
}

// ListQueue re-reads the full current snapshot on every call so that pollers
// never observe stale cached state.
func (s *queueService) ListQueue(actingUser string, role models.UserRole, params models.QueueParams) ([]models.Submission, error) {
	subs, err := s.submissionRepo.ListAll()
	if err != nil {
		return nil, err
	}
	classified := Classify(subs, actingUser, role, QueueName(params.Queue))
	return Narrow(classified, params), nil
}
