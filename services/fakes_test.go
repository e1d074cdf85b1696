package services

import (
	"context"
	"sort"
	"sync"

	"thesis-portal/models"
)

// In-memory repository fakes. They mirror the GORM implementations closely
// enough for the engine's latest-time-wins and all-or-nothing semantics.

type fakeSubmissionRepo struct {
	mu     sync.Mutex
	nextID uint
	subs   []models.Submission
	audits []models.AuditLogEntry
}

func newFakeSubmissionRepo() *fakeSubmissionRepo {
	return &fakeSubmissionRepo{nextID: 1}
}

func (r *fakeSubmissionRepo) Append(sub *models.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub.ID = r.nextID
	r.nextID++
	r.subs = append(r.subs, *sub)
	return nil
}

func (r *fakeSubmissionRepo) AppendWithAudit(sub *models.Submission, entry *models.AuditLogEntry, staleVersionID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if staleVersionID != 0 {
		kept := r.subs[:0]
		for _, s := range r.subs {
			if s.ID != staleVersionID {
				kept = append(kept, s)
			}
		}
		r.subs = kept
	}
	sub.ID = r.nextID
	r.nextID++
	r.subs = append(r.subs, *sub)
	if entry != nil {
		r.audits = append(r.audits, *entry)
	}
	return nil
}

func (r *fakeSubmissionRepo) ListAll() ([]models.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Submission, len(r.subs))
	copy(out, r.subs)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Time != out[j].Time {
			return out[i].Time > out[j].Time
		}
		return out[i].Filename < out[j].Filename
	})
	return out, nil
}

func (r *fakeSubmissionRepo) ListByBase(base string) ([]models.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Submission
	for _, s := range r.subs {
		if s.BaseIdentity == base {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time > out[j].Time })
	return out, nil
}

func (r *fakeSubmissionRepo) LatestByBase(base string) (*models.Submission, error) {
	subs, _ := r.ListByBase(base)
	if len(subs) == 0 {
		return nil, models.ErrorNotFound{Message: "no submission for " + base}
	}
	latest := subs[0]
	return &latest, nil
}

func (r *fakeSubmissionRepo) GetByID(id uint) (*models.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.subs {
		if s.ID == id {
			found := s
			return &found, nil
		}
	}
	return nil, models.ErrorNotFound{Message: "submission not found"}
}

func (r *fakeSubmissionRepo) DeleteSentBy(actor string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	kept := r.subs[:0]
	for _, s := range r.subs {
		if s.SentBy == actor {
			deleted++
			continue
		}
		kept = append(kept, s)
	}
	r.subs = kept
	return deleted, nil
}

func (r *fakeSubmissionRepo) CountByStage() (map[models.Stage]int64, error) {
	all, _ := r.ListAll()
	counts := make(map[models.Stage]int64)
	for _, s := range LatestPerBase(all) {
		counts[s.Stage]++
	}
	return counts, nil
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []models.AuditLogEntry
}

func (r *fakeAuditRepo) Append(entry *models.AuditLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeAuditRepo) List() ([]models.AuditLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.AuditLogEntry, len(r.entries))
	copy(out, r.entries)
	return out, nil
}

type fakeNotificationRepo struct {
	mu            sync.Mutex
	notifications []models.Notification
}

func (r *fakeNotificationRepo) Create(n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, *n)
	return nil
}

func (r *fakeNotificationRepo) ListForUser(username string) ([]models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Notification
	for _, n := range r.notifications {
		if n.TargetUser == username {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *fakeNotificationRepo) MarkRead(id, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, n := range r.notifications {
		if n.ID == id && n.TargetUser == username {
			r.notifications[i].Read = true
			return nil
		}
	}
	return models.ErrorNotFound{Message: "notification not found"}
}

func (r *fakeNotificationRepo) ExistsForFilenameSince(filename, messagePrefix string, since int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.notifications {
		if n.Filename == filename && n.Time >= since && len(n.Message) >= len(messagePrefix) && n.Message[:len(messagePrefix)] == messagePrefix {
			return true, nil
		}
	}
	return false, nil
}

type fakeUserRepo struct {
	users []models.User
}

func (r *fakeUserRepo) Create(user *models.User) error {
	user.ID = uint(len(r.users) + 1)
	r.users = append(r.users, *user)
	return nil
}

func (r *fakeUserRepo) GetByEmail(email string) (*models.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			found := u
			return &found, nil
		}
	}
	return nil, models.ErrorNotFound{Message: "user not found"}
}

func (r *fakeUserRepo) GetByUsername(username string) (*models.User, error) {
	for _, u := range r.users {
		if u.Username == username {
			found := u
			return &found, nil
		}
	}
	return nil, models.ErrorNotFound{Message: "user not found"}
}

func (r *fakeUserRepo) GetByID(id uint) (*models.User, error) {
	for _, u := range r.users {
		if u.ID == id {
			found := u
			return &found, nil
		}
	}
	return nil, models.ErrorNotFound{Message: "user not found"}
}

func (r *fakeUserRepo) ListByRole(role models.UserRole) ([]models.User, error) {
	var out []models.User
	for _, u := range r.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

type fakePublisher struct {
	mu       sync.Mutex
	calls    int
	failWith error
}

func (p *fakePublisher) Publish(_ context.Context, sub *models.Submission, _ PublishMetadata) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.failWith != nil {
		return "", p.failWith
	}
	return "handle/" + sub.BaseIdentity, nil
}
