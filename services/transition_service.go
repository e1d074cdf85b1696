package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"thesis-portal/models"
	"thesis-portal/repositories"
)

// TransitionService is the only writer of the submission ledger. Every
// operation re-validates its precondition against the current version under a
// per-base-identity lock, so two concurrent transitions on the same logical
// document can never both succeed.
type TransitionService interface {
	Submit(owner, filename, blobPath, mimeType string, size int64, deadline *time.Time, notes string) (*models.Submission, error)
	ApproveToReviewer(actor string, id uint, expectedTime int64) (*models.Submission, error)
	ReturnToStudent(actor string, role models.UserRole, id uint, req models.TransitionRequest) (*models.Submission, error)
	UndoSendToReviewer(actor string, id uint, expectedTime int64) (*models.Submission, error)
	ReturnToLibrarian(actor string, id uint, req models.TransitionRequest) (*models.Submission, error)
	ApproveToAdmin(actor string, id uint, req models.TransitionRequest) (*models.Submission, error)
	Publish(ctx context.Context, actor string, id uint, req models.PublishRequest) (*models.Submission, error)
	PurgeSentHistory(actor, targetActor string) (int64, error)
}

type transitionService struct {
	submissionRepo repositories.SubmissionRepository
	auditRepo      repositories.AuditLogRepository
	notifications  NotificationService
	publisher      RepositoryPublisher
	locks          baseLockTable
}

func NewTransitionService(
	submissionRepo repositories.SubmissionRepository,
	auditRepo repositories.AuditLogRepository,
	notifications NotificationService,
	publisher RepositoryPublisher,
) TransitionService {
	return &transitionService{
		submissionRepo: submissionRepo,
		auditRepo:      auditRepo,
		notifications:  notifications,
		publisher:      publisher,
	}
}

// baseLockTable serializes writers per base identity.
type baseLockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (t *baseLockTable) forBase(base string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.locks == nil {
		t.locks = make(map[string]*sync.Mutex)
	}
	if _, ok := t.locks[base]; !ok {
		t.locks[base] = &sync.Mutex{}
	}
	return t.locks[base]
}

// mutationTime returns a strictly increasing last-mutation timestamp so the
// latest-time-wins dedup rule stays unambiguous even within one millisecond.
func mutationTime(latest *models.Submission) int64 {
	now := time.Now().UnixMilli()
	if latest != nil && now <= latest.Time {
		now = latest.Time + 1
	}
	return now
}

func nextVersion(latest *models.Submission, stage models.Stage) *models.Submission {
	next := *latest
	next.ID = 0
	next.CreatedAt = time.Time{}
	next.Stage = stage
	next.Filename = models.RenameToStage(latest.Filename, stage)
	next.Time = mutationTime(latest)
	return &next
}

func (s *transitionService) Submit(owner, filename, blobPath, mimeType string, size int64, deadline *time.Time, notes string) (*models.Submission, error) {
	base := models.BaseIdentity(filename)
	mu := s.locks.forBase(base)
	mu.Lock()
	defer mu.Unlock()

	sub := &models.Submission{
		Filename:     models.RenameToStage(filename, models.Stage1),
		BaseIdentity: base,
		Stage:        models.Stage1,
		Owner:        owner,
		BlobPath:     blobPath,
		MimeType:     mimeType,
		SizeBytes:    size,
		Deadline:     deadline,
		Notes:        notes,
	}

	latest, err := s.submissionRepo.LatestByBase(base)
	switch err.(type) {
	case nil:
		if latest.Owner != owner {
			return nil, models.ErrorValidation{Message: fmt.Sprintf("%s belongs to another student", base)}
		}
		if latest.Stage != models.Stage0 {
			return nil, models.ErrorValidation{Message: fmt.Sprintf("%s is already in review (%s)", base, latest.Stage)}
		}
		// Resubmission keeps the sent-back markers so screeners can tell a
		// returned document from a first submission.
		sub.SentBackToStudent = latest.SentBackToStudent
		sub.SentBackBy = latest.SentBackBy
		sub.Time = mutationTime(latest)
	case models.ErrorNotFound:
		sub.Time = mutationTime(nil)
	default:
		return nil, err
	}

	entry := s.auditEntry(owner, models.ActionSubmitted, sub, notes)
	if err := s.submissionRepo.AppendWithAudit(sub, entry, 0); err != nil {
		return nil, err
	}
	s.notifications.NotifyTransition(sub, models.ActionSubmitted)
	return sub, nil
}

func (s *transitionService) ApproveToReviewer(actor string, id uint, expectedTime int64) (*models.Submission, error) {
	latest, unlock, err := s.lockCurrent(id, expectedTime)
	if err != nil {
		return nil, err
	}
	defer unlock()

	sendable := latest.Stage == models.Stage1 ||
		(latest.Stage == models.Stage2 && !latest.SentToReviewer)
	if !sendable {
		return nil, models.ErrorValidation{Message: fmt.Sprintf("cannot send %s to review from %s", latest.Filename, latest.Stage)}
	}

	staleID, err := s.staleStageVersion(latest.BaseIdentity, models.Stage2)
	if err != nil {
		return nil, err
	}

	next := nextVersion(latest, models.Stage2)
	next.SentToReviewer = true
	next.SentBy = actor
	next.ReturnedFromReview = false
	next.SentBackToStudent = false
	next.SentBackBy = ""

	entry := s.auditEntry(actor, models.ActionSentToReviewer, next, "")
	if err := s.submissionRepo.AppendWithAudit(next, entry, staleID); err != nil {
		return nil, err
	}
	s.notifications.NotifyTransition(next, models.ActionSentToReviewer)
	return next, nil
}

func (s *transitionService) ReturnToStudent(actor string, role models.UserRole, id uint, req models.TransitionRequest) (*models.Submission, error) {
	if !req.Confirmed {
		return nil, models.ErrorValidation{Message: "returning a submission is irrevocable and requires explicit confirmation"}
	}
	if role != models.RoleLibrarian && role != models.RoleReviewer {
		return nil, models.ErrorValidation{Message: "only librarians and reviewers can return a submission"}
	}

	latest, unlock, err := s.lockCurrent(id, req.ExpectedTime)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if latest.Stage != models.Stage1 && latest.Stage != models.Stage2 {
		return nil, models.ErrorValidation{Message: fmt.Sprintf("cannot return %s from %s", latest.Filename, latest.Stage)}
	}

	next := nextVersion(latest, models.Stage0)
	next.SentToReviewer = false
	next.SentBy = ""
	next.ReturnedFromReview = false
	next.ReadyForPublication = false
	next.SentBackToStudent = true
	next.SentBackBy = actor
	if req.Notes != "" {
		next.Notes = req.Notes
	}

	entry := s.auditEntry(actor, models.ActionSentBack, next, req.Notes)
	if err := s.submissionRepo.AppendWithAudit(next, entry, 0); err != nil {
		return nil, err
	}
	s.notifications.NotifyTransition(next, models.ActionSentBack)
	return next, nil
}

func (s *transitionService) UndoSendToReviewer(actor string, id uint, expectedTime int64) (*models.Submission, error) {
	latest, unlock, err := s.lockCurrent(id, expectedTime)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if latest.Stage != models.Stage2 {
		return nil, models.ErrorValidation{Message: fmt.Sprintf("cannot undo send for %s at %s", latest.Filename, latest.Stage)}
	}
	if latest.SentBy != actor {
		return nil, models.ErrorValidation{Message: "only the sender can undo a send to review"}
	}

	next := nextVersion(latest, models.Stage1)
	next.SentToReviewer = false
	next.SentBy = ""
	next.ReturnedFromReview = false

	entry := s.auditEntry(actor, models.ActionUndoSendToReviewer, next, "")
	if err := s.submissionRepo.AppendWithAudit(next, entry, 0); err != nil {
		return nil, err
	}
	return next, nil
}

func (s *transitionService) ReturnToLibrarian(actor string, id uint, req models.TransitionRequest) (*models.Submission, error) {
	latest, unlock, err := s.lockCurrent(id, req.ExpectedTime)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if latest.Stage != models.Stage2 || latest.ReturnedFromReview {
		return nil, models.ErrorValidation{Message: fmt.Sprintf("cannot return %s from review at %s", latest.Filename, latest.Stage)}
	}

	next := nextVersion(latest, models.Stage2)
	next.ReturnedFromReview = true
	if req.Notes != "" {
		next.Notes = req.Notes
	}

	entry := s.auditEntry(actor, models.ActionReturnedFromReview, next, req.Notes)
	if err := s.submissionRepo.AppendWithAudit(next, entry, latest.ID); err != nil {
		return nil, err
	}
	s.notifications.NotifyTransition(next, models.ActionReturnedFromReview)
	return next, nil
}

func (s *transitionService) ApproveToAdmin(actor string, id uint, req models.TransitionRequest) (*models.Submission, error) {
	latest, unlock, err := s.lockCurrent(id, req.ExpectedTime)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if latest.Stage != models.Stage2 {
		return nil, models.ErrorValidation{Message: fmt.Sprintf("cannot approve %s from %s", latest.Filename, latest.Stage)}
	}

	next := nextVersion(latest, models.Stage3)
	next.SentBy = actor
	next.SentToReviewer = false
	next.ReturnedFromReview = false
	next.ReadyForPublication = req.ReadyForPublication
	if req.Notes != "" {
		next.Notes = req.Notes
	}

	entry := s.auditEntry(actor, models.ActionSentToAdmin, next, req.Notes)
	if err := s.submissionRepo.AppendWithAudit(next, entry, 0); err != nil {
		return nil, err
	}
	s.notifications.NotifyTransition(next, models.ActionSentToAdmin)
	return next, nil
}

func (s *transitionService) Publish(ctx context.Context, actor string, id uint, req models.PublishRequest) (*models.Submission, error) {
	latest, unlock, err := s.lockCurrent(id, req.ExpectedTime)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if latest.Stage != models.Stage3 {
		return nil, models.ErrorValidation{Message: fmt.Sprintf("cannot publish %s from %s", latest.Filename, latest.Stage)}
	}
	if !latest.ReadyForPublication {
		return nil, models.ErrorValidation{Message: fmt.Sprintf("%s is not marked ready for publication", latest.Filename)}
	}

	// Publisher first. If the repository rejects the item the local stage
	// must not move.
	externalID, err := s.publisher.Publish(ctx, latest, PublishMetadata{
		Repository: req.Repository,
		Keywords:   req.Keywords,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	next := nextVersion(latest, models.Stage4)
	next.PublishedBy = actor
	next.PublishedAt = &now
	next.RepositoryID = externalID
	next.DOI = "10.5072/" + externalID
	next.Keywords = strings.Join(req.Keywords, ", ")

	entry := s.auditEntry(actor, models.ActionPublished, next, "repository item "+externalID)
	if err := s.submissionRepo.AppendWithAudit(next, entry, 0); err != nil {
		return nil, err
	}
	s.notifications.NotifyTransition(next, models.ActionPublished)
	return next, nil
}

// PurgeSentHistory is the only hard delete in the system: an admin clears a
// single actor's sent rows. Audit entries are never purged.
func (s *transitionService) PurgeSentHistory(actor, targetActor string) (int64, error) {
	if targetActor == "" {
		return 0, models.ErrorValidation{Message: "target actor is required"}
	}
	deleted, err := s.submissionRepo.DeleteSentBy(targetActor)
	if err != nil {
		return 0, err
	}
	entry := &models.AuditLogEntry{
		Time:   time.Now().UnixMilli(),
		Actor:  actor,
		Action: models.ActionPurgedSentHistory,
		Notes:  fmt.Sprintf("purged %d versions sent by %s", deleted, targetActor),
	}
	if err := s.auditRepo.Append(entry); err != nil {
		return deleted, err
	}
	return deleted, nil
}

// lockCurrent resolves the submission the client acted on, takes the
// per-base lock, re-reads the current version and checks the client's
// compare-and-swap token against its last-mutation time.
func (s *transitionService) lockCurrent(id uint, expectedTime int64) (*models.Submission, func(), error) {
	sub, err := s.submissionRepo.GetByID(id)
	if err != nil {
		return nil, nil, err
	}

	mu := s.locks.forBase(sub.BaseIdentity)
	mu.Lock()

	latest, err := s.submissionRepo.LatestByBase(sub.BaseIdentity)
	if err != nil {
		mu.Unlock()
		return nil, nil, err
	}
	if latest.Time != expectedTime {
		mu.Unlock()
		return nil, nil, models.ErrorConflict{Message: fmt.Sprintf("%s changed since it was loaded", latest.BaseIdentity)}
	}
	return latest, mu.Unlock, nil
}

// staleStageVersion finds a leftover version at the target stage so the
// append can drop it in the same transaction.
func (s *transitionService) staleStageVersion(base string, stage models.Stage) (uint, error) {
	versions, err := s.submissionRepo.ListByBase(base)
	if err != nil {
		return 0, err
	}
	for _, v := range versions {
		if v.Stage == stage {
			return v.ID, nil
		}
	}
	return 0, nil
}

func (s *transitionService) auditEntry(actor string, action models.AuditAction, sub *models.Submission, notes string) *models.AuditLogEntry {
	return &models.AuditLogEntry{
		Time:     sub.Time,
		Actor:    actor,
		Action:   action,
		Filename: sub.Filename,
		Notes:    notes,
	}
}
