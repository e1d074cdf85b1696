package models

import "time"

type AuditAction string

const (
	ActionSubmitted          AuditAction = "SUBMITTED"
	ActionSentToReviewer     AuditAction = "SENT_TO_REVIEWER"
	ActionSentBack           AuditAction = "SENT_BACK"
	ActionUndoSendToReviewer AuditAction = "UNDO_SEND_TO_REVIEWER"
	ActionReturnedFromReview AuditAction = "RETURNED_FROM_REVIEW"
	ActionSentToAdmin        AuditAction = "SENT_TO_ADMIN"
	ActionPublished          AuditAction = "PUBLISHED"
	ActionPurgedSentHistory  AuditAction = "PURGED_SENT_HISTORY"
)

// AuditLogEntry is append-only; entries are never updated or deleted.
type AuditLogEntry struct {
	ID        uint        `json:"id" gorm:"primarykey"`
	Time      int64       `json:"time" gorm:"index;not null"`
	Actor     string      `json:"actor" gorm:"not null"`
	Action    AuditAction `json:"action" gorm:"not null"`
	Filename  string      `json:"filename"`
	Notes     string      `json:"notes" gorm:"type:text"`
	CreatedAt time.Time   `json:"created_at"`
}
