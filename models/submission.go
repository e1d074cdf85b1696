package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Stage is the position of a submission in the review lifecycle. The stage is
// the authoritative field; the _StageN filename suffix is derived from it.
type Stage int

const (
	Stage0 Stage = iota // returned to student
	Stage1              // awaiting librarian
	Stage2              // with reviewer
	Stage3              // approved, awaiting admin
	Stage4              // published
)

func (s Stage) String() string {
	return fmt.Sprintf("Stage%d", int(s))
}

// Submission is one immutable version of a logical document. Transitions
// append new versions; the version with the highest Time per BaseIdentity is
// the current one.
type Submission struct {
	ID                  uint       `json:"id" gorm:"primarykey"`
	Filename            string     `json:"filename" gorm:"not null"`
	BaseIdentity        string     `json:"base_identity" gorm:"index;not null"`
	Stage               Stage      `json:"stage" gorm:"not null"`
	Owner               string     `json:"owner" gorm:"index;not null"`
	SentBy              string     `json:"sent_by"`
	SentBackBy          string     `json:"sent_back_by"`
	ReturnedFromReview  bool       `json:"returned_from_review"`
	SentToReviewer      bool       `json:"sent_to_reviewer"`
	SentBackToStudent   bool       `json:"sent_back_to_student"`
	ReadyForPublication bool       `json:"ready_for_publication"`
	Time                int64      `json:"time" gorm:"index;not null"`
	Deadline            *time.Time `json:"deadline"`
	Notes               string     `json:"notes" gorm:"type:text"`
	BlobPath            string     `json:"-"`
	SizeBytes           int64      `json:"size_bytes"`
	MimeType            string     `json:"mime_type"`
	PublishedBy         string     `json:"published_by,omitempty"`
	PublishedAt         *time.Time `json:"published_at,omitempty"`
	RepositoryID        string     `json:"repository_id,omitempty"`
	DOI                 string     `json:"doi,omitempty"`
	Keywords            string     `json:"keywords,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

var stageFilenamePattern = regexp.MustCompile(`^(.+)_Stage([0-9])\.([A-Za-z0-9]+)$`)

// BaseIdentity strips the _StageN suffix and extension from a filename. All
// versions of one logical submission share a single base identity.
func BaseIdentity(filename string) string {
	if m := stageFilenamePattern.FindStringSubmatch(filename); m != nil {
		return m[1]
	}
	if idx := strings.LastIndex(filename, "."); idx > 0 {
		return filename[:idx]
	}
	return filename
}

// RenameToStage replaces the _StageN suffix with the one for the target
// stage, preserving the base portion verbatim. A filename that does not match
// the <base>_Stage<N>.<ext> pattern gets the suffix inserted before its
// extension instead of failing.
func RenameToStage(filename string, stage Stage) string {
	if m := stageFilenamePattern.FindStringSubmatch(filename); m != nil {
		return fmt.Sprintf("%s_Stage%d.%s", m[1], int(stage), m[3])
	}
	if idx := strings.LastIndex(filename, "."); idx > 0 {
		return fmt.Sprintf("%s_Stage%d%s", filename[:idx], int(stage), filename[idx:])
	}
	return fmt.Sprintf("%s_Stage%d.pdf", filename, int(stage))
}

// StageFilename builds the canonical filename for a base identity.
func StageFilename(base string, stage Stage, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = "pdf"
	}
	return fmt.Sprintf("%s_Stage%d.%s", base, int(stage), ext)
}
