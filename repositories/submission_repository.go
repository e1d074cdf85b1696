package repositories

import (
	"errors"

	"thesis-portal/models"

	"gorm.io/gorm"
)

// SubmissionRepository is an append-only ledger of submission versions. No
// validation lives here; transitions append a new version, they never edit an
// existing row. The only hard delete is the admin purge of a sent history.
type SubmissionRepository interface {
	Append(sub *models.Submission) error
	AppendWithAudit(sub *models.Submission, entry *models.AuditLogEntry, staleVersionID uint) error
	ListAll() ([]models.Submission, error)
	ListByBase(base string) ([]models.Submission, error)
	LatestByBase(base string) (*models.Submission, error)
	GetByID(id uint) (*models.Submission, error)
	DeleteSentBy(actor string) (int64, error)
	CountByStage() (map[models.Stage]int64, error)
}

type submissionRepository struct {
	db *gorm.DB
}

func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) Append(sub *models.Submission) error {
	if err := r.db.Create(sub).Error; err != nil {
		return models.ErrorStorage{Message: err.Error()}
	}
	return nil
}

// AppendWithAudit writes the new version and its audit entry in one
// transaction, optionally dropping a superseded version. All or nothing.
func (r *submissionRepository) AppendWithAudit(sub *models.Submission, entry *models.AuditLogEntry, staleVersionID uint) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if staleVersionID != 0 {
			if err := tx.Unscoped().Delete(&models.Submission{}, staleVersionID).Error; err != nil {
				return err
			}
		}
		if err := tx.Create(sub).Error; err != nil {
			return err
		}
		if entry != nil {
			if err := tx.Create(entry).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.ErrorStorage{Message: err.Error()}
	}
	return nil
}

func (r *submissionRepository) ListAll() ([]models.Submission, error) {
	var subs []models.Submission
	err := r.db.Order("time desc, filename asc").Find(&subs).Error
	if err != nil {
		return nil, models.ErrorStorage{Message: err.Error()}
	}
	return subs, nil
}

func (r *submissionRepository) ListByBase(base string) ([]models.Submission, error) {
	var subs []models.Submission
	err := r.db.Where("base_identity = ?", base).Order("time desc").Find(&subs).Error
	if err != nil {
		return nil, models.ErrorStorage{Message: err.Error()}
	}
	return subs, nil
}

func (r *submissionRepository) LatestByBase(base string) (*models.Submission, error) {
	var sub models.Submission
	err := r.db.Where("base_identity = ?", base).
		Order("time desc").
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrorNotFound{Message: "no submission for " + base}
		}
		return nil, models.ErrorStorage{Message: err.Error()}
	}
	return &sub, nil
}

func (r *submissionRepository) GetByID(id uint) (*models.Submission, error) {
	var sub models.Submission
	err := r.db.First(&sub, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrorNotFound{Message: "submission not found"}
		}
		return nil, models.ErrorStorage{Message: err.Error()}
	}
	return &sub, nil
}

func (r *submissionRepository) DeleteSentBy(actor string) (int64, error) {
	res := r.db.Unscoped().Where("sent_by = ?", actor).Delete(&models.Submission{})
	if res.Error != nil {
		return 0, models.ErrorStorage{Message: res.Error.Error()}
	}
	return res.RowsAffected, nil
}

// CountByStage counts current versions only, one per base identity.
func (r *submissionRepository) CountByStage() (map[models.Stage]int64, error) {
	var results []struct {
		Stage models.Stage
		Count int64
	}

	query := `
		SELECT s.stage, COUNT(*) as count
		FROM (
			SELECT DISTINCT ON (base_identity) stage
			FROM submissions
			ORDER BY base_identity, time DESC
		) s
		GROUP BY s.stage
	`

	if err := r.db.Raw(query).Scan(&results).Error; err != nil {
		return nil, models.ErrorStorage{Message: err.Error()}
	}

	counts := make(map[models.Stage]int64)
	for _, result := range results {
		counts[result.Stage] = result.Count
	}

	return counts, nil
}
