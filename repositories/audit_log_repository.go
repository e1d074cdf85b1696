package repositories

import (
	"thesis-portal/models"

	"gorm.io/gorm"
)

type AuditLogRepository interface {
	Append(entry *models.AuditLogEntry) error
	List() ([]models.AuditLogEntry, error)
}

type auditLogRepository struct {
	db *gorm.DB
}

func NewAuditLogRepository(db *gorm.DB) AuditLogRepository {
	return &auditLogRepository{db: db}
}

func (r *auditLogRepository) Append(entry *models.AuditLogEntry) error {
	if err := r.db.Create(entry).Error; err != nil {
		return models.ErrorStorage{Message: err.Error()}
	}
	return nil
}

func (r *auditLogRepository) List() ([]models.AuditLogEntry, error) {
	var entries []models.AuditLogEntry
	err := r.db.Order("time desc").Find(&entries).Error
	if err != nil {
		return nil, models.ErrorStorage{Message: err.Error()}
	}
	return entries, nil
}
