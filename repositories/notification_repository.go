package repositories

import (
	"thesis-portal/models"

	"gorm.io/gorm"
)

type NotificationRepository interface {
	Create(n *models.Notification) error
	ListForUser(username string) ([]models.Notification, error)
	MarkRead(id, username string) error
	ExistsForFilenameSince(filename, messagePrefix string, since int64) (bool, error)
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(n *models.Notification) error {
	if err := r.db.Create(n).Error; err != nil {
		return models.ErrorStorage{Message: err.Error()}
	}
	return nil
}

func (r *notificationRepository) ListForUser(username string) ([]models.Notification, error) {
	var notifications []models.Notification
	err := r.db.Where("target_user = ?", username).
		Order("time desc").
		Find(&notifications).Error
	if err != nil {
		return nil, models.ErrorStorage{Message: err.Error()}
	}
	return notifications, nil
}

func (r *notificationRepository) MarkRead(id, username string) error {
	res := r.db.Model(&models.Notification{}).
		Where("id = ? AND target_user = ?", id, username).
		Update("read", true)
	if res.Error != nil {
		return models.ErrorStorage{Message: res.Error.Error()}
	}
	if res.RowsAffected == 0 {
		return models.ErrorNotFound{Message: "notification not found"}
	}
	return nil
}

// ExistsForFilenameSince deduplicates scheduled reminders.
func (r *notificationRepository) ExistsForFilenameSince(filename, messagePrefix string, since int64) (bool, error) {
	var count int64
	err := r.db.Model(&models.Notification{}).
		Where("filename = ? AND message LIKE ? AND time >= ?", filename, messagePrefix+"%", since).
		Count(&count).Error
	if err != nil {
		return false, models.ErrorStorage{Message: err.Error()}
	}
	return count > 0, nil
}
