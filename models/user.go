package models

import (
	"time"

	"gorm.io/gorm"
)

type UserRole string

const (
	RoleStudent   UserRole = "student"
	RoleLibrarian UserRole = "librarian"
	RoleReviewer  UserRole = "reviewer"
	RoleAdmin     UserRole = "admin"
)

type User struct {
	ID          uint           `json:"id" gorm:"primarykey"`
	Username    string         `json:"username" gorm:"uniqueIndex;not null"`
	Email       string         `json:"email" gorm:"uniqueIndex;not null"`
	Password    string         `json:"-" gorm:"not null"`
	DisplayName string         `json:"display_name"`
	Role        UserRole       `json:"role" gorm:"default:'student'"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}
