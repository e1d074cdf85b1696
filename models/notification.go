package models

import "time"

type Notification struct {
	ID          string    `json:"id" gorm:"primarykey"`
	Filename    string    `json:"filename"`
	TargetUser  string    `json:"target_user" gorm:"index;not null"`
	TargetStage Stage     `json:"target_stage"`
	Time        int64     `json:"time" gorm:"not null"`
	Message     string    `json:"message" gorm:"type:text"`
	Read        bool      `json:"read" gorm:"default:false"`
	CreatedAt   time.Time `json:"created_at"`
}
