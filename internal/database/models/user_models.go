package models

import "time"

type UserAccount struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	Email     string `gorm:"uniqueIndex;not null"`
	Password  string `gorm:"not null"`
	LastLogin *time.Time
	CreatedAt *time.Time `gorm:"autoCreateTime"`
	UpdatedAt *time.Time `gorm:"autoUpdateTime"`
}

func (UserAccount) TableName() string { return "users" }

type UserProfile struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	Email     string
	Name      string
	Role      string `gorm:"not null;default:user"`
	AvatarURL string `gorm:"type:text"`
	CreatedAt *time.Time `gorm:"autoCreateTime"`
	UpdatedAt *time.Time `gorm:"autoUpdateTime"`
}

func (UserProfile) TableName() string { return "user_profiles" }
