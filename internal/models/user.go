package models

import (
	"time"
)

type User struct {
	Id        uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Uuid      string     `gorm:"type:varchar(36);uniqueIndex;not null" json:"uuid"`
	Name      string     `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	Email     string     `gorm:"type:varchar(255)" json:"email"`
	Password  string     `gorm:"type:varchar(100);not null" json:"-"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	LastLogin *time.Time `gorm:"type:datetime" json:"last_login"`
}
