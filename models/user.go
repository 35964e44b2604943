package models

import "time"

// User is a staff member. Admins manage and validate orders; everyone
// else gets read-only access.
type User struct {
	ID             uint `gorm:"primaryKey"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time `gorm:"index"`
	Username       string     `gorm:"size:255;not null;unique"`
	Nombre         string     `gorm:"size:255"`
	HashedPassword []byte     `gorm:"not null"`
	RoleID         *uint      `gorm:"index"`
	Role           Role       `gorm:"foreignKey:RoleID;references:ID"`
}
