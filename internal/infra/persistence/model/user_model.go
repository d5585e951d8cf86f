// Package model contains the GORM models mirroring the PostgreSQL schema.
package model

import (
	"time"

	"github.com/google/uuid"
)

// UserModel mirrors the 'users' table. The credential core writes only
// PasswordHash, Status and LastLoginAt; the remaining columns belong to the
// user-management subsystem.
type UserModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	Name         string    `gorm:"type:varchar(255);not null"`
	PasswordHash string    `gorm:"column:password_hash;type:varchar(255);not null"`
	Avatar       string    `gorm:"type:varchar(512)"`
	Phone        string    `gorm:"type:varchar(50)"`
	Status       string    `gorm:"type:varchar(20);not null;default:ACTIVE"`
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName explicitly sets the table name for GORM.
func (UserModel) TableName() string {
	return "users"
}
