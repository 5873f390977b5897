// Package gorm provides GORM model definitions and repositories
package gorm

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FarmerModel is the GORM model for farmer accounts
type FarmerModel struct {
	ID                uuid.UUID `gorm:"type:char(36);primaryKey"`
	Username          string    `gorm:"type:varchar(100);uniqueIndex;not null"`
	Email             string    `gorm:"type:varchar(100);uniqueIndex;not null"`
	PasswordHash      string    `gorm:"type:varchar(200);not null"`
	PreferredLanguage string    `gorm:"type:varchar(10);not null"`
	VoiceEnabled      bool      `gorm:"not null"`
	IsActive          bool      `gorm:"not null"`

	// Location
	State     string   `gorm:"type:varchar(100)"`
	District  string   `gorm:"type:varchar(100)"`
	Latitude  *float64
	Longitude *float64

	// Farm
	FarmSize         *float64
	PrimaryCrop      string `gorm:"type:varchar(100)"`
	SoilType         string `gorm:"type:varchar(50)"`
	IrrigationType   string `gorm:"type:varchar(50)"`
	ProfileCompleted bool   `gorm:"not null"`

	LastWeatherFetch *time.Time
	CreatedAt        time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime:false"`
	LastLoginAt      *time.Time
}

// TableName overrides the default table name
func (FarmerModel) TableName() string { return "farmers" }

// ChatSessionModel is one authenticated conversation. (session_id,
// user_id) is unique.
type ChatSessionModel struct {
	ID        uint      `gorm:"primaryKey"`
	SessionID string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_chat_session_user"`
	UserID    uuid.UUID `gorm:"type:char(36);not null;uniqueIndex:idx_chat_session_user;index"`
	Title     string    `gorm:"type:varchar(200);not null"`
	IsActive  bool      `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false;index"`
}

// TableName overrides the default table name
func (ChatSessionModel) TableName() string { return "chat_sessions" }

// ChatMessageModel is one stored turn. Guest messages have a NULL user_id.
type ChatMessageModel struct {
	ID        uint       `gorm:"primaryKey"`
	SessionID string     `gorm:"type:varchar(100);not null;index:idx_chat_message_session"`
	UserID    *uuid.UUID `gorm:"type:char(36);index"`
	Role      string     `gorm:"type:varchar(20);not null"`
	Content   string     `gorm:"type:text;not null"`
	Language  string     `gorm:"type:varchar(10);not null"`
	WasSpoken bool       `gorm:"not null"`
	SentAt    time.Time  `gorm:"not null;index:idx_chat_message_session"`
}

// TableName overrides the default table name
func (ChatMessageModel) TableName() string { return "chat_messages" }

// AutoMigrate creates or updates every table the application uses
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&FarmerModel{},
		&ChatSessionModel{},
		&ChatMessageModel{},
	)
}
