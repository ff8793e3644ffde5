package models

import (
	"time"

	"github.com/google/uuid"
)

// ReportStatus is the lifecycle state of a player report.
type ReportStatus string

// Report statuses.
const (
	ReportStatusOpen     ReportStatus = "open"
	ReportStatusResolved ReportStatus = "resolved"
)

// Report is a player report submitted through the report panel.
type Report struct {
	ID             uint         `gorm:"primaryKey" json:"-"`
	PublicID       uuid.UUID    `gorm:"type:uuid;uniqueIndex" json:"id"`
	TenantID       string       `gorm:"size:64;index;not null" json:"tenant_id"`
	ReporterID     string       `gorm:"size:32;not null" json:"reporter_id"`
	ReporterName   string       `gorm:"size:100" json:"reporter_name"`
	TargetUsername string       `gorm:"size:64;not null" json:"target_username"`
	Reason         string       `gorm:"type:text;not null" json:"reason"`
	Evidence       string       `gorm:"type:text" json:"evidence,omitempty"`
	Status         ReportStatus `gorm:"size:16;not null;default:'open'" json:"status"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Report) TableName() string {
	return "reports"
}

// Note is a free-form moderator note attached to a Roblox identity.
type Note struct {
	ID             uint      `gorm:"primaryKey" json:"-"`
	PublicID       uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"id"`
	TenantID       string    `gorm:"size:64;index;not null" json:"tenant_id"`
	RobloxUserID   int64     `gorm:"index;not null" json:"roblox_user_id"`
	RobloxUsername string    `gorm:"size:64" json:"roblox_username"`
	AuthorID       string    `gorm:"size:32;not null" json:"author_id"`
	AuthorName     string    `gorm:"size:100" json:"author_name"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (Note) TableName() string {
	return "notes"
}

// AppSetting is a process-wide key/value setting, optionally vault-encrypted.
type AppSetting struct {
	Key       string    `gorm:"primaryKey;size:100" json:"key"`
	Value     string    `gorm:"type:text" json:"-"`
	Encrypted bool      `gorm:"not null;default:false" json:"encrypted"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (AppSetting) TableName() string {
	return "app_settings"
}

// AllModels lists every model managed by AutoMigrate.
func AllModels() []interface{} {
	return []interface{}{
		&Tenant{},
		&Sanction{},
		&Report{},
		&Note{},
		&AppSetting{},
	}
}
