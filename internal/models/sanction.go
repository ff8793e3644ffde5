package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// AltDetectionResult is the trust scorer's verdict for one identity. It is
// never persisted on its own; a snapshot is embedded in SanctionMetadata.
type AltDetectionResult struct {
	IsLikelyAlt    bool     `json:"isLikelyAlt"`
	Confidence     int      `json:"confidence"`
	Reasons        []string `json:"reasons"`
	AccountAgeDays *int     `json:"accountAgeDays,omitempty"`
	KnownAlts      []int64  `json:"knownAlts"`
}

// SanctionMetadata is the free-form metadata stored alongside a sanction.
type SanctionMetadata struct {
	AltDetection       *AltDetectionResult `json:"altDetection,omitempty"`
	RobloxEnforced     bool                `json:"robloxEnforced"`
	RobloxStatusCode   int                 `json:"robloxStatusCode,omitempty"`
	RobloxEnforcedAt   *time.Time          `json:"robloxEnforcedAt,omitempty"`
	RobloxError        string              `json:"robloxError,omitempty"`
	DurationDays       *int                `json:"durationDays,omitempty"`
	ExcludeAltAccounts bool                `json:"excludeAltAccounts"`
	LiftedAt           *time.Time          `json:"liftedAt,omitempty"`
	LiftedBy           string              `json:"liftedBy,omitempty"`
}

// Value implements driver.Valuer so the metadata is stored as a JSON column.
func (m SanctionMetadata) Value() (driver.Value, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *SanctionMetadata) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*m = SanctionMetadata{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("unsupported sanction metadata column type")
	}
	if len(raw) == 0 {
		*m = SanctionMetadata{}
		return nil
	}
	return json.Unmarshal(raw, m)
}

// Sanction is a persisted ban of a Roblox identity issued from a tenant. Sanctions
// are deactivated, never hard-deleted.
type Sanction struct {
	ID             uint             `gorm:"primaryKey" json:"-"`
	PublicID       uuid.UUID        `gorm:"type:uuid;uniqueIndex" json:"id"`
	TenantID       string           `gorm:"size:64;index;not null" json:"tenant_id"`
	RobloxUserID   int64            `gorm:"index;not null" json:"roblox_user_id"`
	RobloxUsername string           `gorm:"size:64;index;not null" json:"roblox_username"`
	Reason         string           `gorm:"type:text;not null" json:"reason"`
	ModeratorID    string           `gorm:"size:32;not null" json:"moderator_id"`
	ModeratorName  string           `gorm:"size:100" json:"moderator_name"`
	ExpiresAt      *time.Time       `json:"expires_at,omitempty"`
	Active         bool             `gorm:"not null;default:true;index" json:"active"`
	Metadata       SanctionMetadata `gorm:"type:text" json:"metadata"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Sanction) TableName() string {
	return "bans"
}

// AltDetection returns the embedded scorer snapshot, if any.
func (s *Sanction) AltDetection() *AltDetectionResult {
	return s.Metadata.AltDetection
}
