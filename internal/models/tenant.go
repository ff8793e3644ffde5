// Package models defines the persisted entities and shared domain values.
package models

import "time"

// Tenant is one Discord guild configured against the system. Credentials are
// stored encrypted by the credential vault.
type Tenant struct {
	ID                  string     `gorm:"primaryKey;size:64" json:"id"`
	Name                string     `gorm:"size:200" json:"name"`
	GuildID             string     `gorm:"size:32;index" json:"guild_id"`
	BotToken            *string    `gorm:"type:text" json:"-"`
	Linked              bool       `gorm:"not null;default:false" json:"linked"`
	LinkSecret          *string    `gorm:"size:32" json:"-"`
	LinkSecretExpiresAt *time.Time `json:"link_secret_expires_at,omitempty"`
	RobloxUniverseID    *string    `gorm:"size:32" json:"roblox_universe_id,omitempty"`
	RobloxAPIKey        *string    `gorm:"type:text" json:"-"`
	LogChannelID        *string    `gorm:"size:32" json:"log_channel_id,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Tenant) TableName() string {
	return "server_configs"
}

// HasEnforcementCredentials reports whether in-game enforcement is configured.
func (t *Tenant) HasEnforcementCredentials() bool {
	return t.RobloxUniverseID != nil && *t.RobloxUniverseID != "" &&
		t.RobloxAPIKey != nil && *t.RobloxAPIKey != ""
}

// TenantPatch is a partial update applied by UpdateTenant. Nil fields are left
// untouched; ClearLinkSecret removes the link secret and its expiry.
type TenantPatch struct {
	Linked              *bool
	LinkSecret          *string
	LinkSecretExpiresAt *time.Time
	ClearLinkSecret     bool
	BotToken            *string
}

// BotCredential is one tenant's encrypted bot token and guild binding.
type BotCredential struct {
	TenantID       string
	GuildID        string
	EncryptedToken string
}
