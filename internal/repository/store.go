// Package repository provides persistence for tenants, sanctions, notes,
// reports and application settings.
package repository

import (
	"context"
	"errors"
	"time"

	"warden/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

const pgUniqueViolation = "23505"

// TenantRepository defines tenant configuration operations.
type TenantRepository interface {
	CreateTenant(ctx context.Context, tenant *models.Tenant) error
	GetTenant(ctx context.Context, id string) (*models.Tenant, error)
	GetTenantByGuildID(ctx context.Context, guildID string) (*models.Tenant, error)
	UpdateTenant(ctx context.Context, id string, patch models.TenantPatch) error
	ConsumeLinkSecret(ctx context.Context, id, secret string, now time.Time) (bool, error)
	ListAllBotCredentials(ctx context.Context) ([]models.BotCredential, error)
}

// SanctionRepository defines ban record operations.
type SanctionRepository interface {
	CreateSanction(ctx context.Context, sanction *models.Sanction) error
	DeactivateSanction(ctx context.Context, tenantID, identityName, liftedBy string, liftedAt time.Time) (int64, error)
	ListSanctionsByTenant(ctx context.Context, tenantID string) ([]models.Sanction, error)
	ListSanctionsForIdentity(ctx context.Context, tenantID string, robloxUserID int64) ([]models.Sanction, error)
	GetSanctionByPublicID(ctx context.Context, tenantID string, id uuid.UUID) (*models.Sanction, error)
}

// NoteRepository defines moderator note operations.
type NoteRepository interface {
	CreateNote(ctx context.Context, note *models.Note) error
	ListNotes(ctx context.Context, tenantID string, robloxUserID int64) ([]models.Note, error)
}

// ReportRepository defines player report operations.
type ReportRepository interface {
	CreateReport(ctx context.Context, report *models.Report) error
}

// SettingRepository defines application setting operations.
type SettingRepository interface {
	GetAppSetting(ctx context.Context, key string) (*models.AppSetting, error)
	SetAppSetting(ctx context.Context, key, value string, encrypted bool) error
}

// Store is the full persistence surface consumed by the core.
type Store interface {
	TenantRepository
	SanctionRepository
	NoteRepository
	ReportRepository
	SettingRepository
}

type store struct {
	db *gorm.DB
}

// NewStore creates a gorm-backed Store. There is no caching layer; every call
// reaches the database.
func NewStore(db *gorm.DB) Store {
	return &store{db: db}
}

// mapError translates driver errors into repository and application errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return models.NewConflictError("record already exists", err)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return models.NewConflictError("record already exists", err)
	}
	return err
}
