package repository

import (
	"context"

	"warden/internal/models"
	"warden/internal/observability"

	"gorm.io/gorm/clause"
)

func (s *store) CreateNote(ctx context.Context, note *models.Note) error {
	defer observability.TrackQuery("create", "notes")()
	return mapError(s.db.WithContext(ctx).Create(note).Error)
}

func (s *store) ListNotes(ctx context.Context, tenantID string, robloxUserID int64) ([]models.Note, error) {
	defer observability.TrackQuery("list", "notes")()
	var notes []models.Note
	if err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND roblox_user_id = ?", tenantID, robloxUserID).
		Order("created_at DESC").
		Limit(10).
		Find(&notes).Error; err != nil {
		return nil, mapError(err)
	}
	return notes, nil
}

func (s *store) CreateReport(ctx context.Context, report *models.Report) error {
	defer observability.TrackQuery("create", "reports")()
	return mapError(s.db.WithContext(ctx).Create(report).Error)
}

func (s *store) GetAppSetting(ctx context.Context, key string) (*models.AppSetting, error) {
	defer observability.TrackQuery("get", "app_settings")()
	var setting models.AppSetting
	if err := s.db.WithContext(ctx).Where(&models.AppSetting{Key: key}).First(&setting).Error; err != nil {
		return nil, mapError(err)
	}
	return &setting, nil
}

func (s *store) SetAppSetting(ctx context.Context, key, value string, encrypted bool) error {
	defer observability.TrackQuery("upsert", "app_settings")()
	setting := models.AppSetting{Key: key, Value: value, Encrypted: encrypted}
	return mapError(s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "encrypted", "updated_at"}),
	}).Create(&setting).Error)
}
