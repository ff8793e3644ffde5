package repository

import (
	"context"
	"time"

	"warden/internal/models"
	"warden/internal/observability"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func (s *store) CreateSanction(ctx context.Context, sanction *models.Sanction) error {
	defer observability.TrackQuery("create", "bans")()
	return mapError(s.db.WithContext(ctx).Create(sanction).Error)
}

// DeactivateSanction marks every active sanction for identityName in the tenant
// inactive and stamps who lifted it. The name comparison is case-insensitive.
func (s *store) DeactivateSanction(ctx context.Context, tenantID, identityName, liftedBy string, liftedAt time.Time) (int64, error) {
	defer observability.TrackQuery("deactivate", "bans")()

	var affected int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var active []models.Sanction
		if err := tx.
			Where("tenant_id = ? AND LOWER(roblox_username) = LOWER(?) AND active = ?", tenantID, identityName, true).
			Find(&active).Error; err != nil {
			return err
		}

		for i := range active {
			meta := active[i].Metadata
			at := liftedAt
			meta.LiftedAt = &at
			meta.LiftedBy = liftedBy
			res := tx.Model(&models.Sanction{}).
				Where("id = ?", active[i].ID).
				Updates(map[string]interface{}{
					"active":   false,
					"metadata": meta,
				})
			if res.Error != nil {
				return res.Error
			}
			affected += res.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, mapError(err)
	}
	return affected, nil
}

func (s *store) ListSanctionsByTenant(ctx context.Context, tenantID string) ([]models.Sanction, error) {
	defer observability.TrackQuery("list_by_tenant", "bans")()
	var sanctions []models.Sanction
	if err := s.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Find(&sanctions).Error; err != nil {
		return nil, mapError(err)
	}
	return sanctions, nil
}

func (s *store) ListSanctionsForIdentity(ctx context.Context, tenantID string, robloxUserID int64) ([]models.Sanction, error) {
	defer observability.TrackQuery("list_for_identity", "bans")()
	var sanctions []models.Sanction
	if err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND roblox_user_id = ?", tenantID, robloxUserID).
		Order("created_at DESC").
		Limit(25).
		Find(&sanctions).Error; err != nil {
		return nil, mapError(err)
	}
	return sanctions, nil
}

func (s *store) GetSanctionByPublicID(ctx context.Context, tenantID string, id uuid.UUID) (*models.Sanction, error) {
	defer observability.TrackQuery("get", "bans")()
	var sanction models.Sanction
	if err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND public_id = ?", tenantID, id).
		First(&sanction).Error; err != nil {
		return nil, mapError(err)
	}
	return &sanction, nil
}
