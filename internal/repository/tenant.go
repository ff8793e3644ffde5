package repository

import (
	"context"
	"time"

	"warden/internal/models"
	"warden/internal/observability"
)

func (s *store) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	defer observability.TrackQuery("create", "server_configs")()
	return mapError(s.db.WithContext(ctx).Create(tenant).Error)
}

func (s *store) GetTenant(ctx context.Context, id string) (*models.Tenant, error) {
	defer observability.TrackQuery("get", "server_configs")()
	var tenant models.Tenant
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&tenant).Error; err != nil {
		return nil, mapError(err)
	}
	return &tenant, nil
}

func (s *store) GetTenantByGuildID(ctx context.Context, guildID string) (*models.Tenant, error) {
	defer observability.TrackQuery("get_by_guild", "server_configs")()
	var tenant models.Tenant
	if err := s.db.WithContext(ctx).Where("guild_id = ?", guildID).First(&tenant).Error; err != nil {
		return nil, mapError(err)
	}
	return &tenant, nil
}

func (s *store) UpdateTenant(ctx context.Context, id string, patch models.TenantPatch) error {
	defer observability.TrackQuery("update", "server_configs")()

	updates := map[string]interface{}{}
	if patch.Linked != nil {
		updates["linked"] = *patch.Linked
	}
	if patch.BotToken != nil {
		updates["bot_token"] = *patch.BotToken
	}
	if patch.ClearLinkSecret {
		updates["link_secret"] = nil
		updates["link_secret_expires_at"] = nil
	} else {
		if patch.LinkSecret != nil {
			updates["link_secret"] = *patch.LinkSecret
		}
		if patch.LinkSecretExpiresAt != nil {
			updates["link_secret_expires_at"] = *patch.LinkSecretExpiresAt
		}
	}
	if len(updates) == 0 {
		return nil
	}

	res := s.db.WithContext(ctx).Model(&models.Tenant{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return mapError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ConsumeLinkSecret marks the tenant linked and clears its secret, but only
// while the stored secret still equals secret and has not expired. It reports
// false when another exchange already consumed it.
func (s *store) ConsumeLinkSecret(ctx context.Context, id, secret string, now time.Time) (bool, error) {
	defer observability.TrackQuery("consume_link_secret", "server_configs")()

	res := s.db.WithContext(ctx).Model(&models.Tenant{}).
		Where("id = ? AND link_secret = ?", id, secret).
		Where("link_secret_expires_at IS NULL OR link_secret_expires_at > ?", now.UTC()).
		Updates(map[string]interface{}{
			"linked":                 true,
			"link_secret":            nil,
			"link_secret_expires_at": nil,
		})
	if res.Error != nil {
		return false, mapError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *store) ListAllBotCredentials(ctx context.Context) ([]models.BotCredential, error) {
	defer observability.TrackQuery("list_credentials", "server_configs")()

	var tenants []models.Tenant
	if err := s.db.WithContext(ctx).
		Where("bot_token IS NOT NULL AND bot_token <> '' AND guild_id <> ''").
		Order("id ASC").
		Find(&tenants).Error; err != nil {
		return nil, mapError(err)
	}

	creds := make([]models.BotCredential, 0, len(tenants))
	for _, t := range tenants {
		creds = append(creds, models.BotCredential{
			TenantID:       t.ID,
			GuildID:        t.GuildID,
			EncryptedToken: *t.BotToken,
		})
	}
	return creds, nil
}
