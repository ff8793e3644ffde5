package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"warden/internal/models"
	"warden/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupStore(t *testing.T) (Store, *gorm.DB) {
	t.Helper()

	db := testutil.NewDB(t)
	return NewStore(db), db
}

func strPtr(s string) *string { return &s }

func TestStore_TenantLifecycle(t *testing.T) {
	ctx := context.Background()
	s, _ := setupStore(t)

	require.NoError(t, s.CreateTenant(ctx, &models.Tenant{
		ID:       "t1",
		Name:     "Alpha",
		GuildID:  "g1",
		BotToken: strPtr("iv:ct"),
	}))
	require.NoError(t, s.CreateTenant(ctx, &models.Tenant{ID: "t2", Name: "No token", GuildID: "g2"}))

	got, err := s.GetTenant(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", got.Name)
	assert.False(t, got.Linked)

	byGuild, err := s.GetTenantByGuildID(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "t1", byGuild.ID)

	_, err = s.GetTenant(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	expires := time.Now().Add(time.Hour).UTC()
	require.NoError(t, s.UpdateTenant(ctx, "t1", models.TenantPatch{
		LinkSecret:          strPtr("ABCDEF"),
		LinkSecretExpiresAt: &expires,
	}))
	got, err = s.GetTenant(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, got.LinkSecret)
	assert.Equal(t, "ABCDEF", *got.LinkSecret)

	linked := true
	require.NoError(t, s.UpdateTenant(ctx, "t1", models.TenantPatch{Linked: &linked, ClearLinkSecret: true}))
	got, err = s.GetTenant(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, got.Linked)
	assert.Nil(t, got.LinkSecret)
	assert.Nil(t, got.LinkSecretExpiresAt)

	assert.ErrorIs(t, s.UpdateTenant(ctx, "missing", models.TenantPatch{Linked: &linked}), ErrNotFound)

	creds, err := s.ListAllBotCredentials(ctx)
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, models.BotCredential{TenantID: "t1", GuildID: "g1", EncryptedToken: "iv:ct"}, creds[0])
}

func TestStore_ConsumeLinkSecret(t *testing.T) {
	ctx := context.Background()
	s, _ := setupStore(t)
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	expires := now.Add(time.Hour)

	require.NoError(t, s.CreateTenant(ctx, &models.Tenant{
		ID: "t1", Name: "Alpha", GuildID: "g1", LinkSecret: strPtr("ABCDEF"), LinkSecretExpiresAt: &expires,
	}))
	require.NoError(t, s.CreateTenant(ctx, &models.Tenant{
		ID: "t2", Name: "Beta", GuildID: "g2", LinkSecret: strPtr("123456"), LinkSecretExpiresAt: &expires,
	}))

	ok, err := s.ConsumeLinkSecret(ctx, "t1", "WRONG", now)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.ConsumeLinkSecret(ctx, "t2", "123456", expires.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, ok, "expired secrets are not consumed")

	ok, err = s.ConsumeLinkSecret(ctx, "t1", "ABCDEF", now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ConsumeLinkSecret(ctx, "t1", "ABCDEF", now)
	require.NoError(t, err)
	assert.False(t, ok, "a secret is consumed once")

	got, err := s.GetTenant(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, got.Linked)
	assert.Nil(t, got.LinkSecret)
	assert.Nil(t, got.LinkSecretExpiresAt)
}

func TestStore_SanctionDeactivation(t *testing.T) {
	ctx := context.Background()
	s, _ := setupStore(t)

	for _, name := range []string{"Builderman", "builderman", "Other"} {
		require.NoError(t, s.CreateSanction(ctx, &models.Sanction{
			TenantID:       "t1",
			RobloxUserID:   156,
			RobloxUsername: name,
			Reason:         "exploiting",
			ModeratorID:    "m1",
			Active:         true,
		}))
	}
	require.NoError(t, s.CreateSanction(ctx, &models.Sanction{
		TenantID:       "t2",
		RobloxUserID:   156,
		RobloxUsername: "Builderman",
		Reason:         "other tenant",
		ModeratorID:    "m1",
		Active:         true,
	}))

	liftedAt := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	n, err := s.DeactivateSanction(ctx, "t1", "BUILDERMAN", "mod#1", liftedAt)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	list, err := s.ListSanctionsByTenant(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	for _, sanction := range list {
		if sanction.RobloxUsername == "Other" {
			assert.True(t, sanction.Active)
			continue
		}
		assert.False(t, sanction.Active)
		require.NotNil(t, sanction.Metadata.LiftedAt)
		assert.Equal(t, "mod#1", sanction.Metadata.LiftedBy)
	}

	other, err := s.ListSanctionsByTenant(ctx, "t2")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.True(t, other[0].Active)

	n, err = s.DeactivateSanction(ctx, "t1", "builderman", "mod#1", liftedAt)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestStore_SanctionLookupByPublicID(t *testing.T) {
	ctx := context.Background()
	s, _ := setupStore(t)

	sanction := &models.Sanction{
		TenantID:       "t1",
		RobloxUserID:   7,
		RobloxUsername: "seven",
		Reason:         "spam",
		ModeratorID:    "m",
		Active:         true,
		Metadata: models.SanctionMetadata{
			AltDetection: &models.AltDetectionResult{Confidence: 35, Reasons: []string{"Account created within 30 days"}},
		},
	}
	require.NoError(t, s.CreateSanction(ctx, sanction))
	require.NotEmpty(t, sanction.PublicID)

	got, err := s.GetSanctionByPublicID(ctx, "t1", sanction.PublicID)
	require.NoError(t, err)
	require.NotNil(t, got.AltDetection())
	assert.Equal(t, 35, got.AltDetection().Confidence)

	_, err = s.GetSanctionByPublicID(ctx, "t2", sanction.PublicID)
	assert.ErrorIs(t, err, ErrNotFound)

	forIdentity, err := s.ListSanctionsForIdentity(ctx, "t1", 7)
	require.NoError(t, err)
	assert.Len(t, forIdentity, 1)
}

func TestStore_NotesReportsSettings(t *testing.T) {
	ctx := context.Background()
	s, _ := setupStore(t)

	require.NoError(t, s.CreateNote(ctx, &models.Note{TenantID: "t1", RobloxUserID: 9, AuthorID: "a", Content: "watch"}))
	notes, err := s.ListNotes(ctx, "t1", 9)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "watch", notes[0].Content)

	report := &models.Report{TenantID: "t1", ReporterID: "r", TargetUsername: "x", Reason: "cheating"}
	require.NoError(t, s.CreateReport(ctx, report))
	assert.Equal(t, models.ReportStatusOpen, report.Status)

	_, err = s.GetAppSetting(ctx, "central_bot_token")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SetAppSetting(ctx, "central_bot_token", "a:b", true))
	require.NoError(t, s.SetAppSetting(ctx, "central_bot_token", "c:d", true))
	setting, err := s.GetAppSetting(ctx, "central_bot_token")
	require.NoError(t, err)
	assert.Equal(t, "c:d", setting.Value)
	assert.True(t, setting.Encrypted)
}

func TestMapError(t *testing.T) {
	assert.NoError(t, mapError(nil))
	assert.ErrorIs(t, mapError(gorm.ErrRecordNotFound), ErrNotFound)

	var appErr *models.AppError
	err := mapError(&pgconn.PgError{Code: "23505"})
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "CONFLICT", appErr.Code)

	other := errors.New("boom")
	assert.Equal(t, other, mapError(other))
}

func TestStore_PostgresDialectErrors(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	s := NewStore(db)

	mock.ExpectQuery(`SELECT \* FROM "server_configs" WHERE id = \$1`).
		WithArgs("t1", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err = s.GetTenant(context.Background(), "t1")
	assert.ErrorIs(t, err, ErrNotFound)

	mock.ExpectQuery(`SELECT \* FROM "server_configs" WHERE guild_id = \$1`).
		WillReturnError(&pgconn.PgError{Code: "57P01", Message: "terminating connection"})
	_, err = s.GetTenantByGuildID(context.Background(), "g1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}
