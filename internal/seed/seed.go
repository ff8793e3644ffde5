// Package seed creates demo tenants, sanctions and notes for local
// development. It must never run against a production database.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"warden/internal/models"
	"warden/internal/observability"
	"warden/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// ErrProduction is returned when seeding is attempted in production.
var ErrProduction = errors.New("seed: refusing to seed a production database")

// demoPrefix marks every seeded tenant id so ClearAll only touches demo data.
const demoPrefix = "demo-"

// Options controls how much demo data is generated.
type Options struct {
	Tenants            int
	SanctionsPerTenant int
	NotesPerTenant     int
	// Seed makes generation deterministic when non-zero.
	Seed int64
}

// Summary counts the rows created by Run.
type Summary struct {
	Tenants   int
	Sanctions int
	Notes     int
}

// Seeder writes demo data through the repository.
type Seeder struct {
	db    *gorm.DB
	store repository.Store
	faker *gofakeit.Faker
	now   func() time.Time
}

// NewSeeder creates a Seeder for the given database.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Seeder{
		db:    db,
		store: repository.NewStore(db),
		faker: gofakeit.New(seed),
		now:   time.Now,
	}
}

// Guard returns ErrProduction for production environments.
func Guard(env string) error {
	if env == "production" || env == "prod" {
		return ErrProduction
	}
	return nil
}

// Run generates the demo data.
func (s *Seeder) Run(ctx context.Context, opts Options) (Summary, error) {
	var sum Summary
	for i := 1; i <= opts.Tenants; i++ {
		tenant := &models.Tenant{
			ID:      fmt.Sprintf("%s%d", demoPrefix, i),
			Name:    s.faker.Company(),
			GuildID: s.faker.Numerify("1###################"),
			Linked:  s.faker.Bool(),
		}
		if s.faker.Bool() {
			universe := s.faker.Numerify("#########")
			tenant.RobloxUniverseID = &universe
		}
		if err := s.store.CreateTenant(ctx, tenant); err != nil {
			return sum, fmt.Errorf("seed tenant %s: %w", tenant.ID, err)
		}
		sum.Tenants++

		ids := make([]int64, 0, opts.SanctionsPerTenant)
		for j := 0; j < opts.SanctionsPerTenant; j++ {
			sanction := s.sanction(tenant.ID)
			if err := s.store.CreateSanction(ctx, sanction); err != nil {
				return sum, fmt.Errorf("seed sanction: %w", err)
			}
			ids = append(ids, sanction.RobloxUserID)
			sum.Sanctions++
		}

		for j := 0; j < opts.NotesPerTenant; j++ {
			note := &models.Note{
				TenantID:       tenant.ID,
				RobloxUserID:   int64(s.faker.Number(1_000_000, 2_000_000_000)),
				RobloxUsername: s.faker.Username(),
				AuthorID:       s.faker.Numerify("1#################"),
				AuthorName:     s.faker.FirstName(),
				Content:        s.faker.Sentence(8),
			}
			if len(ids) > 0 {
				note.RobloxUserID = ids[j%len(ids)]
			}
			if err := s.store.CreateNote(ctx, note); err != nil {
				return sum, fmt.Errorf("seed note: %w", err)
			}
			sum.Notes++
		}
	}

	observability.Logger.InfoContext(ctx, "demo data seeded",
		slog.Int("tenants", sum.Tenants),
		slog.Int("sanctions", sum.Sanctions),
		slog.Int("notes", sum.Notes),
	)
	return sum, nil
}

func (s *Seeder) sanction(tenantID string) *models.Sanction {
	age := s.faker.Number(1, 2000)
	sanction := &models.Sanction{
		TenantID:       tenantID,
		RobloxUserID:   int64(s.faker.Number(1_000_000, 2_000_000_000)),
		RobloxUsername: s.faker.Username(),
		Reason:         s.faker.Sentence(6),
		ModeratorID:    s.faker.Numerify("1#################"),
		ModeratorName:  s.faker.FirstName(),
		Active:         true,
		Metadata: models.SanctionMetadata{
			AltDetection: &models.AltDetectionResult{
				Reasons:        []string{},
				AccountAgeDays: &age,
				KnownAlts:      []int64{},
			},
			ExcludeAltAccounts: s.faker.Bool(),
		},
	}
	if s.faker.Bool() {
		days := s.faker.Number(1, 30)
		expires := s.now().Add(time.Duration(days) * 24 * time.Hour)
		sanction.ExpiresAt = &expires
		sanction.Metadata.DurationDays = &days
	}
	return sanction
}

// ClearAll removes every seeded tenant and its rows.
func (s *Seeder) ClearAll(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		like := demoPrefix + "%"
		if err := tx.Where("tenant_id LIKE ?", like).Delete(&models.Note{}).Error; err != nil {
			return err
		}
		if err := tx.Where("tenant_id LIKE ?", like).Delete(&models.Sanction{}).Error; err != nil {
			return err
		}
		if err := tx.Where("tenant_id LIKE ?", like).Delete(&models.Report{}).Error; err != nil {
			return err
		}
		return tx.Where("id LIKE ?", like).Delete(&models.Tenant{}).Error
	})
}
