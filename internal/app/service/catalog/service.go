package catalog

import (
	"context"
	"errors"
	"fmt"

	models "github.com/yelenbi/packbilling/internal/models"
	"github.com/yelenbi/packbilling/pkg/apperr"
	"github.com/yelenbi/packbilling/pkg/config"
	types "github.com/yelenbi/packbilling/pkg/types"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service owns the pack catalog: static reference data seeded from
// config at startup and read-only to the rest of the core.
type Service struct {
	cfg *config.Config
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewService(cfg *config.Config, db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{cfg: cfg, db: db, log: log}
}

// Seed upserts the configured packs. Existing rows are updated in
// place; packs removed from config are deactivated, never deleted,
// since ledger rows may still reference them.
func (s *Service) Seed(ctx context.Context) error {
	if len(s.cfg.Packs) == 0 {
		s.log.Warnw("no packs configured, catalog left untouched")
		return nil
	}

	seeded := make(map[string]bool, len(s.cfg.Packs))
	rows := make([]*models.Pack, 0, len(s.cfg.Packs))
	for _, seed := range s.cfg.Packs {
		period := types.BillingPeriod(seed.BillingPeriod)
		if period == "" {
			period = types.BillingPeriodMonthly
		}
		rows = append(rows, &models.Pack{
			ID:            seed.ID,
			Name:          seed.Name,
			Price:         seed.Price,
			Currency:      seed.Currency,
			BillingPeriod: period,
			IsActive:      true,
		})
		seeded[seed.ID] = true
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "price", "currency", "billing_period", "is_active"}),
		}).Create(rows).Error; err != nil {
			return fmt.Errorf("failed to seed packs: %w", err)
		}

		var known []*models.Pack
		if err := tx.Where("is_active = ?", true).Find(&known).Error; err != nil {
			return fmt.Errorf("failed to list packs: %w", err)
		}
		for _, p := range known {
			if !seeded[p.ID] {
				s.log.Warnw("deactivating pack missing from config", "pack_id", p.ID)
				if err := tx.Model(&models.Pack{}).Where("id = ?", p.ID).Update("is_active", false).Error; err != nil {
					return fmt.Errorf("failed to deactivate pack %s: %w", p.ID, err)
				}
			}
		}
		return nil
	})
}

// GetPackByID returns the pack or a NotFoundError. Inactive packs are
// treated as absent: they cannot be targeted by a change request.
func (s *Service) GetPackByID(ctx context.Context, id string) (*models.Pack, error) {
	var pack models.Pack
	err := s.db.WithContext(ctx).Where("id = ? AND is_active = ?", id, true).First(&pack).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("pack %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pack %s: %w", id, err)
	}
	return &pack, nil
}

// GetPackAnyStatus also returns deactivated packs; used when resolving
// the pack behind an existing ledger row.
func (s *Service) GetPackAnyStatus(ctx context.Context, id string) (*models.Pack, error) {
	var pack models.Pack
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&pack).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("pack %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pack %s: %w", id, err)
	}
	return &pack, nil
}

func (s *Service) GetActivePacks(ctx context.Context) ([]*models.Pack, error) {
	var packs []*models.Pack
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).Order("price asc").Find(&packs).Error; err != nil {
		return nil, fmt.Errorf("failed to list packs: %w", err)
	}
	return packs, nil
}

// GetFreePack returns the zero-price pack users land on after an
// immediate cancellation. A catalog without one is a configuration
// error, not a not-found.
func (s *Service) GetFreePack(ctx context.Context) (*models.Pack, error) {
	var pack models.Pack
	err := s.db.WithContext(ctx).Where("price = 0 AND is_active = ?", true).Order("created_at asc").First(&pack).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Configuration("catalog has no free pack")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get free pack: %w", err)
	}
	return &pack, nil
}
