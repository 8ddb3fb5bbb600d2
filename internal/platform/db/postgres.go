package db

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/yelenbi/packbilling/internal/models"
	cfgpkg "github.com/yelenbi/packbilling/pkg/config"
	gormzap "github.com/yelenbi/packbilling/pkg/gormlog"
)

func NewDB(l *zap.SugaredLogger, cfg *cfgpkg.Config) (*gorm.DB, error) {
	if cfg.Database.DSN == "" {
		l.Error("database DSN is empty")
		return nil, gorm.ErrInvalidDB
	}
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{Logger: gormzap.New(l)})
	if err != nil {
		l.Errorf("failed to connect database: %v", err)
		return nil, err
	}
	l.Infow("connected to postgres via DSN")
	return db, nil
}

var Module = fx.Options(
	fx.Provide(NewDB),
	fx.Invoke(AutoMigrate),
	fx.Invoke(registerDBClose),
)

// AutoMigrate runs GORM migrations on startup, plus the partial unique
// index GORM tags cannot express. The index makes the at-most-one-
// active-subscription invariant a storage-layer guarantee: two
// concurrent change requests cannot both insert an active row.
func AutoMigrate(l *zap.SugaredLogger, db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Pack{},
		&models.UserSubscription{},
		&models.UserCredit{},
		&models.CancellationFeedback{},
		&models.UserProfile{},
		&models.PackChangeLog{},
	); err != nil {
		l.Errorf("automigrate failed: %v", err)
		return err
	}

	if err := db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_user_subscriptions_one_active
		 ON user_subscriptions (user_id) WHERE status = 'active'`,
	).Error; err != nil {
		l.Errorf("failed to create partial unique index: %v", err)
		return err
	}

	l.Infow("automigrate completed")
	return nil
}

// registerDBClose ensures the underlying *sql.DB is closed on shutdown
func registerDBClose(lc fx.Lifecycle, l *zap.SugaredLogger, gdb *gorm.DB) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			sqlDB, err := gdb.DB()
			if err != nil {
				l.Warnw("gorm: get sql.DB failed", "err", err)
				return nil
			}
			l.Infow("closing postgres connection pool")
			return sqlDB.Close()
		},
	})
}
