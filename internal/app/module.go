package app

import (
	"time"

	"github.com/yelenbi/packbilling/internal/app/api/server"
	"github.com/yelenbi/packbilling/internal/app/service/cancellation"
	"github.com/yelenbi/packbilling/internal/app/service/catalog"
	"github.com/yelenbi/packbilling/internal/app/service/ledger"
	"github.com/yelenbi/packbilling/internal/app/service/packchange"
	"github.com/yelenbi/packbilling/internal/platform/billing/stripeprovider"
	"github.com/yelenbi/packbilling/internal/platform/db"
	"github.com/yelenbi/packbilling/pkg/config"
	"github.com/yelenbi/packbilling/pkg/logger"

	"go.uber.org/fx"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	server.Module,
	stripeprovider.Module,
	catalog.Module,
	ledger.Module,
	packchange.Module,
	cancellation.Module,
)
