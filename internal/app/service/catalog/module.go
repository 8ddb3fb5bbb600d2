package catalog

import (
	"context"

	"go.uber.org/fx"
)

// Module exposes the catalog service via Fx and seeds it on startup.
var Module = fx.Options(
	fx.Provide(NewService),
	fx.Invoke(func(s *Service) error {
		return s.Seed(context.Background())
	}),
)
