package packchange

import "go.uber.org/fx"

// Module exposes the pack-change service via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
)
