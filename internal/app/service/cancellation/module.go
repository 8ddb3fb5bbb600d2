package cancellation

import "go.uber.org/fx"

// Module exposes the cancellation workflow via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
)
