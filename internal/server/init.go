package server

import "github.com/google/wire"

// ProviderSet 暴露 HTTP 服务与遥测组件的构造器。
var ProviderSet = wire.NewSet(
	NewHTTPServer,
	NewTelemetry,
)
