package logger

import "github.com/google/wire"

// ProviderSet wires logger providers for dependency injection.
var ProviderSet = wire.NewSet(NewLogger, ConfigFromServiceInfo)
