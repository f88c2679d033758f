package eventbus

import "github.com/google/wire"

// ProviderSet 暴露事件总线构造器供 Wire 依赖注入使用。
var ProviderSet = wire.NewSet(
	NewBus,
)
