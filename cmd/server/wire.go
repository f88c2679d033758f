//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package main

import (
	"context"

	"github.com/pocketlol/services-upload/internal/controllers"
	"github.com/pocketlol/services-upload/internal/infrastructure/configloader"
	"github.com/pocketlol/services-upload/internal/infrastructure/database"
	"github.com/pocketlol/services-upload/internal/infrastructure/eventbus"
	"github.com/pocketlol/services-upload/internal/infrastructure/gcs"
	"github.com/pocketlol/services-upload/internal/infrastructure/logger"
	"github.com/pocketlol/services-upload/internal/repositories"
	"github.com/pocketlol/services-upload/internal/server"
	"github.com/pocketlol/services-upload/internal/services"
	"github.com/pocketlol/services-upload/internal/tasks/expiry"

	obswire "github.com/bionicotaku/lingo-utils/observability"
	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2"
	"github.com/google/wire"
)

//go:generate go run github.com/google/wire/cmd/wire

// wireApp init kratos application.
func wireApp(context.Context, configloader.Params) (*kratos.App, func(), error) {
	panic(wire.Build(
		configloader.ProviderSet, // 配置加载与解析
		logger.ProviderSet,       // 结构化日志
		obswire.ProviderSet,      // OpenTelemetry 追踪和指标
		database.ProviderSet,     // PostgreSQL 连接池
		txmanager.ProviderSet,    // 事务管理器
		repositories.ProviderSet, // 数据访问层
		eventbus.ProviderSet,     // 事件总线
		gcs.ProvidePolicySigner,  // 签名上传凭证
		wire.Bind(new(services.SessionRepo), new(*repositories.SessionRepository)),
		wire.Bind(new(services.QuotaLedger), new(*repositories.QuotaRepository)),
		wire.Bind(new(services.CredentialIssuer), new(*gcs.PolicySigner)),
		wire.Bind(new(services.EventBus), new(*eventbus.Bus)),
		wire.Bind(new(services.AuditPublisher), new(*eventbus.Bus)),
		wire.Bind(new(services.AuditSink), new(*services.AuditDispatcher)),
		wire.Bind(new(services.TxRunner), new(txmanager.Manager)),
		services.ProviderSet,     // 业务逻辑层
		controllers.ProviderSet,  // 控制器层（HTTP handlers）
		server.ProviderSet,       // HTTP Server 与遥测
		expiry.ProvideRunner,     // 过期清扫任务
		newApp,
	))
}
