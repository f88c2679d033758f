//go:build wireinject
// +build wireinject

// Package main 为过期清扫任务 CLI 提供 Wire 依赖注入定义。
package main

import (
	"context"

	configloader "github.com/pocketlol/services-upload/internal/infrastructure/configloader"
	"github.com/pocketlol/services-upload/internal/infrastructure/database"
	"github.com/pocketlol/services-upload/internal/infrastructure/eventbus"
	"github.com/pocketlol/services-upload/internal/infrastructure/gcs"
	"github.com/pocketlol/services-upload/internal/infrastructure/logger"
	"github.com/pocketlol/services-upload/internal/repositories"
	"github.com/pocketlol/services-upload/internal/services"
	expirytasks "github.com/pocketlol/services-upload/internal/tasks/expiry"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/google/wire"
)

//go:generate go run github.com/google/wire/cmd/wire

func wireExpiryTask(context.Context, configloader.Params) (*expiryTaskApp, func(), error) {
	panic(wire.Build(
		configloader.ProviderSet,
		logger.ProviderSet,
		database.ProviderSet,
		txmanager.ProviderSet,
		repositories.ProviderSet,
		eventbus.ProviderSet,
		gcs.ProvidePolicySigner,
		wire.Bind(new(services.SessionRepo), new(*repositories.SessionRepository)),
		wire.Bind(new(services.QuotaLedger), new(*repositories.QuotaRepository)),
		wire.Bind(new(services.CredentialIssuer), new(*gcs.PolicySigner)),
		wire.Bind(new(services.EventBus), new(*eventbus.Bus)),
		wire.Bind(new(services.AuditPublisher), new(*eventbus.Bus)),
		wire.Bind(new(services.AuditSink), new(*services.AuditDispatcher)),
		wire.Bind(new(services.TxRunner), new(txmanager.Manager)),
		services.NewAuditDispatcher,
		services.NewUploadManager,
		expirytasks.ProvideRunner,
		newExpiryTaskApp,
	))
}
