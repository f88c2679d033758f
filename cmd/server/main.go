// Package main 提供上传服务 HTTP 进程的启动入口。
// 负责加载配置、初始化依赖（通过 Wire）、启动 HTTP Server 并优雅关闭。
package main

import (
	"context"
	"flag"

	"github.com/pocketlol/services-upload/internal/infrastructure/configloader"
	"github.com/pocketlol/services-upload/internal/services"
	"github.com/pocketlol/services-upload/internal/tasks/expiry"

	obswire "github.com/bionicotaku/lingo-utils/observability"
	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	khttp "github.com/go-kratos/kratos/v2/transport/http"

	_ "go.uber.org/automaxprocs" // 自动设置 GOMAXPROCS 为容器 CPU 配额
)

// newApp 组装 Kratos 应用：HTTP Server、审计管道与过期清扫任务共享同一生命周期。
func newApp(
	_ *obswire.Component,
	logger log.Logger,
	hs *khttp.Server,
	dispatcher *services.AuditDispatcher,
	sweeper *expiry.Runner,
	meta configloader.ServiceInfo,
) *kratos.App {
	return kratos.New(
		kratos.ID(meta.InstanceID),
		kratos.Name(meta.Name),
		kratos.Version(meta.Version),
		kratos.Metadata(map[string]string{"environment": meta.Environment}),
		kratos.Logger(logger),
		kratos.Server(hs, dispatcher, sweeper),
	)
}

func main() {
	ctx := context.Background()

	confFlag := flag.String("conf", "", "config path or directory, eg: -conf configs/config.yaml")
	flag.Parse()

	params := configloader.Params{ConfPath: *confFlag}
	app, cleanup, err := wireApp(ctx, params)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	// start and wait for stop signal
	if err := app.Run(); err != nil {
		panic(err)
	}
}
