// Package main 提供过期清扫 Runner 的独立进程入口，便于后台单独运行。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	configloader "github.com/pocketlol/services-upload/internal/infrastructure/configloader"
	expirytasks "github.com/pocketlol/services-upload/internal/tasks/expiry"
	"github.com/go-kratos/kratos/v2/log"
)

type expiryTaskApp struct {
	Runner *expirytasks.Runner
	Logger log.Logger
}

func newExpiryTaskApp(logger log.Logger, runner *expirytasks.Runner) (*expiryTaskApp, error) {
	if runner == nil {
		return nil, fmt.Errorf("expiry runner not initialized")
	}
	return &expiryTaskApp{
		Runner: runner,
		Logger: logger,
	}, nil
}

func main() {
	ctx := context.Background()

	confFlag := flag.String("conf", "", "config path or directory, eg: -conf configs/config.yaml")
	flag.Parse()

	params := configloader.Params{ConfPath: *confFlag}
	app, cleanup, err := wireExpiryTask(ctx, params)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	logger := app.Logger
	if logger == nil {
		logger = log.NewStdLogger(os.Stdout)
	}
	helper := log.NewHelper(logger)

	helper.Info("starting upload expiry sweeper")

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Runner.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		helper.Errorf("expiry sweeper stopped unexpectedly: %v", err)
		os.Exit(1)
	}

	helper.Info("expiry sweeper stopped")
}
