package expiry

import (
	"github.com/pocketlol/services-upload/internal/infrastructure/configloader"
	"github.com/pocketlol/services-upload/internal/services"

	"github.com/go-kratos/kratos/v2/log"
)

// ProvideRunner 供 Wire 注入使用。
func ProvideRunner(cfg configloader.TasksConfig, manager *services.UploadManager, logger log.Logger) (*Runner, error) {
	return NewRunner(RunnerParams{
		Sweeper:  manager,
		Interval: cfg.ExpirySweepInterval,
		Logger:   logger,
	})
}
