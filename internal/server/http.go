// Package server 负责 HTTP 服务的装配：路由、中间件、健康检查与指标暴露。
package server

import (
	"crypto/subtle"
	stdhttp "net/http"
	"strings"

	"github.com/pocketlol/services-upload/internal/controllers"
	"github.com/pocketlol/services-upload/internal/infrastructure/configloader"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/logging"
	"github.com/go-kratos/kratos/v2/middleware/metadata"
	kmetrics "github.com/go-kratos/kratos/v2/middleware/metrics"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewHTTPServer new an HTTP server.
func NewHTTPServer(
	cfg configloader.ServerConfig,
	uploads *controllers.UploadHandler,
	callbacks *controllers.CallbackHandler,
	telemetry *Telemetry,
	logger log.Logger,
) *khttp.Server {
	var opts = []khttp.ServerOption{
		khttp.Middleware(
			recovery.Recovery(),
			metadata.Server(
				metadata.WithPropagatedPrefix("x-pocketlol-"),
			),
			logging.Server(logger),
			kmetrics.Server(
				kmetrics.WithSeconds(telemetry.SecondsHistogram),
				kmetrics.WithRequests(telemetry.RequestCounter),
			),
		),
		khttp.Filter(serviceAuthFilter(cfg.AuthToken)),
	}
	if cfg.Network != "" {
		opts = append(opts, khttp.Network(cfg.Network))
	}
	if cfg.Address != "" {
		opts = append(opts, khttp.Address(cfg.Address))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, khttp.Timeout(cfg.Timeout))
	}

	srv := khttp.NewServer(opts...)

	srv.Handle("/healthz", stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, _ *stdhttp.Request) {
		w.WriteHeader(stdhttp.StatusOK)
	}))

	srv.Handle("/readyz", stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, _ *stdhttp.Request) {
		// 预留 readiness 校验钩子：若未来需要检查数据库等依赖，可在此处扩展。
		w.WriteHeader(stdhttp.StatusOK)
	}))

	srv.Handle("/metrics", promhttp.HandlerFor(telemetry.PrometheusRegistry, promhttp.HandlerOpts{}))

	route := srv.Route("/")
	uploads.RegisterRoutes(route)
	callbacks.RegisterRoutes(route)

	return srv
}

// serviceAuthFilter 对 /uploads 下的全部路由校验服务令牌。
// 未配置令牌时放行（本地开发场景），校验采用常数时间比较。
func serviceAuthFilter(token string) khttp.FilterFunc {
	expected := []byte("Bearer " + token)
	return func(next stdhttp.Handler) stdhttp.Handler {
		return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
			if token == "" || !strings.HasPrefix(r.URL.Path, "/uploads") {
				next.ServeHTTP(w, r)
				return
			}
			got := []byte(r.Header.Get("Authorization"))
			if subtle.ConstantTimeCompare(got, expected) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(stdhttp.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"code":401,"reason":"SERVICE_AUTH_REQUIRED","message":"invalid service token"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
