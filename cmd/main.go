// 程序入口：仅负责读取配置、装配依赖并启动服务；路由注册在 internal/api 以便扩展
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"restroom-api/internal/api"
	"restroom-api/internal/app"
	"restroom-api/internal/config"
	"restroom-api/internal/logger"
	"restroom-api/internal/utils"
	"restroom-api/internal/version"
)

func main() {
	cfg := config.Load()
	l := logger.Setup()
	l.Debug("log_init_ok", "commit", version.Commit)
	l.Debug("config_api_base", "base", cfg.APIBase, "store", cfg.Store)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, l)
	if err != nil {
		l.Error("app_build_error", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	h := api.NewHandler(api.Config{
		Pipeline:            a.Pipeline,
		Records:             a.Records,
		Directions:          a.Directions,
		GeoIP:               a.GeoIP,
		Redis:               a.Redis,
		Logger:              l,
		DefaultRadiusMeters: cfg.DefaultRadiusMeters,
		MoveThresholdMeters: cfg.MoveThresholdMeters,
		RateLimitQPS:        cfg.RateLimitQPS,
		LiveMaxDuration:     30 * time.Minute,
	})
	s := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h.Routes(cfg.APIBase),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		if cfg.TLSEnable {
			if err := utils.EnsureSelfSignedCert(cfg.TLSCertPath, cfg.TLSKeyPath, "restroom-api.local"); err != nil {
				errc <- err
				return
			}
			l.Info("listening_tls", "addr", cfg.Addr, "cert", cfg.TLSCertPath)
			errc <- s.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
			return
		}
		l.Info("listening", "addr", cfg.Addr)
		errc <- s.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("server_error", "err", err)
		}
	case <-ctx.Done():
		l.Info("shutdown_begin")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Shutdown(sctx); err != nil {
			l.Error("shutdown_error", "err", err)
		}
	}
	l.Info("shutdown_done")
}
