package main

import (
	"context"

	"github.com/vyrodovalexey/filtergw/internal/config"
	"github.com/vyrodovalexey/filtergw/internal/observability"
)

// startWatcher watches configPath and applies every valid change. A watcher
// that cannot start is logged; the gateway keeps running on the loaded
// configuration.
func (a *application) startWatcher(ctx context.Context, configPath string) *config.Watcher {
	watcher, err := config.NewWatcher(configPath,
		func(cfg *config.GatewayConfig) { a.applyConfig(ctx, cfg) },
		config.WithLogger(a.logger),
		config.WithValidator(a.validator()),
		config.WithErrorCallback(func(error) {
			a.reload.reloadTotal.WithLabelValues("error").Inc()
		}),
	)
	if err != nil {
		a.logger.Error("failed to create config watcher", observability.Error(err))
		return nil
	}

	if err := watcher.Start(ctx); err != nil {
		a.logger.Error("failed to start config watcher", observability.Error(err))
		_ = watcher.Stop()
		return nil
	}

	a.reload.watcherRunning.Set(1)
	return watcher
}

// applyConfig pushes a reloaded configuration into the running gateway.
// Only routes are hot-reloaded; filter and listener settings need a restart.
func (a *application) applyConfig(ctx context.Context, cfg *config.GatewayConfig) {
	if err := a.gateway.Reload(cfg); err != nil {
		a.logger.Error("failed to reload gateway", observability.Error(err))
		a.reload.reloadTotal.WithLabelValues("error").Inc()
		return
	}

	if err := a.sync.Sync(ctx, cfg.Spec.Routes); err != nil {
		a.logger.Error("failed to synchronize routes", observability.Error(err))
		a.reload.reloadTotal.WithLabelValues("error").Inc()
		return
	}

	a.reload.reloadTotal.WithLabelValues("success").Inc()
	a.reload.lastSuccess.SetToCurrentTime()
	a.reload.routesLoaded.Set(float64(a.sync.Loaded()))
}
