package main

import (
	"context"

	"github.com/spf13/viper"

	"github.com/jingkaihe/pricewatch/pkg/config"
	"github.com/jingkaihe/pricewatch/pkg/discovery"
	"github.com/jingkaihe/pricewatch/pkg/fetch"
	"github.com/jingkaihe/pricewatch/pkg/logger"
	"github.com/jingkaihe/pricewatch/pkg/pricing"
	"github.com/jingkaihe/pricewatch/pkg/store"
	"github.com/jingkaihe/pricewatch/pkg/telemetry"
	"github.com/jingkaihe/pricewatch/pkg/version"
	"github.com/jingkaihe/pricewatch/pkg/watcher"
)

// app holds the wiring shared by the watch commands.
type app struct {
	settings *config.Settings
	store    store.Store
	service  *watcher.Service
	shutdown func(context.Context) error
}

func newApp(ctx context.Context, v *viper.Viper) (*app, error) {
	settings, err := config.Load(v)
	if err != nil {
		return nil, err
	}

	if err := logger.SetLogLevel(settings.LogLevel); err != nil {
		return nil, err
	}
	logger.SetLogFormat(settings.LogFormat)

	shutdown, err := telemetry.InitTracer(ctx, telemetry.Config{
		Enabled:        settings.Tracing.Enabled,
		ServiceVersion: version.Get().Version,
		SamplerType:    settings.Tracing.Sampler,
		SamplerRatio:   settings.Tracing.Ratio,
	})
	if err != nil {
		return nil, runtimeFailure(err)
	}

	st, err := store.Open(ctx, storeConfig(settings))
	if err != nil {
		shutdown(ctx)
		return nil, runtimeFailure(err)
	}
	logger.G(ctx).WithField("backend", settings.Store.Backend).
		WithField("location", st.Location()).Debug("opened watch store")

	fetcher := fetch.New(fetchOptions(settings))
	engine := discovery.NewEngine(fetcher,
		discovery.WithEndpoint(settings.Discovery.Endpoint),
		discovery.WithTrustedDomains(settings.Discovery.TrustedDomains),
	)

	logger.G(ctx).WithField("endpoint", settings.Discovery.Endpoint).
		WithField("trusted_domains", len(engine.Trusted().Domains())).
		Debug("configured discovery")

	return &app{
		settings: settings,
		store:    st,
		service:  watcher.NewService(st, pricing.NewParser(fetcher), engine),
		shutdown: shutdown,
	}, nil
}

func (a *app) Close(ctx context.Context) {
	if err := a.store.Close(); err != nil {
		logger.G(ctx).WithError(err).Warn("failed to close watch store")
	}
	if err := a.shutdown(ctx); err != nil {
		logger.G(ctx).WithError(err).Warn("failed to flush traces")
	}
}

func storeConfig(s *config.Settings) store.Config {
	return store.Config{
		Backend:     s.Store.Backend,
		Path:        s.Store.Path,
		SQLitePath:  s.Store.SQLitePath,
		LockTimeout: s.Store.LockTimeout,
	}
}

func fetchOptions(s *config.Settings) fetch.Options {
	return fetch.Options{
		UserAgent:     s.Fetch.UserAgent,
		Timeout:       s.Fetch.Timeout,
		MaxBytes:      s.Fetch.MaxBytes,
		RetryAttempts: s.Fetch.RetryAttempts,
		RetryDelay:    s.Fetch.RetryDelay,
	}
}

// withApp builds the app, runs fn and closes the app again.
func withApp(ctx context.Context, v *viper.Viper, fn func(a *app) error) error {
	a, err := newApp(ctx, v)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	if err := fn(a); err != nil {
		return runtimeFailure(err)
	}
	return nil
}
