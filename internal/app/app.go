// Package app wires the storefront client components from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/fjod/storefront/internal/admin"
	"github.com/fjod/storefront/internal/api"
	"github.com/fjod/storefront/internal/cart"
	"github.com/fjod/storefront/internal/catalog"
	"github.com/fjod/storefront/internal/checkout"
	"github.com/fjod/storefront/internal/config"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/events"
	"github.com/fjod/storefront/internal/logger"
	"github.com/fjod/storefront/internal/metrics"
	"github.com/fjod/storefront/internal/query"
	"github.com/fjod/storefront/internal/session"
	"github.com/fjod/storefront/internal/storage"
	"github.com/fjod/storefront/internal/widget"
	"github.com/prometheus/client_golang/prometheus"
)

const shutdownTimeout = 5 * time.Second

type Options struct {
	// LogOutput defaults to os.Stderr.
	LogOutput io.Writer
	// Launcher shows the payment page. Defaults to logging its URL.
	Launcher widget.Launcher
	// Storage replaces the store selected by the config.
	Storage storage.Store
	// Publisher replaces the publisher selected by the config.
	Publisher events.Publisher
	// HTTPClient replaces the API client's transport.
	HTTPClient *http.Client
}

type App struct {
	Config   *config.Config
	Log      *slog.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Collector
	Storage  storage.Store
	API      *api.Client
	Session  *session.Store
	Cart     *cart.Store
	Query    *query.Cache
	Catalog  *catalog.Service
	Admin    *admin.Service
	Checkout *checkout.Orchestrator
	Widget   *widget.CallbackServer

	publisher  events.Publisher
	metricsSrv *http.Server
	widgetOnce sync.Once
	widgetErr  error
	closeOnce  sync.Once
}

// New builds every component and loads the persisted cart. It does not touch the network;
// call Restore to revalidate a persisted session.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	out := opts.LogOutput
	if out == nil {
		out = os.Stderr
	}
	log := logger.New(out, cfg.LogFormat, cfg.LogLevel)

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	st := opts.Storage
	if st == nil {
		var err error
		st, err = storage.Open(ctx, storage.Config{
			Driver:        cfg.Storage.Driver,
			Dir:           cfg.Storage.Dir,
			SQLitePath:    cfg.Storage.SQLitePath,
			RedisAddr:     cfg.Storage.RedisAddr,
			RedisPassword: cfg.Storage.RedisPassword,
			RedisDB:       cfg.Storage.RedisDB,
			RedisPrefix:   cfg.Storage.RedisPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open storage: %w", err)
		}
	}

	client := api.New(api.Options{
		BaseURL:            cfg.API.BaseURL,
		Timeout:            cfg.API.RequestTimeout,
		RateLimit:          cfg.API.RateLimit,
		RateBurst:          cfg.API.RateBurst,
		BreakerMaxFailures: cfg.API.BreakerMaxFailures,
		BreakerTimeout:     cfg.API.BreakerTimeout,
		HTTPClient:         opts.HTTPClient,
		Logger:             log,
		Metrics:            collector,
	})

	sess := session.NewStore(client, client, st, log, collector)
	client.OnUnauthenticated(sess.Invalidate)

	cache := query.New(query.Options{
		StaleTime: cfg.Query.StaleTime,
		CacheTime: cfg.Query.CacheTime,
		Logger:    log,
		Metrics:   collector,
	})

	cartStore := cart.NewStore(st, log)
	if err := cartStore.Load(ctx); err != nil {
		cache.Close()
		_ = st.Close()
		return nil, err
	}

	publisher := opts.Publisher
	if publisher == nil {
		if len(cfg.Kafka.Brokers) > 0 {
			publisher = events.NewKafkaPublisher(cfg.Kafka.Topic, log, cfg.Kafka.Brokers...)
			log.Info("publishing checkout events to kafka", slog.String("topic", cfg.Kafka.Topic))
		} else {
			publisher = events.NewLogPublisher(log)
		}
	}

	launcher := opts.Launcher
	if launcher == nil {
		launcher = widget.LauncherFunc(func(ctx context.Context, url string) error {
			log.InfoContext(ctx, "open the payment page to continue", slog.String("url", url))
			return nil
		})
	}
	payments := widget.NewCallbackServer(launcher, log)

	a := &App{
		Config:   cfg,
		Log:      log,
		Registry: reg,
		Metrics:  collector,
		Storage:  st,
		API:      client,
		Session:  sess,
		Cart:     cartStore,
		Query:    cache,
		Catalog:  catalog.NewService(client, cartStore, cache),
		Admin:    admin.NewService(client, sess, cache),
		Widget:   payments,
		Checkout: checkout.New(checkout.Deps{
			Gateway:   client,
			Cart:      cartStore,
			Identity:  sess,
			Widget:    payments,
			Publisher: publisher,
			Metrics:   collector,
			Logger:    log,
		}, checkout.Config{
			MerchantName:   cfg.Payment.MerchantName,
			Description:    cfg.Payment.Description,
			ThemeColor:     cfg.Payment.ThemeColor,
			PaymentTimeout: cfg.Payment.Timeout,
		}),
		publisher: publisher,
	}

	// cached reads scoped to the signed-in user must not outlive it
	sess.OnIdentityChange(func() {
		a.Catalog.InvalidateOrders()
		a.Admin.InvalidateAll()
	})

	if cfg.MetricsAddr != "" {
		a.serveMetrics(cfg.MetricsAddr)
	}
	return a, nil
}

// Restore revalidates the persisted session. A rejected token leaves the app signed out,
// which is not an error for the caller.
func (a *App) Restore(ctx context.Context) (*domain.User, error) {
	user, err := a.Session.Restore(ctx)
	if err != nil {
		if errors.Is(err, session.ErrTokenExpired) || errors.Is(err, session.ErrInvalidSession) {
			a.Log.InfoContext(ctx, "persisted session is no longer valid", slog.Any("error", err))
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// PlaceOrder starts the payment callback server on first use and runs one checkout.
func (a *App) PlaceOrder(ctx context.Context, address domain.ShippingAddress) (*domain.Receipt, error) {
	a.widgetOnce.Do(func() {
		a.widgetErr = a.Widget.Start(a.Config.Payment.CallbackAddr)
	})
	if a.widgetErr != nil {
		return nil, fmt.Errorf("failed to start payment callback server: %w", a.widgetErr)
	}
	receipt, err := a.Checkout.Checkout(ctx, address)
	if err != nil {
		return nil, err
	}
	a.Catalog.InvalidateOrders()
	return receipt, nil
}

func (a *App) serveMetrics(addr string) {
	a.metricsSrv = &http.Server{
		Addr:         addr,
		Handler:      metrics.Router(a.Registry),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		a.Log.Info("metrics server starting", slog.String("addr", addr))
		if err := a.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Error("metrics server error", slog.Any("error", err))
		}
	}()
}

// Close stops the servers, flushes pending events and closes storage.
func (a *App) Close() error {
	var errs []error
	a.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if a.metricsSrv != nil {
			if err := a.metricsSrv.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("metrics server: %w", err))
			}
		}
		if err := a.Widget.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("payment callback server: %w", err))
		}
		if c, ok := a.publisher.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("event publisher: %w", err))
			}
		}
		a.Query.Close()
		if err := a.Storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	})
	return errors.Join(errs...)
}
