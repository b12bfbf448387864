package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/mikeyg42/plantwatch/internal/api"
	"github.com/mikeyg42/plantwatch/internal/appctl"
	"github.com/mikeyg42/plantwatch/internal/capture"
	"github.com/mikeyg42/plantwatch/internal/classify"
	"github.com/mikeyg42/plantwatch/internal/config"
	"github.com/mikeyg42/plantwatch/internal/events"
	"github.com/mikeyg42/plantwatch/internal/farms"
	"github.com/mikeyg42/plantwatch/internal/metrics"
	"github.com/mikeyg42/plantwatch/internal/monitor"
	"github.com/mikeyg42/plantwatch/internal/notification"
	"github.com/mikeyg42/plantwatch/internal/pipeline"
	"github.com/mikeyg42/plantwatch/internal/readiness"
	"github.com/mikeyg42/plantwatch/internal/reconcile"
	"github.com/mikeyg42/plantwatch/internal/schedule"
	"github.com/mikeyg42/plantwatch/internal/screen"
	"github.com/mikeyg42/plantwatch/internal/storage"
)

// Application struct that holds all components
type Application struct {
	config   *config.Config
	logger   *zap.Logger
	hub      *events.Hub
	metrics  *metrics.Metrics
	viewer   *appctl.Controller
	monitor  *monitor.Service
	server   *api.Server
	mqtt     *events.MQTTSink
	postgres *storage.PostgresStore
	images   *storage.ImageStore

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewApplication wires every component. Nothing runs until Start.
func NewApplication(ctx context.Context, cfg *config.Config) (*Application, error) {
	app := &Application{
		config:  cfg,
		logger:  zap.L().Named("app"),
		metrics: metrics.New(),
	}
	app.hub = events.NewHub(zap.L().Named("events"))

	table := farms.Default()
	if cfg.Farms.File != "" {
		t, err := farms.LoadFile(cfg.Farms.File)
		if err != nil {
			return nil, err
		}
		table = t
	}

	probe := screen.NewRobotProbe()
	poller := readiness.New(probe, readiness.WithInterval(cfg.Capture.PollInterval))
	app.viewer = appctl.New(cfg.Viewer.Path, cfg.Viewer.ProcessName, cfg.Viewer.Args...)
	orchestrator := capture.NewOrchestrator(probe, poller, app.viewer, app.hub, capture.Config{
		LoginTimeout:    cfg.Capture.LoginTimeout,
		CameraTimeout:   cfg.Capture.CameraTimeout,
		VideoTimeout:    cfg.Capture.VideoTimeout,
		ScrollDownPause: cfg.Capture.ScrollDownPause,
		ScrollUpPause:   cfg.Capture.ScrollUpPause,
	})

	mailer, err := newMailer(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create mailer: %w", err)
	}

	proc := pipeline.New(
		reconcile.New(cfg.Viewer.CaptureRoot, table),
		classify.NewHTTPClassifier(cfg.Classifier.BaseURL, cfg.Classifier.Timeout),
		mailer,
		app.hub,
		pipeline.Config{Threshold: cfg.Classifier.Threshold, Recipients: cfg.Mail.Recipients},
	).WithMetrics(app.metrics)

	if archive, err := app.openStorage(); err != nil {
		app.closeStorage()
		return nil, err
	} else if archive != nil {
		proc.WithArchive(archive)
	}

	app.monitor = monitor.NewService(schedule.NewRegistry(zap.L().Named("schedule")), orchestrator, proc, app.hub).
		WithInstallChecker(app.viewer).
		WithMetrics(app.metrics)

	if cfg.MQTT.Enabled {
		app.mqtt = events.NewMQTTSink(events.MQTTConfig{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			QoS:         byte(cfg.MQTT.QoS),
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
		})
	}

	return app, nil
}

// newMailer returns a nil Mailer when alerts are disabled.
func newMailer(ctx context.Context, cfg *config.Config) (notification.Mailer, error) {
	retry := notification.RetryConfig{
		MaxRetries:      cfg.Mail.MaxRetries,
		InitialInterval: cfg.Mail.RetryInitial,
		MaxInterval:     cfg.Mail.RetryMax,
	}

	switch cfg.Mail.Method {
	case "endpoint":
		return notification.NewEndpointMailer(cfg.Mail.Endpoint.BaseURL, cfg.Mail.Endpoint.Timeout, retry), nil
	case "smtp":
		s := cfg.Mail.SMTP
		return notification.NewSMTPMailer(notification.SMTPConfig{
			Host:       s.Host,
			Port:       s.Port,
			Username:   s.Username,
			Password:   s.Password,
			From:       s.From,
			FromName:   s.FromName,
			SystemName: cfg.Mail.SystemName,
		}, retry), nil
	case "gmail":
		m, err := notification.NewGmailMailer(ctx, gmailConfig(cfg), retry)
		if err != nil {
			return nil, err
		}
		return m, nil
	case "disabled", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown mail method %q", cfg.Mail.Method)
	}
}

func gmailConfig(cfg *config.Config) notification.GmailConfig {
	g := cfg.Mail.Gmail
	return notification.GmailConfig{
		ClientID:       g.ClientID,
		ClientSecret:   g.ClientSecret,
		RedirectURL:    g.RedirectURL,
		TokenStorePath: g.TokenStorePath,
		MasterKey:      cfg.MasterKey,
		From:           g.From,
		SystemName:     cfg.Mail.SystemName,
	}
}

// openStorage connects the configured archive backends. It returns a nil
// Archive when neither is configured.
func (app *Application) openStorage() (pipeline.Archive, error) {
	sc := app.config.Storage
	var (
		runs   storage.RunStore
		images storage.ImageUploader
	)

	if sc.Postgres.Host != "" {
		pg, err := storage.NewPostgresStore(storage.PostgresConfig{
			Host:            sc.Postgres.Host,
			Port:            sc.Postgres.Port,
			Database:        sc.Postgres.Database,
			Username:        sc.Postgres.Username,
			Password:        sc.Postgres.Password,
			SSLMode:         sc.Postgres.SSLMode,
			MaxConnections:  sc.Postgres.MaxConnections,
			ConnMaxLifetime: sc.Postgres.ConnMaxLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open run archive: %w", err)
		}
		app.postgres = pg
		runs = pg
	}

	if sc.MinIO.Endpoint != "" {
		store, err := storage.NewImageStore(storage.MinIOConfig{
			Endpoint:        sc.MinIO.Endpoint,
			AccessKeyID:     sc.MinIO.AccessKeyID,
			SecretAccessKey: sc.MinIO.SecretAccessKey,
			UseSSL:          sc.MinIO.UseSSL,
			Bucket:          sc.MinIO.Bucket,
			Region:          sc.MinIO.Region,
			ConnectTimeout:  sc.MinIO.ConnectTimeout,
			MaxRetries:      sc.MinIO.MaxRetries,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open image archive: %w", err)
		}
		app.images = store
		images = store
	}

	if runs == nil && images == nil {
		return nil, nil
	}
	return storage.NewArchiver(runs, images), nil
}

func (app *Application) closeStorage() {
	if app.postgres != nil {
		if err := app.postgres.Close(); err != nil {
			app.logger.Warn("Failed to close run archive", zap.Error(err))
		}
		app.postgres = nil
	}
}

// Start begins event forwarding and, when serve is true, the API server and
// the configured schedule.
func (app *Application) Start(ctx context.Context, serve bool) error {
	ctx, app.cancel = context.WithCancel(ctx)

	app.forward(ctx, "log", events.NewLogSink(zap.L().Named("events")))

	if app.mqtt != nil {
		if err := app.mqtt.Connect(ctx); err != nil {
			app.logger.Warn("MQTT unavailable; events stay local", zap.Error(err))
		} else {
			app.forward(ctx, "mqtt", app.mqtt)
		}
	}

	// A missing viewer is reported but does not stop the service.
	_ = app.monitor.CheckInstallation()

	if !serve {
		return nil
	}

	app.server = api.NewServer(api.Config{
		Addr:           app.config.API.ListenAddr,
		AllowedOrigins: app.config.API.AllowedOrigins,
		RateLimit:      app.config.API.RateLimit,
		RateBurst:      app.config.API.RateBurst,
	}, app.monitor, app.hub, app.metrics)
	if app.postgres != nil {
		app.server.WithHealthCheck("postgres", app.postgres.HealthCheck)
	}
	if app.images != nil {
		app.server.WithHealthCheck("minio", app.images.HealthCheck)
	}
	app.server.StartInBackground()

	if app.config.Monitor.AutoStart {
		if !app.monitor.Start(ctx, app.config.Monitor.Triggers) {
			return errors.New("failed to start monitoring with the configured triggers")
		}
	}
	return nil
}

func (app *Application) forward(ctx context.Context, name string, sink events.Sink) {
	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		app.hub.Forward(ctx, name, sink)
	}()
}

// Cleanup stops everything Start began, in reverse order.
func (app *Application) Cleanup(ctx context.Context) {
	if app.server != nil {
		if err := app.server.Shutdown(ctx); err != nil {
			app.logger.Warn("API shutdown", zap.Error(err))
		}
	}
	if app.monitor != nil {
		if err := app.monitor.Close(ctx); err != nil {
			app.logger.Warn("Capture run did not finish before shutdown", zap.Error(err))
		}
	}
	if app.cancel != nil {
		app.cancel()
	}
	app.hub.Close()
	app.wg.Wait()
	if app.mqtt != nil {
		app.mqtt.Disconnect()
	}
	app.closeStorage()
}
