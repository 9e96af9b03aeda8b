// Package app wires configuration into the running services shared by the
// web server and the operator CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"

	"ethioshop.com/app/internal/auth"
	"ethioshop.com/app/internal/config"
	"ethioshop.com/app/internal/database"
	apphttp "ethioshop.com/app/internal/http"
	"ethioshop.com/app/internal/http/middleware"
	"ethioshop.com/app/internal/mailer"
	"ethioshop.com/app/internal/modules/audit"
	"ethioshop.com/app/internal/modules/email"
	"ethioshop.com/app/internal/modules/orders"
	"ethioshop.com/app/internal/modules/payments"
	"ethioshop.com/app/internal/modules/payments/chapa"
	"ethioshop.com/app/internal/modules/payments/stripepay"
	"ethioshop.com/app/internal/modules/products"
	"ethioshop.com/app/internal/observability"
	"ethioshop.com/app/internal/storage"
)

// Models lists every table owned by the service, in creation order.
func Models() []any {
	out := []any{&products.Product{}, &audit.Log{}}
	out = append(out, orders.Models()...)
	out = append(out, payments.Models()...)
	return out
}

type App struct {
	Config   config.Config
	Logger   *slog.Logger
	DB       *gorm.DB
	Registry *prometheus.Registry
	Metrics  *observability.Metrics
	Signer   *auth.Signer
	Limiter  *middleware.RateLimiter
	Archive  storage.Storage

	Gateways    *payments.Registry
	Reconciler  *payments.Reconciler
	Payments    *payments.Service
	Coordinator *orders.Coordinator
	OrderAdmin  *orders.AdminService
	Expirer     *orders.Expirer
	Mail        *email.Service // nil when SMTP is not configured
}

// New opens the database and builds every service. Gateways whose secret key
// is not configured are left out of the registry.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := database.Open(database.Options{Driver: cfg.DBDriver, DSN: cfg.DBDSN})
	if err != nil {
		return nil, err
	}
	if cfg.DBAutoMigrate {
		if err := database.Migrate(db, logger, Models()...); err != nil {
			return nil, err
		}
	}

	archive, err := storage.FromOptions(ctx, storage.Options{
		Driver:   cfg.WebhookArchiveDriver,
		LocalDir: cfg.LocalArchiveDir,
		S3Region: cfg.S3Region,
		S3Bucket: cfg.S3Bucket,
		S3Prefix: cfg.S3Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("webhook archive: %w", err)
	}
	logger.Info("webhook archive ready", "driver", archive.Driver)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := observability.NewMetrics(reg)

	var gws []payments.Gateway
	if cfg.ChapaSecretKey != "" {
		gws = append(gws, chapa.New(chapa.Config{
			SecretKey:     cfg.ChapaSecretKey,
			WebhookSecret: cfg.ChapaWebhookSecret,
			BaseURL:       cfg.ChapaBaseURL,
			CallbackURL:   strings.TrimRight(cfg.AppURL, "/") + "/payments/chapa/webhook",
			Timeout:       cfg.GatewayTimeout,
		}))
	} else {
		logger.Warn("CHAPA_SECRET_KEY not set; chapa payments disabled")
	}
	if cfg.StripeSecretKey != "" {
		gws = append(gws, stripepay.New(stripepay.Config{
			SecretKey:     cfg.StripeSecretKey,
			WebhookSecret: cfg.StripeWebhookSecret,
		}))
	} else {
		logger.Warn("STRIPE_SECRET_KEY not set; stripe payments disabled")
	}
	gateways := payments.NewRegistry(gws...)

	var limiter *middleware.RateLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	catalog := products.NewRepo(db)
	rec := payments.NewReconciler(db, gateways, archive.Storage, logger, m)

	var mail *email.Service
	if cfg.SMTPHost != "" {
		mail = email.NewService(orders.NewRepo(db), mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:    cfg.SMTPHost,
			Port:    cfg.SMTPPort,
			User:    cfg.SMTPUser,
			Pass:    cfg.SMTPPass,
			TLSMode: cfg.SMTPTLSMode,
		}), email.Config{From: cfg.MailFrom, FromName: cfg.MailFromName, AppURL: cfg.AppURL}, logger)
		rec.OnOrderConfirmed(mail.OrderConfirmed)
	}

	return &App{
		Config:      cfg,
		Logger:      logger,
		DB:          db,
		Registry:    reg,
		Metrics:     m,
		Signer:      auth.NewSigner(cfg.JWTSecret, auth.Issuer),
		Limiter:     limiter,
		Archive:     archive.Storage,
		Gateways:    gateways,
		Reconciler:  rec,
		Payments:    payments.NewService(db, gateways, rec, payments.ServiceConfig{AppURL: cfg.AppURL, Logger: logger, Metrics: m}),
		Coordinator: orders.NewCoordinator(db, catalog, logger, m),
		OrderAdmin:  orders.NewAdminService(db, logger),
		Expirer:     orders.NewExpirer(db, payments.NewRepo(db), cfg.OrderPendingTTL, logger, m),
		Mail:        mail,
	}, nil
}

func (a *App) Router() *gin.Engine {
	return apphttp.NewRouter(apphttp.Deps{
		Logger:      a.Logger,
		DB:          a.DB,
		Signer:      a.Signer,
		Metrics:     a.Metrics,
		Gatherer:    a.Registry,
		Limiter:     a.Limiter,
		Coordinator: a.Coordinator,
		OrderAdmin:  a.OrderAdmin,
		Payments:    a.Payments,
		Reconciler:  a.Reconciler,
	})
}

// RunBackground starts the expiry sweeper and, when rate limiting is on, the
// limiter janitor. Both stop when ctx is cancelled.
func (a *App) RunBackground(ctx context.Context) {
	go a.Expirer.Run(ctx, a.Config.OrderSweepInterval)
	if a.Limiter == nil {
		return
	}
	go func() {
		t := time.NewTicker(time.Minute)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				a.Limiter.Sweep()
			}
		}
	}()
}

// Close waits for queued confirmation mail, then closes the database.
func (a *App) Close() error {
	if a.Mail != nil {
		a.Mail.Wait()
	}
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
