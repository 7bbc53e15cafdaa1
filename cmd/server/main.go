package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/vinylverse/storefront/internal/catalog"
	"github.com/vinylverse/storefront/internal/config"
	"github.com/vinylverse/storefront/internal/database"
	"github.com/vinylverse/storefront/internal/handler"
	"github.com/vinylverse/storefront/internal/identity"
	"github.com/vinylverse/storefront/internal/mail"
	"github.com/vinylverse/storefront/internal/observability"
	"github.com/vinylverse/storefront/internal/payment"
	"github.com/vinylverse/storefront/internal/queue"
	"github.com/vinylverse/storefront/internal/repository"
	"github.com/vinylverse/storefront/internal/router"
	"github.com/vinylverse/storefront/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := observability.NewLogger(cfg.Env)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return err
	}
	defer db.Close()

	migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = database.Migrate(migrateCtx, db)
	cancel()
	if err != nil {
		return err
	}

	rdb := config.NewRedisClient(logger)
	if rdb != nil {
		defer rdb.Close()
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	listings := repository.NewListingRepo(db)
	carts := repository.NewCartRepo(db)
	orders := repository.NewOrderRepo(db)

	var sender mail.Sender = mail.LogSender{Log: logger}
	if cfg.SendGridAPIKey != "" {
		sender = mail.NewSendGridSender(cfg.SendGridAPIKey, cfg.EmailFrom, "", logger)
	}

	var notifier service.Notifier = service.MailNotifier{Sender: sender}
	if cfg.QueueEnabled {
		notifier = service.QueueNotifier{Publisher: queue.NewPublisher(cfg.RabbitURL, logger)}
		consumer := queue.NewConsumer(cfg.RabbitURL, service.MailHandler(service.MailNotifier{Sender: sender}, logger), logger)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("order mail consumer stopped", zap.Error(err))
			}
		}()
	}

	var provider payment.Provider
	if cfg.PaymentsEnabled() {
		p, err := payment.NewStripeProvider(payment.StripeConfig{
			APIKey:        cfg.StripeSecretKey,
			WebhookSecret: cfg.StripeWebhookSecret,
			Logger:        logger,
		})
		if err != nil {
			return err
		}
		provider = p
	} else {
		logger.Warn("no payment provider configured; checkout places pending orders directly")
	}

	var google identity.Verifier
	if cfg.GoogleClientID != "" {
		google = identity.NewGoogleVerifier(cfg.GoogleClientID)
	}

	var discogs handler.BarcodeLookup
	if cfg.DiscogsToken != "" {
		discogs = catalog.NewDiscogsClient(cfg.DiscogsToken, "")
	}

	accounts := service.NewAccountService(users, tokens, google, service.AuthConfig{
		JWTSecret:      cfg.JWTSecret,
		AccessTTLMin:   cfg.AccessTTLMin,
		RefreshTTLDays: cfg.RefreshTTLDays,
		BcryptCost:     cfg.BcryptCost,
	}, logger)
	cartSvc := service.NewCartService(listings, carts, logger)
	checkout := service.NewCheckoutService(carts, orders, users, provider, notifier, service.CheckoutConfig{
		PublicURL:         cfg.PublicURL,
		Currency:          cfg.Currency,
		ShippingCountries: []string{"US"},
	}, logger)
	contact := service.NewContactService(sender, cfg.SupportEmail, logger)

	e := router.New(router.Deps{
		Log:         logger,
		DB:          db,
		Redis:       rdb,
		JWTSecret:   cfg.JWTSecret,
		CORSOrigins: cfg.CORSOrigins,
		Cache:       config.LoadCacheConfig(),
		RateLimit:   config.LoadRateLimitConfig(),
		Auth:        handler.NewAuthHandler(accounts),
		Listings:    handler.NewListingHandler(listings, discogs),
		Admin:       handler.NewAdminHandler(listings, orders, accounts),
		Carts:       handler.NewCartHandler(cartSvc),
		Checkout:    handler.NewCheckoutHandler(checkout),
		Contact:     handler.NewContactHandler(contact),
	})

	addr := ":" + cfg.Port
	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env),
			zap.Bool("payments", provider != nil), zap.Bool("queue", cfg.QueueEnabled))
		errc <- e.Start(addr)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
