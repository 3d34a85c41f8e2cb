package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stripe/stripe-go/v76/client"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/dontidros/natours-project/config"
	"github.com/dontidros/natours-project/events"
	"github.com/dontidros/natours-project/handlers"
	"github.com/dontidros/natours-project/logger"
	"github.com/dontidros/natours-project/mailer"
	"github.com/dontidros/natours-project/middleware"
	"github.com/dontidros/natours-project/models"
	"github.com/dontidros/natours-project/services"
	"github.com/dontidros/natours-project/views"
)

var errCrashed = stderrors.New("server stopped after an unexpected panic")

func main() {
	importData := flag.Bool("import", false, "import the seed data and exit")
	deleteData := flag.Bool("delete", false, "delete all tours, users and reviews and exit")
	dataDir := flag.String("data", "dev-data", "directory holding tours.json, users.json and reviews.json")
	flag.Parse()

	cfg := config.Load()
	if err := run(cfg, *importData, *deleteData, *dataDir); err != nil {
		logger.Error("natours stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, importData, deleteData bool, dataDir string) error {
	ctx := context.Background()

	db, disconnect, err := connectMongo(ctx, cfg.Mongo)
	if err != nil {
		return err
	}
	defer disconnect()

	catalog := services.NewCatalog(
		services.NewMongoStore[models.Tour](db.Collection("tours")),
		services.NewMongoStore[models.User](db.Collection("users")),
		services.NewMongoStore[models.Review](db.Collection("reviews")),
		services.NewMongoStore[models.Booking](db.Collection("bookings")),
		services.NewMongoRatingSource(db.Collection("reviews")),
	)

	if importData || deleteData {
		seeder := services.NewSeeder(catalog, dataDir)
		if deleteData {
			if err := seeder.Delete(ctx); err != nil {
				return err
			}
			logger.Info("Data successfully deleted!")
		}
		if importData {
			if err := seeder.Import(ctx); err != nil {
				return err
			}
			logger.Info("Data successfully loaded!")
		}
		return nil
	}

	if err := services.EnsureIndexes(ctx, db); err != nil {
		return fmt.Errorf("creating indexes: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, rate limiting fails open", "addr", cfg.Redis.Addr, "error", err)
	}

	publisher, err := newPublisher(cfg.NATS)
	if err != nil {
		return err
	}
	defer publisher.Close()

	var mail mailer.Service = mailer.NewDevMailer()
	if !cfg.Email.DevMode {
		mail = mailer.NewMailerSend(cfg.Email.MailerSendKey, cfg.Email.FromName, cfg.Email.FromEmail)
	}

	renderer, err := views.New()
	if err != nil {
		return err
	}
	renderer.MapboxToken = cfg.MapboxToken
	fatal := make(chan any, 1)
	eh := middleware.NewErrorHandler(cfg.Development(), renderer, fatal)

	stripeAPI := client.New(cfg.Stripe.SecretKey, nil)
	handler := handlers.NewRouter(handlers.Deps{
		Config:   cfg,
		Catalog:  catalog,
		Auth:     services.NewAuthService(catalog.Users, cfg.Auth, mail, publisher),
		Users:    services.NewUserService(catalog),
		Tours:    services.NewTourService(catalog.Tours, services.CollectionAggregate(db.Collection("tours"))),
		Bookings: services.NewBookingService(catalog, stripeAPI.CheckoutSessions, cfg.Stripe.WebhookSecret, publisher),
		Images:   services.NewImageService(filepath.Join(cfg.PublicDir, "img")),
		Views:    renderer,
		Errors:   eh,
		Limiter: middleware.NewRateLimiter(rdb, middleware.RateLimitConfig{
			Requests: cfg.RateLimit.Requests,
			Window:   cfg.RateLimit.Window,
			KeyFunc:  middleware.ClientIPKey,
			SkipFunc: middleware.SkipNonAPI,
		}, eh),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("App running", "port", cfg.Server.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var exitErr error
	select {
	case sig := <-sigChan:
		logger.Info("Signal received, shutting down gracefully", "signal", sig.String())
	case rec := <-fatal:
		logger.Error("Unexpected panic, shutting down", "panic", rec)
		exitErr = errCrashed
	case err := <-serveErr:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
	logger.Info("Process terminated")
	return exitErr
}

func connectMongo(ctx context.Context, cfg config.MongoConfig) (*mongo.Database, func(), error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	mc, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to mongodb: %w", err)
	}
	if err := mc.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = mc.Disconnect(ctx)
		return nil, nil, fmt.Errorf("pinging mongodb: %w", err)
	}
	logger.Info("DB connection successful", "database", cfg.Database)
	disconnect := func() {
		if err := mc.Disconnect(context.Background()); err != nil {
			logger.Error("mongodb disconnect failed", "error", err)
		}
	}
	return mc.Database(cfg.Database), disconnect, nil
}

// newPublisher connects to NATS when a URL is configured and otherwise keeps
// events in memory.
func newPublisher(cfg config.NATSConfig) (events.Publisher, error) {
	if cfg.URL == "" {
		return events.NewRecorder(), nil
	}
	pub, err := events.NewNATSPublisher(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}
	return pub, nil
}
