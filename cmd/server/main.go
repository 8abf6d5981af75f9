package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/tastetrail/backend/internal/auth"
	"github.com/tastetrail/backend/internal/authz"
	"github.com/tastetrail/backend/internal/cache"
	"github.com/tastetrail/backend/internal/config"
	"github.com/tastetrail/backend/internal/handlers"
	"github.com/tastetrail/backend/internal/logging"
	"github.com/tastetrail/backend/internal/media"
	"github.com/tastetrail/backend/internal/notify"
	"github.com/tastetrail/backend/internal/sentiment"
	"github.com/tastetrail/backend/internal/services"
	"github.com/tastetrail/backend/internal/store"
)

func main() {
	if err := run(); err != nil {
		logging.L().Fatal().Err(err).Msg("server exited")
	}
}

func run() error {
	configDir := os.Getenv("CONFIG_DIR")
	if configDir == "" {
		configDir = "."
	}
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logging.Init(cfg.Log)
	log := logging.Component("server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := st.Close(closeCtx); err != nil {
			log.Error().Err(err).Msg("store close failed")
		}
	}()

	var (
		appCache cache.Cache = cache.NewMemoryCache()
		bus      notify.Bus  = notify.NewLocalBus()
	)
	if cfg.Redis.Address != "" {
		client, err := cache.NewRedisClient(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer func(c *redis.Client) { _ = c.Close() }(client)
		appCache = cache.NewRedisCache(client, cfg.Cache.Prefix)
		bus = notify.NewRedisBus(client, cfg.Redis.Channel)
		log.Info().Str("addr", cfg.Redis.Address).Msg("using redis cache and notification bus")
	} else {
		log.Warn().Msg("REDIS_ADDR not set; cache and live notifications are local to this instance")
	}
	defer bus.Close()

	enforcer, err := authz.NewEnforcer()
	if err != nil {
		return fmt.Errorf("authz: %w", err)
	}

	opts := services.Options{
		Store:    st,
		Cache:    appCache,
		Bus:      bus,
		Tokens:   auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL),
		Enforcer: enforcer,
		Config:   cfg,
	}
	// Optional collaborators stay nil interfaces when unconfigured.
	if cfg.Sentiment.Endpoint != "" {
		opts.Analyzer = sentiment.NewClient(cfg.Sentiment)
	}
	if m := services.NewSendGridMailer(cfg.SendGrid.APIKey, cfg.SendGrid.FromEmail); m != nil {
		m.SupportInbox = cfg.SendGrid.SupportEmail
		opts.Mailer = m
	} else {
		log.Warn().Msg("SendGrid not configured; moderation email and support requests are disabled")
	}
	opts.Recaptcha = services.NewRecaptchaVerifier(cfg.Recaptcha.Secret)

	uploadDir, err := openMedia(ctx, cfg, &opts)
	if err != nil {
		return err
	}

	svc := services.New(opts)
	defer svc.Effects.Wait()

	if err := svc.Auth.BootstrapAdmin(ctx, cfg.Bootstrap.AdminEmail, cfg.Bootstrap.AdminPassword); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}

	hub := notify.NewHub(64)
	go func() {
		if err := hub.Run(ctx, bus); err != nil {
			log.Error().Err(err).Msg("notification hub stopped")
		}
	}()

	srv := &http.Server{
		Addr: cfg.Server.Address,
		Handler: handlers.NewRouter(handlers.RouterDeps{
			Config:    cfg,
			Services:  svc,
			Enforcer:  enforcer,
			Hub:       hub,
			UploadDir: uploadDir,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Address).Msg("Taste Trail API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	log := logging.Component("server")
	if cfg.Mongo.URI != "" {
		st, err := store.NewMongo(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, fmt.Errorf("mongo: %w", err)
		}
		log.Info().Str("database", cfg.Mongo.Database).Msg("using mongo store")
		return st, nil
	}
	if cfg.Memory.SnapshotDir != "" {
		st, err := store.OpenMemory(cfg.Memory.SnapshotDir)
		if err != nil {
			return nil, err
		}
		log.Warn().Str("dir", cfg.Memory.SnapshotDir).Msg("MONGO_URI not set; using in-memory store with snapshot")
		return st, nil
	}
	log.Warn().Msg("MONGO_URI not set; using volatile in-memory store")
	return store.NewMemory(), nil
}

// openMedia wires image storage and SafeSearch into opts. It returns the
// directory to serve under /uploads/ when images are kept locally.
func openMedia(ctx context.Context, cfg *config.Config, opts *services.Options) (string, error) {
	log := logging.Component("server")
	if cfg.Media.Bucket != "" {
		gcs, err := media.NewGCSStorage(ctx, cfg.Media.Bucket, cfg.Media.PublicBaseURL)
		if err != nil {
			return "", err
		}
		opts.MediaStorage = gcs
		if cfg.Media.SafeSearch {
			det, err := media.NewVisionDetector(ctx, cfg.Media.Bucket)
			if err != nil {
				return "", err
			}
			opts.MediaDetector = det
		}
		log.Info().Str("bucket", cfg.Media.Bucket).Bool("safe_search", cfg.Media.SafeSearch).Msg("using GCS image storage")
		return "", nil
	}
	if cfg.Media.UploadDir == "" {
		log.Warn().Msg("no image storage configured; uploads disabled")
		return "", nil
	}
	dir, err := filepath.Abs(cfg.Media.UploadDir)
	if err != nil {
		return "", err
	}
	local, err := media.NewLocalStorage(dir, cfg.Media.PublicBaseURL)
	if err != nil {
		return "", err
	}
	opts.MediaStorage = local
	if cfg.Media.SafeSearch {
		log.Warn().Msg("SafeSearch needs a GCS bucket; local uploads are not moderated")
	}
	return dir, nil
}
