// Command media-worker screens uploaded review images. Eventarc delivers a
// Cloud Storage finalize event for every new object; pending uploads are run
// through SafeSearch and then promoted or deleted.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tastetrail/backend/internal/authz"
	"github.com/tastetrail/backend/internal/cache"
	"github.com/tastetrail/backend/internal/config"
	"github.com/tastetrail/backend/internal/logging"
	"github.com/tastetrail/backend/internal/media"
	"github.com/tastetrail/backend/internal/services"
	"github.com/tastetrail/backend/internal/store"
)

func main() {
	if err := run(); err != nil {
		logging.L().Fatal().Err(err).Msg("media worker exited")
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
	if cfg.Log.ServiceName == "" {
		cfg.Log.ServiceName = "tastetrail-media-worker"
	}
	logging.Init(cfg.Log)
	log := logging.Component("media-worker")

	if cfg.Media.Bucket == "" {
		return errors.New("media.bucket (GCS_BUCKET) is required")
	}
	if cfg.Mongo.URI == "" {
		return errors.New("mongo.uri (MONGO_URI) is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.NewMongo(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return fmt.Errorf("mongo: %w", err)
	}
	defer func() { _ = st.Close(context.Background()) }()

	gcs, err := media.NewGCSStorage(ctx, cfg.Media.Bucket, cfg.Media.PublicBaseURL)
	if err != nil {
		return err
	}
	defer gcs.Close()
	det, err := media.NewVisionDetector(ctx, cfg.Media.Bucket)
	if err != nil {
		return err
	}
	enforcer, err := authz.NewEnforcer()
	if err != nil {
		return err
	}

	// Only the moderation side of the service graph is used here.
	svc := services.New(services.Options{
		Store:         st,
		Cache:         cache.NewMemoryCache(),
		Enforcer:      enforcer,
		Config:        cfg,
		MediaStorage:  gcs,
		MediaDetector: det,
	})
	defer svc.Effects.Wait()

	w := &worker{
		bucket:    cfg.Media.Bucket,
		storage:   gcs,
		moderator: svc.Media,
		reviews:   st.Reviews(),
		timeout:   60 * time.Second,
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           w.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("bucket", cfg.Media.Bucket).Msg("media worker listening")
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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
