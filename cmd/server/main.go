// Command docshare-server starts the docshare HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/docshare/internal/blob"
	"github.com/and161185/docshare/internal/blob/local"
	"github.com/and161185/docshare/internal/blob/s3store"
	"github.com/and161185/docshare/internal/config"
	"github.com/and161185/docshare/internal/crypto"
	"github.com/and161185/docshare/internal/errs"
	"github.com/and161185/docshare/internal/migrate"
	"github.com/and161185/docshare/internal/repository"
	"github.com/and161185/docshare/internal/repository/memory"
	"github.com/and161185/docshare/internal/repository/postgres"
	httpserver "github.com/and161185/docshare/internal/server/http"
	"github.com/and161185/docshare/internal/service"
	"github.com/and161185/docshare/internal/token"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

type stores struct {
	users  repository.UserRepository
	files  repository.FileRepository
	grants repository.GrantRepository
	close  func()
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, _ := zap.NewProduction()
	if cfg.Dev {
		logger, _ = zap.NewDevelopment()
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage.Driver),
		zap.Bool("postgres", cfg.DSN != ""),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	blobs, err := openBlobs(ctx, cfg)
	if err != nil {
		return err
	}

	key := []byte(cfg.JWTKey)
	if len(key) == 0 {
		if key, err = token.GenerateKey(); err != nil {
			return err
		}
		logger.Warn("no jwt key configured; using an ephemeral key, tokens will not survive a restart")
	}
	tokens, err := token.NewService(key)
	if err != nil {
		return err
	}
	hasher, err := crypto.NewHasher(cfg.HashScheme)
	if err != nil {
		return err
	}

	authSvc, err := service.NewAuthService(st.users, hasher, tokens, cfg.AccessTTL)
	if err != nil {
		return err
	}
	fileSvc := service.NewFileService(st.files, st.grants, blobs,
		service.WithGrantTTL(cfg.GrantTTL),
		service.WithSingleUse(cfg.GrantSingleUse),
		service.WithLogger(logger.Named("files")),
	)

	if err := provisionUsers(ctx, cfg, authSvc, logger); err != nil {
		return err
	}

	go fileSvc.RunGrantPurge(ctx, cfg.GrantPurgeInterval)

	api := httpserver.New(authSvc, fileSvc, logger.Named("http"), httpserver.WithMaxUploadBytes(cfg.MaxUploadBytes))
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	// Wait for stop
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (stores, error) {
	if cfg.DSN == "" {
		logger.Warn("no dsn configured; using in-memory stores")
		return stores{
			users:  memory.NewUserRepo(),
			files:  memory.NewFileRepo(),
			grants: memory.NewGrantRepo(),
			close:  func() {},
		}, nil
	}

	if err := migrate.Up(ctx, cfg.DSN, logger.Named("migrate")); err != nil {
		return stores{}, err
	}
	db, err := postgres.New(ctx, cfg.DSN)
	if err != nil {
		return stores{}, fmt.Errorf("postgres: %w", err)
	}
	return stores{
		users:  postgres.NewUserRepo(db),
		files:  postgres.NewFileRepo(db),
		grants: postgres.NewGrantRepo(db),
		close:  db.Close,
	}, nil
}

func openBlobs(ctx context.Context, cfg *config.Config) (blob.Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverS3:
		return s3store.New(ctx, cfg.Storage.S3)
	default:
		return local.New(cfg.Storage.Dir)
	}
}

// provisionUsers creates configured accounts. Accounts that already exist are
// left untouched so restarts against a persistent store are idempotent.
func provisionUsers(ctx context.Context, cfg *config.Config, auth service.AuthService, logger *zap.Logger) error {
	var entries []config.UserEntry
	if cfg.Demo {
		entries = append(entries, config.DemoUsers()...)
	}
	if cfg.UsersFile != "" {
		fromFile, err := config.LoadUsers(cfg.UsersFile)
		if err != nil {
			return err
		}
		entries = append(entries, fromFile...)
	}

	for _, e := range entries {
		id, err := e.Identity()
		if err != nil {
			return err
		}
		if e.PasswordHash != "" {
			err = auth.RegisterHashed(ctx, id, e.PasswordHash)
		} else {
			err = auth.Register(ctx, id, e.Password)
		}
		switch {
		case errors.Is(err, errs.ErrAlreadyExists):
			logger.Debug("user exists", zap.String("username", id.Username))
		case err != nil:
			return fmt.Errorf("provision %q: %w", id.Username, err)
		default:
			logger.Info("user provisioned", zap.String("username", id.Username), zap.String("role", string(id.Role)))
		}
	}
	if len(entries) == 0 {
		logger.Warn("no users provisioned; pass -demo or -users")
	}
	return nil
}
