// Command server runs the waitlist intake API.
//
//	@title			Waitlist API
//	@version		1.0
//	@description	Waitlist sign-up intake with bot deception, rate limiting, and disposable-domain filtering.
//	@BasePath		/
package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-waitlist-backend/internal/config"
	httpapi "github.com/tbourn/go-waitlist-backend/internal/http"
	"github.com/tbourn/go-waitlist-backend/internal/observability"
	"github.com/tbourn/go-waitlist-backend/internal/services"
	"github.com/tbourn/go-waitlist-backend/internal/sysutil"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = ""

func main() {
	// .env is optional; real deployments use the environment directly.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg("could not read .env")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ver := sysutil.FirstNonEmpty(version, os.Getenv("APP_VERSION"), "dev")
	sysutil.InitLogger(sysutil.LogOptions{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		Service: cfg.OTEL.ServiceName,
		Version: ver,
	})
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, ver); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context, cfg config.Config, ver string) error {
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, ver)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	st, err := buildStore(ctx, cfg.Store, cfg.Intake.PersistTimeout)
	if err != nil {
		return err
	}
	defer st.Close()

	limiter, err := buildLimiter(ctx, cfg.Intake, st.DB)
	if err != nil {
		return err
	}

	denylist, err := loadDenylist(cfg.Intake.DisposableDomainsFile)
	if err != nil {
		return err
	}

	intake := &services.IntakeService{
		Store:          st.Store,
		Limiter:        limiter,
		Denylist:       denylist,
		Source:         cfg.Intake.Source,
		MinFillTime:    cfg.Intake.MinFillTime,
		PersistTimeout: cfg.Intake.PersistTimeout,
	}

	r := gin.New()
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return err
	}
	httpapi.RegisterRoutes(r, httpapi.Deps{Intake: intake, Store: st.Pinger}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("store", cfg.Store.Driver).
			Str("rate_backend", cfg.Intake.RateBackend).
			Str("base_path", cfg.APIBasePath).
			Msg("listening")
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
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}
