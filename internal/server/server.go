// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/oliverandrich/certissuer/internal/config"
	"codeberg.org/oliverandrich/certissuer/internal/database"
	"codeberg.org/oliverandrich/certissuer/internal/handlers"
	"codeberg.org/oliverandrich/certissuer/internal/metrics"
	"codeberg.org/oliverandrich/certissuer/internal/repository"
	"codeberg.org/oliverandrich/certissuer/internal/services/account"
	"codeberg.org/oliverandrich/certissuer/internal/services/email"
	"codeberg.org/oliverandrich/certissuer/internal/services/issuance"
	"codeberg.org/oliverandrich/certissuer/internal/services/password"
	"codeberg.org/oliverandrich/certissuer/internal/services/secret"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"
	"github.com/vinovest/sqlx"
)

const shutdownTimeout = 10 * time.Second

// App bundles the services behind the HTTP API.
type App struct {
	Repo     *repository.Repository
	Accounts *account.Manager
	Issuance *issuance.Manager
	Registry *prometheus.Registry
}

// NewApp wires the services on top of an open database.
func NewApp(db *sqlx.DB, cfg *config.Config, notifier account.Notifier) *App {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	repo := repository.New(db)

	return &App{
		Repo: repo,
		Accounts: account.NewManager(repo, secret.NewSource(), notifier, password.NewHasher(cfg.Auth.BcryptCost), account.Options{
			StoreTimeout: cfg.Database.Timeout,
			SendTimeout:  cfg.Auth.SendTimeout,
			Metrics:      m,
		}),
		Issuance: issuance.NewManager(repo, issuance.Options{
			StoreTimeout: cfg.Database.Timeout,
			Metrics:      m,
		}),
		Registry: reg,
	}
}

// NewNotifier returns an SMTP sender, or a log-only sender when SMTP is
// not configured.
func NewNotifier(cfg *config.SMTPConfig) (account.Notifier, error) {
	if !cfg.Enabled() {
		slog.Warn("smtp not configured, one-time codes are written to the log")
		return email.NewLogSender(nil), nil
	}
	svc, err := email.NewService(cfg)
	if err != nil {
		return nil, err
	}
	return svc, nil
}

// New creates the Echo instance with middleware and routes.
func New(cfg *config.Config, app *App) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	setupMiddleware(e, cfg)
	setupRoutes(e, app)

	return e
}

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	SetupLogger(cfg.Log.Level, cfg.Log.Format)

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"driver", database.DriverFor(cfg.Database.DSN),
	)

	// Database
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	notifier, err := NewNotifier(&cfg.SMTP)
	if err != nil {
		return fmt.Errorf("failed to set up email: %w", err)
	}

	app := NewApp(db, cfg, notifier)
	e := New(cfg, app)

	err = startWithGracefulShutdown(ctx, e, cfg)

	// Let queued one-time codes go out before the process exits.
	app.Accounts.Wait()

	return err
}

func setupRoutes(e *echo.Echo, app *App) {
	h := handlers.New(app.Repo)
	ah := handlers.NewAccount(app.Accounts)
	ih := handlers.NewIssuance(app.Issuance)

	e.GET("/health", h.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{})))

	api := e.Group("/api")
	api.POST("/signup", ah.Signup)
	api.POST("/login", ah.Login)
	api.POST("/verify-issuer", ah.VerifyIssuer)
	api.POST("/forgot-password", ah.ForgotPassword)
	api.POST("/reset-password", ah.ResetPassword)
	api.POST("/issue-certificate", ih.IssueCertificate)
	api.GET("/certificates/:number", ih.GetCertificate)
}

// errorHandler renders router and middleware errors in the API envelope.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := http.StatusText(code)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(code)
		}
	} else {
		slog.ErrorContext(c.Request().Context(), "unhandled_error", "error", err)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, handlers.Response{Status: handlers.StatusFailed, Message: message})
	}
	if err != nil {
		slog.ErrorContext(c.Request().Context(), "failed to write error response", "error", err)
	}
}

func startWithGracefulShutdown(ctx context.Context, e *echo.Echo, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		slog.Info("server running", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}
