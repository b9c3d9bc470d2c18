package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"focus-blocks/internal/alarm"
	"focus-blocks/internal/auth"
	"focus-blocks/internal/broadcast"
	"focus-blocks/internal/config"
	"focus-blocks/internal/coordinator"
	"focus-blocks/internal/database"
	"focus-blocks/internal/diaglog"
	"focus-blocks/internal/rules"
	"focus-blocks/internal/server"
	"focus-blocks/internal/settings"
	"focus-blocks/internal/store"
	"focus-blocks/internal/version"
)

const shutdownTimeout = 10 * time.Second

func (a *app) newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the focusblocks daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().String("listen", "", "listen address (default 127.0.0.1:8092)")
	_ = a.v.BindPFlag("listen", cmd.Flags().Lookup("listen"))
	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	logger := diaglog.New(os.Stderr, cfg.LogLevel)
	if cfg.LogFile != "" {
		diag := diaglog.NewManager(cfg.LogFile)
		if err := diag.Configure(true, cfg.LogLevel); err != nil {
			logger.Warnf("diagnostics log %s unavailable: %v", cfg.LogFile, err)
		} else {
			logger.AddHook(diag)
			defer diag.Close()
		}
	}
	info := version.Current()
	logger.Infof("%s starting", info)
	if info.Dev() {
		logger.Warnf("running a development build; set version.AppVersion with -ldflags for releases")
	}

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database %s: %w", cfg.DatabasePath, err)
	}
	defer db.Close()

	st := store.New(db)
	settingsManager := settings.NewManager(st)

	host, err := buildHost(ctx, db, cfg, logger)
	if err != nil {
		return err
	}

	events := broadcast.New(cfg.BroadcastRetries, cfg.BroadcastBackoff, logger.WithField("component", "broadcast"))
	coord, err := coordinator.New(coordinator.Options{
		Store:                st,
		Host:                 host,
		Clock:                alarm.RealClock{},
		Events:               events,
		Settings:             settingsManager,
		Logger:               logger,
		BlockedPath:          cfg.BlockedPath,
		Location:             cfg.Location,
		DeepThresholdMinutes: cfg.DeepThresholdMinutes,
		SweepInterval:        cfg.SweepInterval,
	})
	if err != nil {
		return fmt.Errorf("build coordinator: %w", err)
	}
	defer coord.Close()
	if err := coord.Init(ctx); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	go coord.Run(ctx)

	var authManager *auth.Manager
	if cfg.AuthEnabled {
		authManager = auth.NewManager(settingsManager, cfg.TokenFile)
		if _, err := authManager.EnsureToken(ctx); err != nil {
			return fmt.Errorf("prepare API token: %w", err)
		}
		logger.Infof("API token stored in %s", cfg.TokenFile)
	} else {
		logger.Warnf("API authentication disabled")
	}
	allowlist, err := auth.NewAllowlist(cfg.AllowedCIDRs)
	if err != nil {
		return fmt.Errorf("allowlist: %w", err)
	}

	srv, err := server.New(server.Options{
		Coordinator: coord,
		Auth:        authManager,
		Allowlist:   allowlist,
		Logger:      logger.WithField("component", "http"),
		BlockedPath: cfg.BlockedPath,
	})
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	// No WriteTimeout: /api/events streams stay open indefinitely.
	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("focusblocks listening on %s", cfg.Listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Infof("shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("graceful shutdown error: %v", err)
	}
	return nil
}

// buildHost returns the SQLite rule table, mirrored into dnsmasq when a
// config path is set.
func buildHost(ctx context.Context, db *sql.DB, cfg config.Config, logger *logrus.Logger) (rules.Host, error) {
	primary, err := rules.NewSQLiteHost(db)
	if err != nil {
		return nil, fmt.Errorf("rule host: %w", err)
	}
	if cfg.DnsmasqConfPath == "" {
		return primary, nil
	}
	mirror, err := rules.NewDnsmasqHost(primary, cfg.DnsmasqConfPath, cfg.DnsmasqReloadCmd, nil, logger.WithField("component", "dnsmasq"))
	if err != nil {
		return nil, fmt.Errorf("dnsmasq host: %w", err)
	}
	if err := mirror.Sync(ctx); err != nil {
		logger.Warnf("initial dnsmasq sync: %v", err)
	}
	return mirror, nil
}
