// dashgate - session authentication daemon for the dashboard.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jeranaias/dashgate/internal/auth"
	"github.com/jeranaias/dashgate/internal/config"
	"github.com/jeranaias/dashgate/internal/journal"
	"github.com/jeranaias/dashgate/internal/server"
	"github.com/jeranaias/dashgate/internal/token"
)

// Version information (set at build time)
var (
	Version   = "1.0.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ~/.dashgate/config.toml)")
	listenAddr := flag.String("listen", "", "override the configured listen address")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("dashgate v%s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
	}
	config.SetGlobal(cfg)

	if err := run(cfg, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads from an explicit path when given, otherwise from the
// standard locations with env overrides. A missing file is not an error;
// defaults plus DASHGATE_* environment variables still produce a usable
// configuration.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

func run(cfg *config.Config, configPath string) error {
	issuer, verifier := buildAuth(cfg)

	if cfg.Server.Production && cfg.Auth.TokenSecret == "" {
		log.Printf("SECURITY WARNING | production mode with no token secret configured; set DASHGATE_TOKEN_SECRET")
	}
	if cfg.Auth.Username == "" || cfg.Auth.Password == "" {
		log.Printf("AUTH_UNCONFIGURED | no credentials configured; all logins will fail until DASHGATE_USERNAME and DASHGATE_PASSWORD are set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Attempt journal is best-effort: a broken audit store must not take
	// authentication down with it.
	var jnl *journal.Journal
	if cfg.Journal.Enabled {
		path := cfg.Journal.Path
		if path == "" {
			var err error
			if path, err = cfg.JournalPath(); err != nil {
				return fmt.Errorf("resolving journal path: %w", err)
			}
		}
		j, err := journal.Open(path)
		if err != nil {
			log.Printf("JOURNAL_OPEN_FAILED | path=%s error=%v", path, err)
		} else {
			jnl = j
			defer jnl.Close()
			go pruneJournal(ctx, jnl, cfg.Journal.RetentionDays)
		}
	}

	srv, err := server.NewServer(server.Options{
		ListenAddr:         cfg.Server.ListenAddr,
		Issuer:             issuer,
		Verifier:           verifier,
		Journal:            jnl,
		TrustProxyHeaders:  cfg.Server.TrustProxyHeaders,
		LoginRatePerMinute: cfg.Server.LoginRatePerMinute,
		LoginRateBurst:     cfg.Server.LoginRateBurst,
	})
	if err != nil {
		return err
	}

	if watcher := watchConfig(configPath, srv); watcher != nil {
		defer watcher.Close()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Printf("SHUTDOWN_SIGNAL | stopping")
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildAuth derives the issuer/verifier pair from configuration. Both share
// one codec so cookies minted before a reload stay valid as long as the
// secret is unchanged.
func buildAuth(cfg *config.Config) (*auth.Issuer, *auth.Verifier) {
	codec := token.NewCodec(cfg.Auth.TokenSecret)
	issuer := auth.NewIssuer(cfg.Auth.Username, cfg.Auth.Password, codec,
		auth.WithFailureDelay(cfg.FailureDelay()),
		auth.WithCookieTTL(cfg.CookieTTL()),
		auth.WithSecureCookies(cfg.Server.Production),
	)
	return issuer, auth.NewVerifier(codec)
}

// watchConfig hot-reloads credentials and cookie settings when the config
// file changes. Listen address and journal changes still need a restart.
func watchConfig(configPath string, srv *server.Server) *config.Watcher {
	path := configPath
	if path == "" {
		var err error
		if path, err = config.ConfigPathTOML(); err != nil {
			return nil
		}
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	watcher, err := config.NewWatcher(path, func(newCfg *config.Config) {
		config.SetGlobal(newCfg)
		srv.UpdateAuth(buildAuth(newCfg))
	})
	if err != nil {
		log.Printf("CONFIG_WATCH_FAILED | path=%s error=%v", path, err)
		return nil
	}
	if err := watcher.Watch(); err != nil {
		log.Printf("CONFIG_WATCH_FAILED | path=%s error=%v", path, err)
		watcher.Close()
		return nil
	}
	return watcher
}

// pruneJournal trims expired audit records on startup and every six hours
// after that.
func pruneJournal(ctx context.Context, jnl *journal.Journal, retentionDays int) {
	if retentionDays <= 0 {
		return
	}
	retention := time.Duration(retentionDays) * 24 * time.Hour

	prune := func() {
		if _, err := jnl.Prune(time.Now().Add(-retention)); err != nil {
			log.Printf("JOURNAL_PRUNE_FAILED | error=%v", err)
		}
	}

	prune()

	ticker := time.NewTicker(6 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}
