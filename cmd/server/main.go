// AccessMux - Tenant-Scoped Access Control Event Multiplexer
// Copyright 2026 the AccessMux authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accessmux/accessmux

// Command server runs the AccessMux API: tenant management, event
// ingestion, realtime multiplexing, and gateway provisioning.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/accessmux/accessmux/internal/api"
	"github.com/accessmux/accessmux/internal/auth"
	"github.com/accessmux/accessmux/internal/config"
	"github.com/accessmux/accessmux/internal/database"
	"github.com/accessmux/accessmux/internal/hub"
	"github.com/accessmux/accessmux/internal/jobqueue"
	"github.com/accessmux/accessmux/internal/logging"
	"github.com/accessmux/accessmux/internal/models"
	"github.com/accessmux/accessmux/internal/supervisor"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("Server exited with error")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().Str("version", version).Str("addr", cfg.Addr()).Msg("Starting AccessMux")

	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Failed to close database")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := bootstrapAdmin(ctx, db, cfg); err != nil {
		return fmt.Errorf("failed to bootstrap admin account: %w", err)
	}

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		return fmt.Errorf("failed to initialize token manager: %w", err)
	}

	h := hub.New()
	queue := jobqueue.New(db, h)

	handler, err := api.NewHandler(db, cfg, h, queue, jwtManager)
	if err != nil {
		return fmt.Errorf("failed to build API handler: %w", err)
	}

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.Config{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.Add(supervisor.NewHTTPService(server, cfg.Server.ShutdownTimeout))

	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logging.Info().Msg("Shutdown complete")
	return nil
}

// bootstrapAdmin creates the configured platform admin account on first
// start. An existing account with the same username is left untouched so
// password changes survive restarts.
func bootstrapAdmin(ctx context.Context, db *database.DB, cfg *config.Config) error {
	username := cfg.Security.AdminUsername
	password := cfg.Security.AdminPassword
	if username == "" || password == "" {
		return nil
	}

	_, err := db.GetAccountByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	if _, err := db.CreateAccount(ctx, username, hash, models.RoleAdmin, nil); err != nil {
		return err
	}
	logging.Info().Str("username", username).Msg("Bootstrap admin account created")
	return nil
}
