// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command seed migrates the database and ensures the administrator account exists.
//
// Running it again resets the administrator password to SEED_ADMIN_PASSWORD.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/taibuivan/keygate/internal/platform/config"
	"github.com/taibuivan/keygate/internal/platform/logger"
	"github.com/taibuivan/keygate/internal/platform/migration"
	pgstore "github.com/taibuivan/keygate/internal/platform/postgres"
	"github.com/taibuivan/keygate/internal/platform/sec"
	"github.com/taibuivan/keygate/internal/users/auth"
)

func main() {
	cfg, err := config.LoadSeed()
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed failure: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: "info"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed failure: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Error("seed_failed", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.SeedConfig, log *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log); err != nil {
		return err
	}

	pool, err := pgstore.NewPool(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	hasher, err := sec.NewPasswordHasher(cfg.PasswordAlgorithm)
	if err != nil {
		return err
	}

	admin, created, err := auth.SeedAdmin(ctx, auth.NewUserRepository(pool), auth.NewRoleRepository(pool), hasher, auth.SeedAdminInput{
		Email:    cfg.AdminEmail,
		Password: cfg.AdminPassword,
		Name:     cfg.AdminName,
	})
	if err != nil {
		return err
	}

	log.Info("admin_seeded",
		zap.String("user_id", admin.ID),
		zap.String("email", admin.Email),
		zap.Bool("created", created),
	)
	return nil
}
