package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/wellness-engine/internal/app"
	"serotonyl.ru/wellness-engine/internal/config"
	"serotonyl.ru/wellness-engine/internal/db/postgres"
	"serotonyl.ru/wellness-engine/internal/httpapi/middleware"
)

// ServeCmd — основной режим: HTTP + cron.
type ServeCmd struct{}

func (c *ServeCmd) Run(cfg *config.Config) error {
	log.Info("=== Движок запускается ===")

	// Контекст отменяется по Ctrl+C / docker stop
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("не удалось инициализировать приложение: %w", err)
	}
	defer application.Close()

	log.Info("=== Движок готов к работе ===")
	if err := application.Run(ctx); err != nil {
		return err
	}

	log.Info("=== Движок остановлен ===")
	return nil
}

// SweepCmd — ручной запуск обхода (например, из внешнего cron или после простоя).
type SweepCmd struct {
	Job string `arg:"" enum:"tasks,streaks,decay" help:"Какой обход выполнить: tasks, streaks, decay."`
}

func (c *SweepCmd) Run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("не удалось инициализировать приложение: %w", err)
	}
	defer application.Close()

	result, err := application.Scheduler.RunJob(ctx, c.Job)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s\n", c.Job, result)
	return nil
}

// MigrateCmd применяет миграции и выходит.
type MigrateCmd struct{}

func (c *MigrateCmd) Run(cfg *config.Config) error {
	if cfg.AppStorage != config.StoragePostgres {
		return fmt.Errorf("миграции нужны только для APP_STORAGE=%s", config.StoragePostgres)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := postgres.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		return err
	}
	log.Info("Миграции применены")
	return nil
}

// SeedCmd заносит стартовый каталог.
type SeedCmd struct{}

func (c *SeedCmd) Run(cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	// Заполняем явно ниже, автоматическое заполнение не нужно
	cfg.AppSeedCatalog = false
	application, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("не удалось инициализировать приложение: %w", err)
	}
	defer application.Close()

	return application.Seed(ctx)
}

// TokenCmd печатает токен пользователя, подписанный HTTP_JWT_SECRET.
type TokenCmd struct {
	UserID string        `arg:"" help:"ID пользователя."`
	TTL    time.Duration `help:"Срок действия токена." default:"24h"`
}

func (c *TokenCmd) Run(cfg *config.Config) error {
	token, err := middleware.IssueToken([]byte(cfg.HTTPJWTSecret), c.UserID, c.TTL, time.Now())
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
