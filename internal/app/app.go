// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: хранилище, уведомления, сервисы, планировщик
// и HTTP-сервер собираются в один объект App.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/wellness-engine/internal/common"
	"serotonyl.ru/wellness-engine/internal/config"
	"serotonyl.ru/wellness-engine/internal/db/postgres"
	"serotonyl.ru/wellness-engine/internal/features/accounts"
	"serotonyl.ru/wellness-engine/internal/features/admin"
	"serotonyl.ru/wellness-engine/internal/features/badges"
	"serotonyl.ru/wellness-engine/internal/features/ledger"
	"serotonyl.ru/wellness-engine/internal/features/plant"
	"serotonyl.ru/wellness-engine/internal/features/rewards"
	"serotonyl.ru/wellness-engine/internal/features/shop"
	"serotonyl.ru/wellness-engine/internal/features/streak"
	"serotonyl.ru/wellness-engine/internal/features/tasks"
	"serotonyl.ru/wellness-engine/internal/httpapi"
	"serotonyl.ru/wellness-engine/internal/jobs"
	"serotonyl.ru/wellness-engine/internal/metrics"
	"serotonyl.ru/wellness-engine/internal/notify"
	"serotonyl.ru/wellness-engine/internal/storage"
	"serotonyl.ru/wellness-engine/internal/storage/memory"
)

// App содержит все компоненты приложения.
type App struct {
	Config    *config.Config
	Store     storage.Store
	DB        *pgxpool.Pool // nil для хранилища в памяти
	Scheduler *jobs.Scheduler
	Server    *httpapi.Server
	Services  httpapi.Services

	dispatcher *notify.Dispatcher
	closers    []func() error
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	// === 1. Часы и часовой пояс ===
	loc := common.LoadLocation(cfg.AppTimezone)
	if loc.String() != cfg.AppTimezone {
		log.WithField("timezone", cfg.AppTimezone).Warn("Часовой пояс не найден, используем UTC")
	}
	clock := common.SystemClock{Location: loc}

	if cfg.FeatureMetricsEnabled {
		metrics.Init()
	}

	// === 2. Хранилище ===
	if err := a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}

	// === 3. Уведомления ===
	if err := a.openNotifier(ctx); err != nil {
		a.Close()
		return nil, err
	}

	// === 4. Сервисы ===
	policy := plant.Policy{
		WaterAmount:        cfg.PlantWaterAmount,
		DecayAmount:        cfg.PlantDecayAmount,
		NeglectAfter:       cfg.NeglectThreshold(),
		WaterReward:        cfg.RewardWaterPoints,
		RewardFullWatering: cfg.PlantRewardFullWatering,
	}
	amounts := rewards.Amounts{
		Mood:                  cfg.RewardMoodPoints,
		Journal:               cfg.RewardJournalPoints,
		BreathingSecondsPerPt: cfg.RewardBreathingSecPerPt,
	}

	evaluator := badges.NewEvaluator(a.Store, a.dispatcher, clock)
	shopService := shop.NewService(a.Store, clock)
	plantService := plant.NewService(a.Store, a.dispatcher, clock, policy)
	streakService := streak.NewService(a.Store, clock)
	taskService := tasks.NewService(a.Store, clock, nil)
	adminService := admin.NewService(a.Store, cfg.AdminPasswordHash, clock)

	// === 5. Планировщик задач ===
	a.Scheduler = jobs.NewScheduler(loc, jobs.Standard(jobs.Specs{
		TaskAssignment: cfg.CronTaskAssignment,
		StreakReset:    cfg.CronStreakReset,
		PlantDecay:     cfg.CronPlantDecay,
	}, taskService, streakService, plantService)...)

	a.Services = httpapi.Services{
		Accounts: accounts.NewService(a.Store, clock),
		Ledger:   ledger.NewService(a.Store),
		Plant:    plantService,
		Shop:     shopService,
		Badges:   evaluator,
		Tasks:    taskService,
		Pipeline: rewards.NewPipeline(a.Store, clock, evaluator, shopService, amounts, policy),
		Admin:    adminService,
		Jobs:     a.Scheduler,
	}

	// === 6. Стартовый каталог ===
	if cfg.AppSeedCatalog {
		if err := a.seedIfEmpty(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	// === 7. HTTP ===
	a.Server = httpapi.NewServer(a.Services, httpapi.Options{
		JWTSecret:   []byte(cfg.HTTPJWTSecret),
		CORSOrigins: cfg.HTTPCORSOrigins,
		RateLimit:   cfg.RateLimitRequests,
		RateWindow:  cfg.RateLimitWindow,
		Metrics:     cfg.FeatureMetricsEnabled,
		Ready:       a.ready,
	})
	a.closers = append(a.closers, func() error { a.Server.Close(); return nil })

	return a, nil
}

// openStore поднимает хранилище, выбранное в APP_STORAGE.
func (a *App) openStore(ctx context.Context) error {
	switch a.Config.AppStorage {
	case config.StorageMemory:
		a.Store = memory.New()
		log.Warn("Используется хранилище в памяти: данные пропадут при перезапуске")
		return nil

	case config.StoragePostgres:
		pool, err := postgres.Connect(ctx, a.Config)
		if err != nil {
			return fmt.Errorf("ошибка подключения к БД: %w", err)
		}
		a.DB = pool
		a.closers = append(a.closers, func() error { pool.Close(); return nil })

		if err := postgres.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("ошибка миграций: %w", err)
		}
		a.Store = postgres.NewStore(pool, a.Config.DBTxRetries)
		return nil

	default:
		return fmt.Errorf("неизвестное хранилище %q", a.Config.AppStorage)
	}
}

// openNotifier собирает каналы уведомлений. Лог — всегда; Redis и Telegram — если настроены.
// Доставка асинхронная, через очередь Dispatcher.
func (a *App) openNotifier(ctx context.Context) error {
	chain := notify.Multi{notify.LogNotifier{}}

	if a.Config.RedisAddr != "" {
		rn, err := notify.NewRedisNotifier(ctx, a.Config.RedisAddr, a.Config.RedisPassword, a.Config.RedisDB, a.Config.RedisStream)
		if err != nil {
			return fmt.Errorf("ошибка подключения к Redis: %w", err)
		}
		a.closers = append(a.closers, rn.Close)
		chain = append(chain, rn)
		log.WithField("stream", a.Config.RedisStream).Info("Уведомления: Redis stream подключён")
	}

	if a.Config.TelegramBotToken != "" {
		tn, err := notify.NewTelegramNotifier(a.Config.TelegramBotToken, a.Config.TelegramChatID)
		if err != nil {
			return fmt.Errorf("ошибка создания Telegram-бота: %w", err)
		}
		chain = append(chain, tn)
		log.WithField("chat_id", a.Config.TelegramChatID).Info("Уведомления: Telegram подключён")
	}

	a.dispatcher = notify.NewDispatcher(chain, a.Config.NotifyQueueSize)
	a.dispatcher.Start()
	// Очередь закрывается раньше Redis: closers выполняются в обратном порядке
	a.closers = append(a.closers, func() error { a.dispatcher.Close(); return nil })
	return nil
}

// seedIfEmpty заполняет каталог стартовыми значками и товарами, если он пуст.
func (a *App) seedIfEmpty(ctx context.Context) error {
	badgeList, err := a.Store.ListBadges(ctx)
	if err != nil {
		return fmt.Errorf("ошибка чтения каталога значков: %w", err)
	}
	items, err := a.Store.ListStoreItems(ctx)
	if err != nil {
		return fmt.Errorf("ошибка чтения каталога товаров: %w", err)
	}
	if len(badgeList) > 0 || len(items) > 0 {
		return nil
	}
	return a.Seed(ctx)
}

// Seed заносит стартовый каталог (перезаписывая записи с теми же ID).
func (a *App) Seed(ctx context.Context) error {
	return a.Services.Admin.SeedCatalog(ctx, badges.DefaultCatalog, shop.DefaultCatalog)
}

func (a *App) ready(ctx context.Context) error {
	if a.DB == nil {
		return nil
	}
	return a.DB.Ping(ctx)
}

// Run запускает планировщик и HTTP-сервер и блокируется до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	if a.Config.FeatureSchedulerEnabled {
		if err := a.Scheduler.Start(ctx); err != nil {
			return err
		}
		defer a.Scheduler.Stop()
	}

	srv := &http.Server{
		Addr:         a.Config.HTTPAddr,
		Handler:      a.Server.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", a.Config.HTTPAddr).Info("HTTP-сервер запущен")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ошибка остановки HTTP-сервера: %w", err)
	}
	log.Info("HTTP-сервер остановлен")
	return nil
}

// Close освобождает ресурсы в порядке, обратном созданию.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.WithError(err).Warn("Ошибка при освобождении ресурса")
		}
	}
	a.closers = nil
}
