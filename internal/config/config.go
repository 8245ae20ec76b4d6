// Package config загружает конфигурацию движка из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Хранилища, которые умеет поднимать приложение
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- Database ---
	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	// Дефолт ставим "postgres" (имя сервиса в docker-compose), а для локалки переопределяй DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"engine"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME" default:"wellness"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`
	// Сколько раз повторять транзакцию при serialization failure / deadlock
	DBTxRetries int `envconfig:"DB_TX_RETRIES" default:"3"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	// Файл логов с ротацией. Пусто — только stdout.
	AppLogFile  string `envconfig:"APP_LOG_FILE" default:""`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Asia/Kolkata"`
	// memory — всё в памяти процесса (dev, тесты), postgres — боевое хранилище
	AppStorage string `envconfig:"APP_STORAGE" default:"postgres"`
	// Заполнять каталог значков и товаров при старте, если он пуст
	AppSeedCatalog bool `envconfig:"APP_SEED_CATALOG" default:"true"`

	// --- HTTP ---
	HTTPAddr          string        `envconfig:"HTTP_ADDR" default:":8080"`
	HTTPJWTSecret     string        `envconfig:"HTTP_JWT_SECRET" required:"true"`
	HTTPCORSOrigins   []string      `envconfig:"HTTP_CORS_ORIGINS" default:"http://localhost:3000"`
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"30"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	// --- Admin ---
	// Argon2id-хеш пароля (scripts/generate_hash.go). Пусто — админка выключена.
	AdminPasswordHash string `envconfig:"ADMIN_PASSWORD_HASH" default:""`

	// --- Rewards ---
	RewardMoodPoints        int64 `envconfig:"REWARD_MOOD_POINTS" default:"5"`
	RewardJournalPoints     int64 `envconfig:"REWARD_JOURNAL_POINTS" default:"10"`
	RewardWaterPoints       int64 `envconfig:"REWARD_WATER_POINTS" default:"10"`
	RewardBreathingSecPerPt int   `envconfig:"REWARD_BREATHING_SECONDS_PER_POINT" default:"5"`

	// --- Plant ---
	PlantWaterAmount  int `envconfig:"PLANT_WATER_AMOUNT" default:"25"`
	PlantDecayAmount  int `envconfig:"PLANT_DECAY_AMOUNT" default:"10"`
	PlantNeglectHours int `envconfig:"PLANT_NEGLECT_HOURS" default:"24"`
	// Начислять очки за полив уже здорового растения (исторически — да)
	PlantRewardFullWatering bool `envconfig:"PLANT_REWARD_FULL_WATERING" default:"true"`

	// --- Scheduler (cron, в поясе APP_TIMEZONE) ---
	CronTaskAssignment string `envconfig:"CRON_TASK_ASSIGNMENT" default:"0 0 * * *"`
	CronStreakReset    string `envconfig:"CRON_STREAK_RESET" default:"5 0 * * *"`
	CronPlantDecay     string `envconfig:"CRON_PLANT_DECAY" default:"0 1 * * *"`

	// --- Notifications ---
	// Redis stream для событий разблокировки. Пусто — не используем.
	RedisAddr     string `envconfig:"REDIS_ADDR" default:""`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	RedisStream   string `envconfig:"REDIS_STREAM" default:"engine:notifications"`
	// Telegram-канал для анонсов. Пустой токен — не используем.
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN" default:""`
	TelegramChatID   int64  `envconfig:"TELEGRAM_CHAT_ID" default:"0"`
	// Размер очереди асинхронной доставки уведомлений
	NotifyQueueSize int `envconfig:"NOTIFY_QUEUE_SIZE" default:"256"`

	// --- Feature Flags ---
	FeatureSchedulerEnabled bool `envconfig:"FEATURE_SCHEDULER_ENABLED" default:"true"`
	FeatureMetricsEnabled   bool `envconfig:"FEATURE_METRICS_ENABLED" default:"true"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// NeglectThreshold — сколько растение может простоять без полива до увядания.
func (c *Config) NeglectThreshold() time.Duration {
	return time.Duration(c.PlantNeglectHours) * time.Hour
}

func (c *Config) Validate() error {
	switch c.AppStorage {
	case StorageMemory, StoragePostgres:
	default:
		return fmt.Errorf("APP_STORAGE должен быть %q или %q", StorageMemory, StoragePostgres)
	}
	if c.AppStorage == StoragePostgres {
		if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
		}
		if c.DBTxRetries <= 0 {
			return fmt.Errorf("DB_TX_RETRIES должен быть > 0")
		}
	}
	if strings.TrimSpace(c.HTTPJWTSecret) == "" {
		return fmt.Errorf("HTTP_JWT_SECRET не задан")
	}
	if c.RewardBreathingSecPerPt <= 0 {
		return fmt.Errorf("REWARD_BREATHING_SECONDS_PER_POINT должен быть > 0")
	}
	if c.RewardMoodPoints <= 0 || c.RewardJournalPoints <= 0 || c.RewardWaterPoints <= 0 {
		return fmt.Errorf("награды за действия должны быть > 0")
	}
	if c.PlantWaterAmount <= 0 || c.PlantDecayAmount <= 0 || c.PlantNeglectHours <= 0 {
		return fmt.Errorf("PLANT_WATER_AMOUNT, PLANT_DECAY_AMOUNT и PLANT_NEGLECT_HOURS должны быть > 0")
	}
	if c.TelegramBotToken != "" && c.TelegramChatID == 0 {
		return fmt.Errorf("TELEGRAM_CHAT_ID не задан при заданном TELEGRAM_BOT_TOKEN")
	}
	if c.NotifyQueueSize <= 0 {
		return fmt.Errorf("NOTIFY_QUEUE_SIZE должен быть > 0")
	}
	return nil
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default возвращает конфигурацию со значениями по умолчанию без чтения окружения.
// Используется в тестах и для in-memory режима.
func Default() *Config {
	return &Config{
		DBMaxConns:              25,
		DBMinConns:              5,
		DBTxRetries:             3,
		AppEnv:                  "development",
		AppLogLevel:             "debug",
		AppTimezone:             "Asia/Kolkata",
		AppStorage:              StorageMemory,
		AppSeedCatalog:          true,
		HTTPAddr:                ":8080",
		HTTPJWTSecret:           "dev-secret",
		RateLimitRequests:       30,
		RateLimitWindow:         time.Minute,
		RewardMoodPoints:        5,
		RewardJournalPoints:     10,
		RewardWaterPoints:       10,
		RewardBreathingSecPerPt: 5,
		PlantWaterAmount:        25,
		PlantDecayAmount:        10,
		PlantNeglectHours:       24,
		PlantRewardFullWatering: true,
		CronTaskAssignment:      "0 0 * * *",
		CronStreakReset:         "5 0 * * *",
		CronPlantDecay:          "0 1 * * *",
		RedisStream:             "engine:notifications",
		NotifyQueueSize:         256,
		FeatureSchedulerEnabled: true,
		FeatureMetricsEnabled:   true,
	}
}
