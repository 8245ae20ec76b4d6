// Package main — точка входа движка.
// Загружает конфигурацию, настраивает логирование и выполняет команду CLI:
// serve (по умолчанию), sweep, migrate, seed, token.
// serve поддерживает graceful shutdown по SIGINT/SIGTERM.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"serotonyl.ru/wellness-engine/internal/config"
)

var CLI struct {
	LogLevel string `help:"Уровень логирования (перекрывает APP_LOG_LEVEL)." placeholder:"LEVEL"`

	Serve   ServeCmd   `cmd:"" help:"Запустить HTTP-сервер и планировщик." default:"1"`
	Sweep   SweepCmd   `cmd:"" help:"Однократно выполнить ночной обход."`
	Migrate MigrateCmd `cmd:"" help:"Применить миграции PostgreSQL."`
	Seed    SeedCmd    `cmd:"" help:"Занести стартовый каталог значков и товаров."`
	Token   TokenCmd   `cmd:"" help:"Выпустить токен пользователя (для разработки)."`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("engine"),
		kong.Description("Движок наград: очки, серии, значки, растение и магазин"),
		kong.UsageOnError(),
	)
	os.Exit(run(kctx))
}

// run выполняет команду и возвращает код выхода. Отложенные вызовы (закрытие
// файла логов) срабатывают до os.Exit.
func run(kctx *kong.Context) int {
	setupLogging()

	// Загружаем конфигурацию из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Error("Не удалось загрузить конфигурацию")
		return 1
	}

	levelName := cfg.AppLogLevel
	if CLI.LogLevel != "" {
		levelName = CLI.LogLevel
	}
	if level, err := log.ParseLevel(levelName); err == nil {
		log.SetLevel(level)
	}

	if cfg.AppLogFile != "" {
		rotator := newRotator(cfg.AppLogFile)
		defer rotator.Close()
		log.SetOutput(io.MultiWriter(os.Stdout, rotator))
	}

	if err := kctx.Run(cfg); err != nil {
		log.WithError(err).Error("Команда завершилась с ошибкой")
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		return 1
	}
	return 0
}

// newRotator — файл логов с ротацией по размеру.
func newRotator(filename string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28, // дней
		Compress:   true,
	}
}

// setupLogging настраивает формат логов.
func setupLogging() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.DebugLevel)
}
