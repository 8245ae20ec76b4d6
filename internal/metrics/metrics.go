// Package metrics — счётчики Prometheus для HTTP, экономики, обходов и уведомлений.
// Метрики объявлены на уровне пакета, регистрация — один раз через Init.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTPRequests — общее количество HTTP-запросов
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPDuration — время обработки запросов
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "engine_http_request_duration_seconds",
			Help: "HTTP request duration seconds",
		},
		[]string{"method", "path"},
	)

	// PointsCredited — начисленные очки по типу действия
	PointsCredited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_points_credited_total",
			Help: "Points credited to accounts",
		},
		[]string{"type"},
	)

	// PointsDebited — списанные очки
	PointsDebited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_points_debited_total",
			Help: "Points debited from accounts",
		},
		[]string{"type"},
	)

	BadgesUnlocked = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_badges_unlocked_total",
			Help: "Badges unlocked",
		},
	)

	// Purchases — попытки покупки по результату (ok, not_found, already_owned, insufficient, error)
	Purchases = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_purchases_total",
			Help: "Store purchase attempts",
		},
		[]string{"result"},
	)

	// SweepAccounts — аккаунты, обработанные ночными обходами
	SweepAccounts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_sweep_accounts_total",
			Help: "Accounts processed by scheduled sweeps",
		},
		[]string{"job", "outcome"},
	)

	// SweepDuration — длительность фоновых задач
	SweepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "engine_sweep_duration_seconds",
			Help:    "Scheduled sweep duration seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		},
		[]string{"job"},
	)

	// Notifications — доставка уведомлений по каналам
	Notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_notifications_total",
			Help: "Notification deliveries",
		},
		[]string{"channel", "result"},
	)
)

var once sync.Once

// Init регистрирует метрики в Prometheus. Повторные вызовы ничего не делают.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			HTTPRequests, HTTPDuration,
			PointsCredited, PointsDebited,
			BadgesUnlocked, Purchases,
			SweepAccounts, SweepDuration,
			Notifications,
		)
	})
}
