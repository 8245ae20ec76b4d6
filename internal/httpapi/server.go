// Package httpapi — HTTP-транспорт движка (gin).
// Пользовательские маршруты /api/* требуют Bearer-токен, админские /admin/* — пароль
// администратора в заголовке X-Admin-Password.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"serotonyl.ru/wellness-engine/internal/features/accounts"
	"serotonyl.ru/wellness-engine/internal/features/admin"
	"serotonyl.ru/wellness-engine/internal/features/badges"
	"serotonyl.ru/wellness-engine/internal/features/ledger"
	"serotonyl.ru/wellness-engine/internal/features/plant"
	"serotonyl.ru/wellness-engine/internal/features/rewards"
	"serotonyl.ru/wellness-engine/internal/features/shop"
	"serotonyl.ru/wellness-engine/internal/features/tasks"
	"serotonyl.ru/wellness-engine/internal/httpapi/middleware"
	"serotonyl.ru/wellness-engine/internal/jobs"
)

// Services — сервисы, которые обслуживает HTTP-слой.
type Services struct {
	Accounts *accounts.Service
	Ledger   *ledger.Service
	Plant    *plant.Service
	Shop     *shop.Service
	Badges   *badges.Evaluator
	Tasks    *tasks.Service
	Pipeline *rewards.Pipeline
	Admin    *admin.Service
	Jobs     *jobs.Scheduler
}

// Options — настройки транспорта.
type Options struct {
	JWTSecret   []byte
	CORSOrigins []string
	RateLimit   int
	RateWindow  time.Duration
	Metrics     bool
	// Ready проверяет зависимости для /health (например, ping БД). Может быть nil.
	Ready func(ctx context.Context) error
}

// Server — HTTP-сервер движка.
type Server struct {
	svc     Services
	opts    Options
	limiter *middleware.RateLimiter
	engine  *gin.Engine
}

// NewServer собирает маршруты.
func NewServer(svc Services, opts Options) *Server {
	if opts.RateLimit <= 0 {
		opts.RateLimit = 30
	}
	if opts.RateWindow <= 0 {
		opts.RateWindow = time.Minute
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}

	s := &Server{
		svc:     svc,
		opts:    opts,
		limiter: middleware.NewRateLimiter(opts.RateLimit, opts.RateWindow),
	}
	s.engine = s.routes()
	return s
}

// Handler возвращает http.Handler для http.Server.
func (s *Server) Handler() http.Handler { return s.engine }

// Close освобождает ресурсы сервера (горутину rate-limiter).
func (s *Server) Close() { s.limiter.Close() }

func (s *Server) routes() *gin.Engine {
	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     s.opts.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Admin-Password"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", s.health)
	if s.opts.Metrics {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	api := r.Group("/api")
	api.Use(middleware.Auth(s.opts.JWTSecret), middleware.RateLimit(s.limiter))
	{
		api.POST("/register", s.register)
		api.GET("/me", s.me)
		api.GET("/transactions", s.transactions)

		api.GET("/tasks", s.listTasks)
		api.POST("/tasks/:id/complete", s.completeTask)

		api.POST("/mood", s.logMood)
		api.POST("/journal", s.createJournalEntry)
		api.POST("/breathing", s.logBreathing)

		api.GET("/plant", s.getPlant)
		api.POST("/plant/water", s.waterPlant)

		api.GET("/store", s.listStore)
		api.POST("/store/:id/purchase", s.purchase)
		api.GET("/inventory", s.inventory)

		api.GET("/badges", s.listBadges)
	}

	adm := r.Group("/admin")
	adm.Use(middleware.RateLimit(s.limiter), s.adminAuth)
	{
		adm.PUT("/badges", s.upsertBadge)
		adm.PUT("/store-items", s.upsertStoreItem)
		adm.POST("/accounts/:id/grant", s.grantPoints)
		adm.POST("/jobs/:name/run", s.runJob)
	}

	return r
}

func (s *Server) health(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{
		"status":    "ok",
		"timestamp": time.Now(),
	}
	if s.opts.Ready != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.opts.Ready(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["storage"] = err.Error()
		}
	}
	c.JSON(status, body)
}
