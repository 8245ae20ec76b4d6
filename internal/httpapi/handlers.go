package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/wellness-engine/internal/domain"
	"serotonyl.ru/wellness-engine/internal/features/plant"
	"serotonyl.ru/wellness-engine/internal/httpapi/middleware"
)

func userID(c *gin.Context) string {
	return c.GetString(middleware.UserIDKey)
}

// --- Аккаунт ---

func (s *Server) register(c *gin.Context) {
	profile, created, err := s.svc.Accounts.Register(c.Request.Context(), userID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"account": profile.Account,
		"plant":   plant.NewView(profile.Plant),
	})
}

func (s *Server) me(c *gin.Context) {
	profile, err := s.svc.Accounts.Get(c.Request.Context(), userID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"account": profile.Account,
		"plant":   plant.NewView(profile.Plant),
	})
}

func (s *Server) transactions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	list, err := s.svc.Ledger.History(c.Request.Context(), userID(c), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": list})
}

// --- Задания и действия ---

func (s *Server) listTasks(c *gin.Context) {
	list, err := s.svc.Tasks.ListToday(c.Request.Context(), userID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": list})
}

func (s *Server) completeTask(c *gin.Context) {
	out, err := s.svc.Pipeline.OnTaskCompleted(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Содержимое записи о настроении или дневника движку не нужно: награда
// зависит только от факта действия. Тело запроса не обязательно.
func (s *Server) logMood(c *gin.Context) {
	out, err := s.svc.Pipeline.OnMoodLogged(c.Request.Context(), userID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) createJournalEntry(c *gin.Context) {
	out, err := s.svc.Pipeline.OnJournalEntryCreated(c.Request.Context(), userID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type breathingRequest struct {
	DurationSeconds *int `json:"durationSeconds" binding:"required"`
}

func (s *Server) logBreathing(c *gin.Context) {
	var req breathingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	out, err := s.svc.Pipeline.OnBreathingSessionLogged(c.Request.Context(), userID(c), *req.DurationSeconds)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// --- Растение ---

func (s *Server) getPlant(c *gin.Context) {
	view, err := s.svc.Plant.Get(c.Request.Context(), userID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) waterPlant(c *gin.Context) {
	out, err := s.svc.Pipeline.OnPlantWatered(c.Request.Context(), userID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"account":   out.Account,
		"plant":     plant.NewView(out.Plant),
		"credited":  out.Credited,
		"newBadges": out.NewBadges,
	})
}

// --- Магазин и значки ---

func (s *Server) listStore(c *gin.Context) {
	items, err := s.svc.Shop.Items(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (s *Server) purchase(c *gin.Context) {
	out, err := s.svc.Pipeline.OnPurchaseRequested(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) inventory(c *gin.Context) {
	items, err := s.svc.Shop.Inventory(c.Request.Context(), userID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (s *Server) listBadges(c *gin.Context) {
	list, err := s.svc.Badges.ListForUser(c.Request.Context(), userID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"badges": list})
}

// --- Админка ---

func (s *Server) adminAuth(c *gin.Context) {
	if err := s.svc.Admin.Authenticate(c.ClientIP(), c.GetHeader("X-Admin-Password")); err != nil {
		writeError(c, err)
		return
	}
	c.Next()
}

func (s *Server) upsertBadge(c *gin.Context) {
	var badge domain.Badge
	if err := c.ShouldBindJSON(&badge); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.svc.Admin.UpsertBadge(c.Request.Context(), badge); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, badge)
}

func (s *Server) upsertStoreItem(c *gin.Context) {
	var item domain.StoreItem
	if err := c.ShouldBindJSON(&item); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.svc.Admin.UpsertStoreItem(c.Request.Context(), item); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

type grantRequest struct {
	Amount int64  `json:"amount" binding:"required"`
	Reason string `json:"reason"`
}

func (s *Server) grantPoints(c *gin.Context) {
	var req grantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	out, err := s.svc.Pipeline.GrantPoints(c.Request.Context(), c.Param("id"), req.Amount, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	log.WithFields(log.Fields{
		"user_id": c.Param("id"),
		"amount":  req.Amount,
		"client":  c.ClientIP(),
	}).Info("Администратор начислил очки")
	c.JSON(http.StatusOK, out)
}

func (s *Server) runJob(c *gin.Context) {
	result, err := s.svc.Jobs.RunJob(c.Request.Context(), c.Param("name"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"job":     c.Param("name"),
		"matched": result.Matched,
		"updated": result.Updated,
		"failed":  result.Failed,
	})
}
