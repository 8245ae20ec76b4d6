// Package plant — жизненный цикл виртуального растения.
// growth.go: уровни роста и состояние здоровья.
package plant

import "serotonyl.ru/wellness-engine/internal/domain"

// Пороги очков роста для уровней 1..7.
// После последнего порога каждые levelStepBeyond очков дают ещё уровень.
var levelBreakpoints = []int64{0, 100, 200, 300, 500, 800, 1300}

const levelStepBeyond = 500

// Состояние здоровья
const (
	StatusHealthy = "healthy"
	StatusPale    = "pale"
	StatusWilting = "wilting"
)

// Здоровье: 0..MaxHealth
const MaxHealth = 100

// LevelFor вычисляет уровень по очкам роста. Функция неубывающая.
//
//	LevelFor(0)    → 1
//	LevelFor(250)  → 3
//	LevelFor(1300) → 7
//	LevelFor(1850) → 8
func LevelFor(growthPoints int64) int {
	level := 1
	for i, bp := range levelBreakpoints {
		if growthPoints >= bp {
			level = i + 1
		}
	}

	last := levelBreakpoints[len(levelBreakpoints)-1]
	if growthPoints > last {
		level += int((growthPoints - last) / levelStepBeyond)
	}
	return level
}

// NextLevelAt — сколько очков роста нужно для следующего уровня.
func NextLevelAt(growthPoints int64) int64 {
	for _, bp := range levelBreakpoints {
		if bp > growthPoints {
			return bp
		}
	}
	last := levelBreakpoints[len(levelBreakpoints)-1]
	return last + ((growthPoints-last)/levelStepBeyond+1)*levelStepBeyond
}

// HealthStatus переводит здоровье в состояние: healthy ≥ 60, pale ≥ 30, иначе wilting.
func HealthStatus(health int) string {
	switch {
	case health >= 60:
		return StatusHealthy
	case health >= 30:
		return StatusPale
	default:
		return StatusWilting
	}
}

// View — растение с производными полями для ответа клиенту.
type View struct {
	*domain.Plant
	HealthStatus string `json:"healthStatus"`
	NextLevelAt  int64  `json:"nextLevelAt"`
}

// NewView собирает View.
func NewView(p *domain.Plant) View {
	return View{
		Plant:        p,
		HealthStatus: HealthStatus(p.Health),
		NextLevelAt:  NextLevelAt(p.GrowthPoints),
	}
}
