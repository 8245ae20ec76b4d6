package badges

import "serotonyl.ru/wellness-engine/internal/domain"

// DefaultCatalog — стартовый набор значков (заливается командой seed и при старте,
// если APP_SEED_CATALOG=true и каталог пуст).
var DefaultCatalog = []domain.Badge{
	{
		ID: "first-steps", Name: "Первые шаги", IconRef: "sprout",
		Description: "Заработайте первые очки",
		Criteria:    "10 очков на счёте", PointsRequired: 10,
	},
	{
		ID: "mood-tracker", Name: "Наблюдатель", IconRef: "heart",
		Description: "Вы регулярно отмечаете своё настроение",
		Criteria:    "50 очков на счёте", PointsRequired: 50,
	},
	{
		ID: "journal-keeper", Name: "Летописец", IconRef: "book-open",
		Description: "Дневник стал привычкой",
		Criteria:    "150 очков на счёте", PointsRequired: 150,
	},
	{
		ID: "breathing-adept", Name: "Ровное дыхание", IconRef: "wind",
		Description: "Дыхательные практики даются всё легче",
		Criteria:    "300 очков на счёте", PointsRequired: 300,
	},
	{
		ID: "streak-champion", Name: "Чемпион серии", IconRef: "trending-up",
		Description: "Постоянство приносит плоды",
		Criteria:    "600 очков на счёте", PointsRequired: 600,
	},
	{
		ID: "wellness-master", Name: "Мастер равновесия", IconRef: "crown",
		Description: "Вершина пути",
		Criteria:    "1000 очков на счёте", PointsRequired: 1000,
	},
}
