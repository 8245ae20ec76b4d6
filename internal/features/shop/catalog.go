package shop

import "serotonyl.ru/wellness-engine/internal/domain"

// DefaultCatalog — стартовый ассортимент магазина.
var DefaultCatalog = []domain.StoreItem{
	{ID: "terracotta-pot", Name: "Терракотовый горшок", Description: "Классический глиняный горшок",
		Cost: 50, Category: "plant-pot", Rarity: "common", ImageRef: "pots/terracotta.png", IsActive: true},
	{ID: "ceramic-pot", Name: "Керамический горшок", Description: "Глазурь цвета морской волны",
		Cost: 120, Category: "plant-pot", Rarity: "rare", ImageRef: "pots/ceramic.png", IsActive: true},
	{ID: "fertilizer", Name: "Удобрение", Description: "Подкормка для крепких корней",
		Cost: 30, Category: "plant-food", Rarity: "common", ImageRef: "food/fertilizer.png", IsActive: true},
	{ID: "watering-can", Name: "Медная лейка", Description: "Поливать приятнее",
		Cost: 80, Category: "plant-tools", Rarity: "common", ImageRef: "tools/can.png", IsActive: true},
	{ID: "fairy-lights", Name: "Гирлянда", Description: "Тёплый свет у подоконника",
		Cost: 200, Category: "room-decor", Rarity: "epic", ImageRef: "decor/lights.png", IsActive: true},
	{ID: "golden-butterfly", Name: "Золотая бабочка", Description: "Садится на самые ухоженные растения",
		Cost: 500, Category: "plant-decor", Rarity: "legendary", ImageRef: "decor/butterfly.png", IsActive: true},
}
