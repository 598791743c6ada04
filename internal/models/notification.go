package models

import "time"

// Tipos de notificação de mudança de preço
const (
	NotificationPriceDrop     = "price_drop"
	NotificationPriceIncrease = "price_increase"
	NotificationNewSale       = "new_sale"
	NotificationSaleEnded     = "sale_ended"
)

// Notification representa uma notificação gerada pelo detector de mudanças
type Notification struct {
	ID            int64
	ProductID     int64
	Type          string
	Title         string
	Message       string
	OldPrice      float64
	NewPrice      float64
	ChangePercent float64
	IsRead        bool
	CreatedAt     time.Time
}
