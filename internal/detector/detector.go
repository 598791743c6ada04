package detector

import (
	"fmt"
	"math"
	"strconv"

	"crawler-ofertas/internal/models"
	"crawler-ofertas/internal/pricing"
)

// Chaves de configuração lidas da tabela settings
const (
	SettingPriceDropThreshold     = "price_drop_threshold"
	SettingPriceIncreaseThreshold = "price_increase_threshold"
	SettingNotifyOnSale           = "notify_on_sale"
)

// Thresholds controla quais mudanças geram notificação.
// Os limiares são pontos percentuais (5 = 5%), não frações.
type Thresholds struct {
	PriceDropPercent     float64
	PriceIncreasePercent float64
	NotifyOnSale         bool
}

// DefaultThresholds retorna os limiares padrão
func DefaultThresholds() Thresholds {
	return Thresholds{
		PriceDropPercent:     5,
		PriceIncreasePercent: 10,
		NotifyOnSale:         true,
	}
}

// ThresholdsFromSettings monta os limiares a partir das configurações persistidas,
// aplicando os padrões para chaves ausentes ou inválidas
func ThresholdsFromSettings(settings map[string]string) Thresholds {
	t := DefaultThresholds()
	if v, ok := settings[SettingPriceDropThreshold]; ok {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil && parsed > 0 {
			t.PriceDropPercent = parsed
		}
	}
	if v, ok := settings[SettingPriceIncreaseThreshold]; ok {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil && parsed > 0 {
			t.PriceIncreasePercent = parsed
		}
	}
	if v, ok := settings[SettingNotifyOnSale]; ok {
		if parsed, err := strconv.ParseBool(v); err == nil {
			t.NotifyOnSale = parsed
		}
	}
	return t
}

// Detect compara o estado armazenado de um produto com os dados recém-extraídos
// e decide quais notificações emitir. As verificações de promoção e de variação
// de preço são independentes: ambas podem disparar na mesma reconciliação.
// Deve ser chamado ANTES de atualizar o produto, para enxergar os valores antigos.
func Detect(old models.Product, scraped models.ScrapedProduct, t Thresholds) []models.Notification {
	var notifications []models.Notification

	newOnSale := scraped.HasPrice && scraped.OriginalPrice > 0 && scraped.OriginalPrice > scraped.Price

	if !old.IsOnSale && newOnSale && t.NotifyOnSale {
		discount := pricing.DiscountPercent(scraped.OriginalPrice, scraped.Price)
		notifications = append(notifications, models.Notification{
			ProductID:     old.ID,
			Type:          models.NotificationNewSale,
			Title:         "Promoção iniciada",
			Message:       fmt.Sprintf("%s entrou em promoção: de $%.2f por $%.2f (%.2f%% de desconto)", old.Name, scraped.OriginalPrice, scraped.Price, discount),
			OldPrice:      old.CurrentPrice,
			NewPrice:      scraped.Price,
			ChangePercent: discount,
		})
	}

	if old.IsOnSale && !newOnSale {
		notifications = append(notifications, models.Notification{
			ProductID: old.ID,
			Type:      models.NotificationSaleEnded,
			Title:     "Promoção encerrada",
			Message:   fmt.Sprintf("%s saiu de promoção. Preço atual: $%.2f", old.Name, scraped.Price),
			OldPrice:  old.CurrentPrice,
			NewPrice:  scraped.Price,
		})
	}

	if old.CurrentPrice > 0 && scraped.HasPrice && math.Abs(scraped.Price-old.CurrentPrice) > 0.01 {
		changePercent := (scraped.Price - old.CurrentPrice) / old.CurrentPrice * 100

		if changePercent < 0 && -changePercent >= t.PriceDropPercent {
			notifications = append(notifications, models.Notification{
				ProductID:     old.ID,
				Type:          models.NotificationPriceDrop,
				Title:         "Queda de preço",
				Message:       fmt.Sprintf("%s caiu de $%.2f para $%.2f (-%.2f%%)", old.Name, old.CurrentPrice, scraped.Price, -changePercent),
				OldPrice:      old.CurrentPrice,
				NewPrice:      scraped.Price,
				ChangePercent: changePercent,
			})
		}

		if changePercent > 0 && changePercent >= t.PriceIncreasePercent {
			notifications = append(notifications, models.Notification{
				ProductID:     old.ID,
				Type:          models.NotificationPriceIncrease,
				Title:         "Aumento de preço",
				Message:       fmt.Sprintf("%s subiu de $%.2f para $%.2f (+%.2f%%)", old.Name, old.CurrentPrice, scraped.Price, changePercent),
				OldPrice:      old.CurrentPrice,
				NewPrice:      scraped.Price,
				ChangePercent: changePercent,
			})
		}
	}

	return notifications
}
