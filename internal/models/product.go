package models

import "time"

// Product representa um produto rastreado no inventário
type Product struct {
	ID              int64
	URL             string
	Name            string
	Brand           string
	SKU             string
	Category        string
	CurrentPrice    float64
	OriginalPrice   float64 // Preço original (antes do desconto); 0 = sem preço de lista
	IsOnSale        bool
	DiscountPercent float64 // Percentual de desconto atual (0-100)
	ImageURL        string
	Active          bool
	LastCrawledAt   time.Time
	CreatedAt       time.Time
}

// ScrapedProduct é o registro bruto extraído de uma página, antes da reconciliação
type ScrapedProduct struct {
	URL           string
	Name          string
	Brand         string
	SKU           string
	Price         float64
	HasPrice      bool
	OriginalPrice float64 // 0 = sem preço original na página
	ImageURL      string
}

// PriceHistoryEntry é um snapshot imutável de preço, um por crawl bem-sucedido
type PriceHistoryEntry struct {
	ID              int64
	ProductID       int64
	Price           float64
	OriginalPrice   float64
	IsOnSale        bool
	DiscountPercent float64
	CrawledAt       time.Time
}
