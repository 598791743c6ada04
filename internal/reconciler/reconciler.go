package reconciler

import (
	"log"
	"strings"
	"time"

	"crawler-ofertas/internal/detector"
	"crawler-ofertas/internal/models"
	"crawler-ofertas/internal/pricing"
)

// Store são as operações de persistência usadas pela reconciliação
type Store interface {
	GetActiveProducts(category string) ([]models.Product, error)
	CreateProduct(p models.Product) (int64, error)
	UpdateProductCrawl(id int64, currentPrice, originalPrice float64, isOnSale bool, discountPercent float64, imageURL string) error
	AddPriceHistory(entry models.PriceHistoryEntry) error
	CreateNotification(n models.Notification) error
}

// Outcome é o resultado da reconciliação de um registro extraído
type Outcome struct {
	Created   bool
	Skipped   bool
	ProductID int64
}

// Reconciler funde produtos descobertos com o inventário existente.
// O índice de URLs normalizadas é montado uma vez por job para evitar
// consultas repetidas ao banco durante o crawl.
type Reconciler struct {
	store      Store
	thresholds detector.Thresholds
	index      map[string]*models.Product
}

// New monta o reconciliador carregando o índice do inventário ativo
func New(store Store, thresholds detector.Thresholds) (*Reconciler, error) {
	products, err := store.GetActiveProducts("")
	if err != nil {
		return nil, err
	}

	index := make(map[string]*models.Product, len(products))
	for i := range products {
		index[strings.ToLower(products[i].URL)] = &products[i]
	}

	return &Reconciler{
		store:      store,
		thresholds: thresholds,
		index:      index,
	}, nil
}

// Reconcile cria ou atualiza o produto correspondente ao registro extraído.
// Registros sem URL, nome ou preço resolvível são pulados sem contar como falha.
func (r *Reconciler) Reconcile(scraped models.ScrapedProduct, category string) (Outcome, error) {
	if scraped.URL == "" || strings.TrimSpace(scraped.Name) == "" || !scraped.HasPrice {
		return Outcome{Skipped: true}, nil
	}

	isOnSale := scraped.OriginalPrice > 0 && scraped.OriginalPrice > scraped.Price
	discountPercent := 0.0
	if isOnSale {
		discountPercent = pricing.DiscountPercent(scraped.OriginalPrice, scraped.Price)
	}
	now := time.Now()

	key := strings.ToLower(scraped.URL)
	if existing, ok := r.index[key]; ok {
		// Detectar mudanças antes de mutar o estado, para que o detector
		// enxergue os valores anteriores à atualização
		for _, n := range detector.Detect(*existing, scraped, r.thresholds) {
			if err := r.store.CreateNotification(n); err != nil {
				log.Printf("Erro ao gravar notificação do produto %d: %v", existing.ID, err)
			}
		}

		imageURL := scraped.ImageURL
		if imageURL == "" {
			imageURL = existing.ImageURL
		}

		if err := r.store.UpdateProductCrawl(existing.ID, scraped.Price, scraped.OriginalPrice, isOnSale, discountPercent, imageURL); err != nil {
			return Outcome{}, err
		}

		if err := r.store.AddPriceHistory(models.PriceHistoryEntry{
			ProductID:       existing.ID,
			Price:           scraped.Price,
			OriginalPrice:   scraped.OriginalPrice,
			IsOnSale:        isOnSale,
			DiscountPercent: discountPercent,
			CrawledAt:       now,
		}); err != nil {
			return Outcome{}, err
		}

		existing.CurrentPrice = scraped.Price
		existing.OriginalPrice = scraped.OriginalPrice
		existing.IsOnSale = isOnSale
		existing.DiscountPercent = discountPercent
		existing.ImageURL = imageURL
		existing.LastCrawledAt = now

		return Outcome{ProductID: existing.ID}, nil
	}

	product := models.Product{
		URL:             scraped.URL,
		Name:            scraped.Name,
		Brand:           scraped.Brand,
		SKU:             scraped.SKU,
		Category:        category,
		CurrentPrice:    scraped.Price,
		OriginalPrice:   scraped.OriginalPrice,
		IsOnSale:        isOnSale,
		DiscountPercent: discountPercent,
		ImageURL:        scraped.ImageURL,
		Active:          true,
		LastCrawledAt:   now,
	}

	id, err := r.store.CreateProduct(product)
	if err != nil {
		return Outcome{}, err
	}
	product.ID = id

	if err := r.store.AddPriceHistory(models.PriceHistoryEntry{
		ProductID:       id,
		Price:           scraped.Price,
		OriginalPrice:   scraped.OriginalPrice,
		IsOnSale:        isOnSale,
		DiscountPercent: discountPercent,
		CrawledAt:       now,
	}); err != nil {
		return Outcome{}, err
	}

	r.index[key] = &product
	return Outcome{Created: true, ProductID: id}, nil
}
