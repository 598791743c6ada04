package discovery

import (
	"context"
	"log"
	"math/rand"
	"time"

	"crawler-ofertas/internal/catalog"
	"crawler-ofertas/internal/extractor"
	"crawler-ofertas/internal/models"
)

// Fetcher abstrai a renderização de páginas para permitir testes sem browser
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Discoverer percorre as listagens paginadas de uma categoria
type Discoverer struct {
	fetcher  Fetcher
	baseURL  string
	maxPages int
	delayMin time.Duration
	delayMax time.Duration
}

// New cria um Discoverer. Os delays limitam a taxa de requisições entre páginas.
func New(fetcher Fetcher, baseURL string, maxPages int, delayMin, delayMax time.Duration) *Discoverer {
	return &Discoverer{
		fetcher:  fetcher,
		baseURL:  baseURL,
		maxPages: maxPages,
		delayMin: delayMin,
		delayMax: delayMax,
	}
}

// DiscoverCategory itera as páginas da categoria chamando handle para cada
// produto extraído. Para ao esgotar o catálogo, ao atingir o limite de páginas
// ou quando o sinal de parada for observado (o que não é tratado como erro).
// Erros de fetch interrompem apenas esta categoria.
func (d *Discoverer) DiscoverCategory(ctx context.Context, cat catalog.Category, stopped func() bool, handle func(models.ScrapedProduct)) error {
	for page := 1; page <= d.maxPages; page++ {
		if stopped() {
			log.Printf("Parada solicitada, interrompendo categoria %s na página %d", cat.ID, page)
			return nil
		}

		pageURL := cat.PageURL(d.baseURL, page)
		html, err := d.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			return err
		}

		products := extractor.Extract(html, pageURL)
		if len(products) == 0 {
			log.Printf("Categoria %s esgotada na página %d", cat.ID, page)
			return nil
		}

		for _, p := range products {
			handle(p)
		}

		if !extractor.HasNextPage(html) {
			return nil
		}

		if page < d.maxPages {
			d.waitBetweenPages()
		}
	}
	return nil
}

// waitBetweenPages aguarda um intervalo aleatório para não disparar defesas anti-abuso
func (d *Discoverer) waitBetweenPages() {
	delay := d.delayMin
	if d.delayMax > d.delayMin {
		delay += time.Duration(rand.Int63n(int64(d.delayMax - d.delayMin)))
	}
	time.Sleep(delay)
}
