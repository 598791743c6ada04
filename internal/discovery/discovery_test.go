package discovery

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"crawler-ofertas/internal/catalog"
	"crawler-ofertas/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseURL = "https://shop.example.com"

type fakeFetcher struct {
	pages   map[string]string
	err     error
	fetched []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (string, error) {
	f.fetched = append(f.fetched, url)
	if f.err != nil {
		return "", f.err
	}
	html, ok := f.pages[url]
	if !ok {
		return "", fmt.Errorf("página inesperada: %s", url)
	}
	return html, nil
}

func listingPage(productID int, withNext bool) string {
	next := ""
	if withNext {
		next = `<a rel="next" href="?page=2">Next</a>`
	}
	return fmt.Sprintf(`<html><body>
	<li class="product-card">
		<a href="/product/%d/item">Ver</a>
		<h3>Produto %d</h3>
		<span class="price">$10.00</span>
	</li>
	%s
	</body></html>`, productID, productID, next)
}

func testCategory() catalog.Category {
	cat, _ := catalog.Find("skincare")
	return cat
}

func neverStop() bool { return false }

func TestDiscoverCategoryPaginates(t *testing.T) {
	cat := testCategory()
	f := &fakeFetcher{pages: map[string]string{
		cat.PageURL(baseURL, 1): listingPage(1, true),
		cat.PageURL(baseURL, 2): listingPage(2, false),
	}}

	d := New(f, baseURL, 10, 0, 0)

	var found []models.ScrapedProduct
	err := d.DiscoverCategory(context.Background(), cat, neverStop, func(p models.ScrapedProduct) {
		found = append(found, p)
	})

	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "Produto 1", found[0].Name)
	assert.Equal(t, "Produto 2", found[1].Name)
	// Página 2 não tem link de próxima página, então a 3 nunca é buscada
	assert.Len(t, f.fetched, 2)
}

func TestDiscoverCategoryStopsOnEmptyPage(t *testing.T) {
	cat := testCategory()
	f := &fakeFetcher{pages: map[string]string{
		cat.PageURL(baseURL, 1): `<html><body><p>nenhum resultado</p></body></html>`,
	}}

	d := New(f, baseURL, 10, 0, 0)

	count := 0
	err := d.DiscoverCategory(context.Background(), cat, neverStop, func(models.ScrapedProduct) { count++ })

	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Len(t, f.fetched, 1)
}

func TestDiscoverCategoryRespectsMaxPages(t *testing.T) {
	cat := testCategory()
	f := &fakeFetcher{pages: map[string]string{
		cat.PageURL(baseURL, 1): listingPage(1, true),
	}}

	d := New(f, baseURL, 1, 0, 0)

	err := d.DiscoverCategory(context.Background(), cat, neverStop, func(models.ScrapedProduct) {})

	require.NoError(t, err)
	assert.Len(t, f.fetched, 1)
}

func TestDiscoverCategoryHonorsStopSignal(t *testing.T) {
	cat := testCategory()
	f := &fakeFetcher{pages: map[string]string{}}

	d := New(f, baseURL, 10, 0, 0)

	err := d.DiscoverCategory(context.Background(), cat, func() bool { return true }, func(models.ScrapedProduct) {
		t.Fatal("nenhum produto deveria ser processado após o sinal de parada")
	})

	// Parada cooperativa não é erro e nada é buscado
	require.NoError(t, err)
	assert.Empty(t, f.fetched)
}

func TestDiscoverCategoryReturnsFetchError(t *testing.T) {
	cat := testCategory()
	f := &fakeFetcher{err: errors.New("navegação expirou")}

	d := New(f, baseURL, 10, 0, 0)

	err := d.DiscoverCategory(context.Background(), cat, neverStop, func(models.ScrapedProduct) {})
	assert.Error(t, err)
}
