package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"crawler-ofertas/internal/catalog"
	"crawler-ofertas/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseURL = "https://shop.example.com"

type finalizedJob struct {
	status       string
	total        int
	crawled      int
	newProducts  int
	failed       int
	errorMessage string
}

type fakeStore struct {
	mu            sync.Mutex
	products      []models.Product
	nextProductID int64
	nextJobID     int64
	finalized     map[int64]finalizedJob
	resetCount    int64
	history       []models.PriceHistoryEntry
	notifications []models.Notification
	settings      map[string]string
}

func newStore(products ...models.Product) *fakeStore {
	return &fakeStore{
		products:      products,
		nextProductID: 100,
		finalized:     make(map[int64]finalizedJob),
		settings:      map[string]string{"rate_limit_delay_min_ms": "0", "rate_limit_delay_max_ms": "0"},
	}
}

func (s *fakeStore) GetActiveProducts(category string) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Product(nil), s.products...), nil
}

func (s *fakeStore) CreateProduct(p models.Product) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextProductID++
	p.ID = s.nextProductID
	s.products = append(s.products, p)
	return p.ID, nil
}

func (s *fakeStore) UpdateProductCrawl(id int64, currentPrice, originalPrice float64, isOnSale bool, discountPercent float64, imageURL string) error {
	return nil
}

func (s *fakeStore) AddPriceHistory(entry models.PriceHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, entry)
	return nil
}

func (s *fakeStore) CreateNotification(n models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, n)
	return nil
}

func (s *fakeStore) GetSettings() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings, nil
}

func (s *fakeStore) CreateJob(job models.CrawlJob) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextJobID++
	return s.nextJobID, nil
}

func (s *fakeStore) FinalizeJob(id int64, status string, total, crawled, newProducts, failed int, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalized[id] = finalizedJob{status, total, crawled, newProducts, failed, errorMessage}
	return nil
}

func (s *fakeStore) ResetRunningJobs() (int64, error) {
	return s.resetCount, nil
}

func (s *fakeStore) GetProductsByIDs(ids []int64) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Product
	for _, p := range s.products {
		for _, id := range ids {
			if p.ID == id {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func (s *fakeStore) GetProductsNotCrawledSince(since time.Time) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Product
	for _, p := range s.products {
		if p.LastCrawledAt.Before(since) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakeStore) finalizedJob(id int64) (finalizedJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.finalized[id]
	return job, ok
}

type fakeFetcher struct {
	mu      sync.Mutex
	pages   map[string]string
	err     error
	started chan struct{} // fechado na primeira navegação
	release chan struct{} // segura a primeira navegação até o teste liberar
	once    sync.Once
	closed  bool
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (string, error) {
	f.once.Do(func() {
		if f.started != nil {
			close(f.started)
		}
		if f.release != nil {
			<-f.release
		}
	})
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	html, ok := f.pages[url]
	if !ok {
		return "", errors.New("página inesperada: " + url)
	}
	return html, nil
}

func (f *fakeFetcher) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeFetcher) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakeNotifier struct {
	mu     sync.Mutex
	titles []string
}

func (n *fakeNotifier) Notify(title, content string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.titles = append(n.titles, title)
	return nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.titles)
}

func listingPage(withNext bool) string {
	next := ""
	if withNext {
		next = `<a rel="next" href="?page=2">Next</a>`
	}
	return `<html><body>
	<li class="product-card">
		<a href="/product/1001/face-cream">Ver</a>
		<h3>Face Cream</h3>
		<span class="price">$24.50</span>
	</li>
	<li class="product-card">
		<a href="/product/1002/soap-bar">Ver</a>
		<h3>Soap Bar</h3>
		<span class="price">$6.00</span>
	</li>
	` + next + `</body></html>`
}

func newOrchestrator(store *fakeStore, f *fakeFetcher, notifier OwnerNotifier) *Orchestrator {
	return New(store, func() Fetcher { return f }, notifier, Config{
		BaseURL:  baseURL,
		MaxPages: 5,
	})
}

func waitFinalized(t *testing.T, store *fakeStore, jobID int64) finalizedJob {
	t.Helper()
	require.Eventually(t, func() bool {
		_, ok := store.finalizedJob(jobID)
		return ok
	}, 2*time.Second, 10*time.Millisecond)
	job, _ := store.finalizedJob(jobID)
	return job
}

func TestStartCrawlSingleFlight(t *testing.T) {
	store := newStore()
	f := &fakeFetcher{
		err:     errors.New("timeout"),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	orch := newOrchestrator(store, f, nil)

	jobID, err := orch.StartCrawl(Options{JobType: models.JobTypeManual, Category: "skincare", DiscoverNew: true})
	require.NoError(t, err)

	<-f.started

	// Segundo disparo com job ativo é recusado sem criar outro job
	_, err = orch.StartCrawl(Options{JobType: models.JobTypeManual, DiscoverNew: true})
	assert.ErrorIs(t, err, ErrJobRunning)

	close(f.release)
	waitFinalized(t, store, jobID)

	_, active := orch.ActiveJobID()
	assert.False(t, active)

	// Com a vaga liberada, um novo crawl pode ser disparado
	jobID2, err := orch.StartCrawl(Options{JobType: models.JobTypeManual, Category: "skincare", DiscoverNew: true})
	require.NoError(t, err)
	waitFinalized(t, store, jobID2)
}

func TestStopMidDiscoveryFinishesAsStopped(t *testing.T) {
	cat, _ := catalog.Find("skincare")
	store := newStore()
	f := &fakeFetcher{
		pages: map[string]string{
			cat.PageURL(baseURL, 1): listingPage(true),
		},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	orch := newOrchestrator(store, f, nil)

	jobID, err := orch.StartCrawl(Options{JobType: models.JobTypeManual, Category: "skincare", DiscoverNew: true})
	require.NoError(t, err)

	<-f.started
	assert.True(t, orch.Stop())
	close(f.release)

	job := waitFinalized(t, store, jobID)

	// A página já em andamento termina; a parada vale a partir da próxima
	assert.Equal(t, models.JobStatusStopped, job.status)
	assert.Equal(t, 2, job.crawled)
	assert.True(t, f.isClosed())
}

func TestAllFetchesFailedFinishesAsFailed(t *testing.T) {
	store := newStore()
	f := &fakeFetcher{err: errors.New("navegação expirou")}
	orch := newOrchestrator(store, f, nil)

	jobID, err := orch.StartCrawl(Options{JobType: models.JobTypeScheduled, Category: "skincare", DiscoverNew: true})
	require.NoError(t, err)

	job := waitFinalized(t, store, jobID)
	assert.Equal(t, models.JobStatusFailed, job.status)
	assert.Zero(t, job.crawled)
	assert.Equal(t, 1, job.failed)
	assert.NotEmpty(t, job.errorMessage)
	assert.True(t, f.isClosed())
}

func TestCompletedJobNotifiesOwner(t *testing.T) {
	cat, _ := catalog.Find("skincare")
	store := newStore()
	f := &fakeFetcher{
		pages: map[string]string{
			cat.PageURL(baseURL, 1): listingPage(false),
		},
	}
	notifier := &fakeNotifier{}
	orch := newOrchestrator(store, f, notifier)

	jobID, err := orch.StartCrawl(Options{JobType: models.JobTypeScheduled, Category: "skincare", DiscoverNew: true})
	require.NoError(t, err)

	job := waitFinalized(t, store, jobID)
	assert.Equal(t, models.JobStatusCompleted, job.status)
	assert.Equal(t, 2, job.crawled)
	assert.Equal(t, 2, job.newProducts)
	assert.Equal(t, 2, job.total)

	require.Eventually(t, func() bool { return notifier.count() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestRefreshPathCrawlsRequestedProducts(t *testing.T) {
	productURL := "https://shop.example.com/product/88123/vitamin-c-serum"
	store := newStore(models.Product{
		ID:           7,
		URL:          productURL,
		Name:         "Vitamin C Serum",
		Category:     "skincare",
		CurrentPrice: 29.99,
		Active:       true,
	})
	store.nextProductID = 7

	detailPage := `<html><head><script type="application/ld+json">
	{"@type": "Product", "name": "Vitamin C Serum", "offers": {"price": "19.99"}}
	</script></head></html>`

	f := &fakeFetcher{pages: map[string]string{productURL: detailPage}}
	orch := newOrchestrator(store, f, nil)

	jobID, err := orch.StartCrawl(Options{
		JobType:     models.JobTypeManual,
		ProductIDs:  []int64{7},
		DiscoverNew: false,
	})
	require.NoError(t, err)

	job := waitFinalized(t, store, jobID)
	assert.Equal(t, models.JobStatusCompleted, job.status)
	assert.Equal(t, 1, job.crawled)
	assert.Zero(t, job.newProducts)

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.history, 1)
	assert.Equal(t, int64(7), store.history[0].ProductID)
	// Queda de 33.34% dispara a notificação de price_drop
	require.Len(t, store.notifications, 1)
	assert.Equal(t, models.NotificationPriceDrop, store.notifications[0].Type)
}

func TestResetStuckJobs(t *testing.T) {
	store := newStore()
	store.resetCount = 3
	orch := newOrchestrator(store, &fakeFetcher{}, nil)

	count, err := orch.ResetStuckJobs()
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}
