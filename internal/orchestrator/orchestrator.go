package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"crawler-ofertas/internal/catalog"
	"crawler-ofertas/internal/detector"
	"crawler-ofertas/internal/discovery"
	"crawler-ofertas/internal/extractor"
	"crawler-ofertas/internal/models"
	"crawler-ofertas/internal/reconciler"
)

// ErrJobRunning indica que já existe um job de crawl em execução no processo
var ErrJobRunning = errors.New("já existe um job de crawl em execução")

// Chaves de configuração de ritmo lidas da tabela settings
const (
	settingDelayMinMs = "rate_limit_delay_min_ms"
	settingDelayMaxMs = "rate_limit_delay_max_ms"
	settingMaxPages   = "max_pages_per_category"
)

// Janela de frescor da fase de refresh: produtos sem crawl há mais tempo
// que isso são revisitados quando a descoberta é pulada
const refreshWindow = time.Hour

// Store são as operações de persistência usadas pelo orquestrador
type Store interface {
	reconciler.Store
	GetSettings() (map[string]string, error)
	CreateJob(job models.CrawlJob) (int64, error)
	FinalizeJob(id int64, status string, total, crawled, newProducts, failed int, errorMessage string) error
	ResetRunningJobs() (int64, error)
	GetProductsByIDs(ids []int64) ([]models.Product, error)
	GetProductsNotCrawledSince(since time.Time) ([]models.Product, error)
}

// Fetcher é o recurso de renderização de páginas de um job
type Fetcher interface {
	discovery.Fetcher
	Close()
}

// OwnerNotifier recebe o resumo de jobs concluídos (melhor esforço)
type OwnerNotifier interface {
	Notify(title, content string) error
}

// Options controla o disparo de um job de crawl
type Options struct {
	JobType     string
	Category    string  // id de categoria ou vazio/"all" para o catálogo inteiro
	ProductIDs  []int64 // refresh manual de produtos específicos
	DiscoverNew bool    // true = fase de descoberta; false = apenas refresh
}

// Config ajusta os padrões do orquestrador, sobrescritos pela tabela settings
type Config struct {
	BaseURL  string
	MaxPages int
	DelayMin time.Duration
	DelayMax time.Duration
}

// runtime é o contexto de uma execução: job ativo, flag de parada e browser.
// Criado no disparo e descartado na finalização, nunca reaproveitado entre jobs.
type runtime struct {
	jobID   int64
	stop    atomic.Bool
	fetcher Fetcher
}

// Orchestrator controla o ciclo de vida dos jobs de crawl.
// Apenas um job pode estar em execução por processo.
type Orchestrator struct {
	store      Store
	newFetcher func() Fetcher
	notifier   OwnerNotifier // pode ser nil
	config     Config

	mu     sync.Mutex
	active *runtime
}

// New cria o orquestrador. newFetcher é chamado a cada job para criar o
// browser da execução, que é sempre derrubado na finalização.
func New(store Store, newFetcher func() Fetcher, notifier OwnerNotifier, config Config) *Orchestrator {
	return &Orchestrator{
		store:      store,
		newFetcher: newFetcher,
		notifier:   notifier,
		config:     config,
	}
}

// StartCrawl dispara um job em background e retorna imediatamente o ID criado.
// Retorna ErrJobRunning se já houver um job ativo (single-flight).
func (o *Orchestrator) StartCrawl(opts Options) (int64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.active != nil {
		return 0, ErrJobRunning
	}

	category := opts.Category
	if category == "" {
		category = catalog.AllCategories
	}

	jobID, err := o.store.CreateJob(models.CrawlJob{
		JobType:   opts.JobType,
		Status:    models.JobStatusRunning,
		Category:  category,
		StartedAt: time.Now(),
	})
	if err != nil {
		return 0, fmt.Errorf("erro ao criar job: %v", err)
	}

	rt := &runtime{jobID: jobID, fetcher: o.newFetcher()}
	o.active = rt

	log.Printf("Job %d iniciado (%s, categoria %s)", jobID, opts.JobType, category)
	go o.run(rt, opts)

	return jobID, nil
}

// Stop solicita a parada cooperativa do job ativo.
// Retorna false quando não há job em execução.
func (o *Orchestrator) Stop() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active == nil {
		return false
	}
	o.active.stop.Store(true)
	log.Printf("Parada solicitada para o job %d", o.active.jobID)
	return true
}

// ActiveJobID retorna o ID do job em execução, se houver
func (o *Orchestrator) ActiveJobID() (int64, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active == nil {
		return 0, false
	}
	return o.active.jobID, true
}

// ResetStuckJobs força jobs abandonados em "running" para "stopped".
// Deve ser chamado na inicialização do processo e pode ser acionado sob demanda.
func (o *Orchestrator) ResetStuckJobs() (int64, error) {
	count, err := o.store.ResetRunningJobs()
	if err != nil {
		return 0, err
	}
	if count > 0 {
		log.Printf("%d job(s) preso(s) em running foram marcados como stopped", count)
	}
	return count, nil
}

// run executa o corpo do job. A finalização é garantida mesmo em pânico:
// derruba o browser, grava status e contadores e libera a vaga de job ativo.
func (o *Orchestrator) run(rt *runtime, opts Options) {
	var crawled, newCount, failed int
	var errorMessage string

	defer func() {
		if rec := recover(); rec != nil {
			failed++
			errorMessage = fmt.Sprintf("erro inesperado: %v", rec)
			log.Printf("Job %d abortado por erro inesperado: %v", rt.jobID, rec)
		}

		rt.fetcher.Close()

		status := models.JobStatusCompleted
		if rt.stop.Load() {
			status = models.JobStatusStopped
		} else if failed > 0 && crawled == 0 {
			status = models.JobStatusFailed
		}

		total := crawled + failed
		if err := o.store.FinalizeJob(rt.jobID, status, total, crawled, newCount, failed, errorMessage); err != nil {
			log.Printf("Erro ao finalizar job %d: %v", rt.jobID, err)
		}

		o.mu.Lock()
		o.active = nil
		o.mu.Unlock()

		log.Printf("Job %d finalizado: %s (%d processados, %d novos, %d falhas)", rt.jobID, status, crawled, newCount, failed)

		if status == models.JobStatusCompleted && crawled > 0 && o.notifier != nil {
			content := fmt.Sprintf("Crawl concluído: %d produtos processados, %d novos, %d falhas.", crawled, newCount, failed)
			if err := o.notifier.Notify("Crawl concluído", content); err != nil {
				log.Printf("Erro ao enviar resumo do job %d: %v", rt.jobID, err)
			}
		}
	}()

	ctx := context.Background()

	settings, err := o.store.GetSettings()
	if err != nil {
		log.Printf("Erro ao carregar configurações, usando padrões: %v", err)
		settings = nil
	}
	thresholds := detector.ThresholdsFromSettings(settings)
	delayMin, delayMax := o.delays(settings)
	maxPages := o.maxPages(settings)

	rec, err := reconciler.New(o.store, thresholds)
	if err != nil {
		failed++
		errorMessage = fmt.Sprintf("erro ao montar índice do inventário: %v", err)
		log.Printf("Job %d: %s", rt.jobID, errorMessage)
		return
	}

	stopped := rt.stop.Load

	if opts.DiscoverNew {
		disc := discovery.New(rt.fetcher, o.config.BaseURL, maxPages, delayMin, delayMax)

		for _, cat := range o.targetCategories(opts.Category) {
			if stopped() {
				break
			}

			log.Printf("Job %d: descobrindo categoria %s", rt.jobID, cat.ID)
			err := disc.DiscoverCategory(ctx, cat, stopped, func(sp models.ScrapedProduct) {
				outcome, err := rec.Reconcile(sp, cat.ID)
				if err != nil {
					failed++
					log.Printf("Erro ao reconciliar %s: %v", sp.URL, err)
					return
				}
				if outcome.Skipped {
					return
				}
				crawled++
				if outcome.Created {
					newCount++
				}
			})
			if err != nil {
				// Falha de fetch encerra só esta categoria; o job segue
				failed++
				errorMessage = err.Error()
				log.Printf("Erro na categoria %s, seguindo para a próxima: %v", cat.ID, err)
			}
		}
		return
	}

	// Refresh manual de produtos já conhecidos, usado quando a
	// descoberta é pulada (produtos explícitos ou inventário defasado)
	products, err := o.refreshTargets(opts)
	if err != nil {
		failed++
		errorMessage = fmt.Sprintf("erro ao selecionar produtos para refresh: %v", err)
		log.Printf("Job %d: %s", rt.jobID, errorMessage)
		return
	}
	log.Printf("Job %d: refresh de %d produto(s)", rt.jobID, len(products))

	for i, product := range products {
		if stopped() {
			break
		}

		html, err := rt.fetcher.Fetch(ctx, product.URL)
		if err != nil {
			failed++
			log.Printf("Erro ao recarregar produto %d (%s): %v", product.ID, product.URL, err)
			continue
		}

		records := extractor.Extract(html, product.URL)
		if len(records) == 0 {
			failed++
			log.Printf("Nenhum dado extraído para o produto %d (%s)", product.ID, product.URL)
			continue
		}

		outcome, err := rec.Reconcile(records[0], product.Category)
		if err != nil {
			failed++
			log.Printf("Erro ao reconciliar produto %d: %v", product.ID, err)
			continue
		}
		if !outcome.Skipped {
			crawled++
		}

		if i < len(products)-1 {
			sleepBetween(delayMin, delayMax)
		}
	}
}

// targetCategories resolve o filtro do job para a lista de categorias a visitar
func (o *Orchestrator) targetCategories(filter string) []catalog.Category {
	if filter != "" && filter != catalog.AllCategories {
		if cat, ok := catalog.Find(filter); ok {
			return []catalog.Category{cat}
		}
		log.Printf("Categoria desconhecida %q, usando o catálogo inteiro", filter)
	}
	return catalog.All()
}

// refreshTargets seleciona os produtos do refresh: os IDs pedidos ou
// qualquer produto ativo fora da janela de frescor
func (o *Orchestrator) refreshTargets(opts Options) ([]models.Product, error) {
	if len(opts.ProductIDs) > 0 {
		return o.store.GetProductsByIDs(opts.ProductIDs)
	}
	return o.store.GetProductsNotCrawledSince(time.Now().Add(-refreshWindow))
}

func (o *Orchestrator) delays(settings map[string]string) (time.Duration, time.Duration) {
	delayMin := o.config.DelayMin
	delayMax := o.config.DelayMax
	if v, ok := settingInt(settings, settingDelayMinMs); ok {
		delayMin = time.Duration(v) * time.Millisecond
	}
	if v, ok := settingInt(settings, settingDelayMaxMs); ok {
		delayMax = time.Duration(v) * time.Millisecond
	}
	if delayMax < delayMin {
		delayMax = delayMin
	}
	return delayMin, delayMax
}

func (o *Orchestrator) maxPages(settings map[string]string) int {
	if v, ok := settingInt(settings, settingMaxPages); ok && v > 0 {
		return v
	}
	return o.config.MaxPages
}

func settingInt(settings map[string]string, key string) (int, bool) {
	v, ok := settings[key]
	if !ok {
		return 0, false
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed < 0 {
		return 0, false
	}
	return parsed, true
}

func sleepBetween(min, max time.Duration) {
	delay := min
	if max > min {
		delay += time.Duration(rand.Int63n(int64(max - min)))
	}
	time.Sleep(delay)
}
