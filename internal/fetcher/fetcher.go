package fetcher

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// FetchError indica falha ao carregar uma página (timeout, navegação, queda do browser)
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("erro ao carregar página %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// User agents reais rotacionados a cada navegação para reduzir bloqueio anti-bot
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
}

// Viewports comuns, sorteados na criação do browser
var viewports = [][2]int{
	{1920, 1080},
	{1536, 864},
	{1440, 900},
	{1366, 768},
}

// Fetcher mantém uma instância compartilhada do browser headless e
// renderiza páginas sob demanda. Cookies persistem entre navegações
// da mesma execução porque todas as abas compartilham o mesmo perfil.
type Fetcher struct {
	mu            sync.Mutex
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	headless      bool
	navTimeout    time.Duration
}

// New cria um Fetcher. O browser só é iniciado na primeira navegação.
func New(headless bool, navTimeout time.Duration) *Fetcher {
	return &Fetcher{
		headless:   headless,
		navTimeout: navTimeout,
	}
}

// ensureBrowser cria (ou recria, se o browser caiu) a instância compartilhada.
// Deve ser chamado com o mutex em posse do chamador.
func (f *Fetcher) ensureBrowser() (context.Context, error) {
	if f.browserCtx != nil && f.browserCtx.Err() == nil {
		return f.browserCtx, nil
	}

	f.teardown()

	viewport := viewports[rand.Intn(len(viewports))]
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Flag("headless", f.headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("lang", "en-AU"),
		chromedp.WindowSize(viewport[0], viewport[1]),
	)

	f.allocCtx, f.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	f.browserCtx, f.browserCancel = chromedp.NewContext(f.allocCtx)

	// Executar uma ação vazia força o início do processo do browser
	if err := chromedp.Run(f.browserCtx); err != nil {
		f.teardown()
		return nil, fmt.Errorf("erro ao iniciar o browser: %v", err)
	}

	log.Printf("Browser iniciado (viewport %dx%d)", viewport[0], viewport[1])
	return f.browserCtx, nil
}

// Fetch navega até a URL e retorna o HTML renderizado da página
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	browserCtx, err := f.ensureBrowser()
	if err != nil {
		return "", &FetchError{URL: url, Err: err}
	}

	tabCtx, cancelTab := chromedp.NewContext(browserCtx)
	defer cancelTab()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, f.navTimeout)
	defer cancelTimeout()

	headers := network.Headers{
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		"Accept-Language": "en-AU,en;q=0.9",
	}

	var html string
	err = chromedp.Run(tabCtx,
		network.Enable(),
		// Bloquear assets pesados reduz tráfego e acelera a renderização
		network.SetBlockedURLS([]string{"*.png", "*.jpg", "*.jpeg", "*.gif", "*.woff", "*.woff2", "*.mp4"}),
		network.SetExtraHTTPHeaders(headers),
		emulation.SetUserAgentOverride(userAgents[rand.Intn(len(userAgents))]),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		// Se o browser em si caiu, descartar a instância para recriar na próxima chamada
		if f.browserCtx != nil && f.browserCtx.Err() != nil {
			f.teardown()
		}
		return "", &FetchError{URL: url, Err: err}
	}

	return html, nil
}

// Close encerra o browser compartilhado. Seguro para chamar mais de uma vez.
func (f *Fetcher) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.teardown()
}

func (f *Fetcher) teardown() {
	if f.browserCancel != nil {
		f.browserCancel()
		f.browserCancel = nil
	}
	if f.allocCancel != nil {
		f.allocCancel()
		f.allocCancel = nil
	}
	f.browserCtx = nil
	f.allocCtx = nil
}
