package extractor

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"

	"crawler-ofertas/internal/models"
	"crawler-ofertas/internal/pricing"

	"github.com/PuerkitoBio/goquery"
)

var (
	// Preço com prefixo de moeda no texto livre do container (ex: "$29.99")
	currencyRe = regexp.MustCompile(`\$\s*([0-9][0-9,]*(?:\.[0-9]{1,2})?)`)

	// Segmento numérico de ID de produto no caminho da URL (ex: /product/84203/...)
	skuFromURLRe = regexp.MustCompile(`/(\d{4,})(?:[/?#]|$)`)
)

// Extract analisa o HTML renderizado e retorna os produtos encontrados.
// Tenta primeiro os dados estruturados (JSON-LD) e, se nada for encontrado,
// cai para heurísticas sobre o DOM. Registros sem preço resolvível são descartados.
func Extract(html, pageURL string) []models.ScrapedProduct {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	products := extractStructuredData(doc)
	if len(products) == 0 {
		products = extractFromDOM(doc, pageURL)
	}

	// Uma página de detalhe costuma trazer um único produto sem URL própria
	if len(products) == 1 && products[0].URL == "" {
		products[0].URL = pageURL
	}

	var out []models.ScrapedProduct
	for _, p := range products {
		p.Name = strings.TrimSpace(p.Name)
		p.Brand = strings.TrimSpace(p.Brand)
		if !p.HasPrice {
			continue
		}
		// Preço original só vale se for maior que o preço atual
		if p.OriginalPrice <= p.Price {
			p.OriginalPrice = 0
		}
		if p.SKU == "" {
			p.SKU = skuFromURL(p.URL)
		}
		out = append(out, p)
	}
	return out
}

// HasNextPage verifica se a página renderizada possui link para a próxima página
func HasNextPage(html string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}

	selectors := []string{
		`a[rel="next"]`,
		`a[aria-label="Next"]`,
		`[class*="pagination"] a[class*="next"]`,
	}
	for _, selector := range selectors {
		found := false
		doc.Find(selector).EachWithBreak(func(i int, s *goquery.Selection) bool {
			if !strings.Contains(s.AttrOr("class", ""), "disabled") {
				found = true
				return false
			}
			return true
		})
		if found {
			return true
		}
	}
	return false
}

// extractStructuredData coleta blocos JSON-LD do tipo Product
func extractStructuredData(doc *goquery.Document) []models.ScrapedProduct {
	var products []models.ScrapedProduct
	doc.Find(`script[type="application/ld+json"]`).Each(func(i int, s *goquery.Selection) {
		var data interface{}
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			// JSON-LD malformado não invalida o resto da página
			return
		}
		collectProducts(data, &products)
	})
	return products
}

// collectProducts percorre a árvore JSON-LD (incluindo @graph e listas)
// coletando todo nó cujo @type seja Product
func collectProducts(node interface{}, out *[]models.ScrapedProduct) {
	switch v := node.(type) {
	case []interface{}:
		for _, item := range v {
			collectProducts(item, out)
		}
	case map[string]interface{}:
		if hasLDType(v, "Product") {
			if p, ok := parseLDProduct(v); ok {
				*out = append(*out, p)
			}
			return
		}
		for _, child := range v {
			collectProducts(child, out)
		}
	}
}

func hasLDType(m map[string]interface{}, want string) bool {
	switch t := m["@type"].(type) {
	case string:
		return t == want
	case []interface{}:
		for _, item := range t {
			if s, ok := item.(string); ok && s == want {
				return true
			}
		}
	}
	return false
}

func parseLDProduct(m map[string]interface{}) (models.ScrapedProduct, bool) {
	p := models.ScrapedProduct{
		Name: ldString(m["name"]),
		URL:  ldString(m["url"]),
	}

	p.SKU = ldString(m["sku"])
	if p.SKU == "" {
		p.SKU = ldString(m["mpn"])
	}

	switch brand := m["brand"].(type) {
	case string:
		p.Brand = brand
	case map[string]interface{}:
		p.Brand = ldString(brand["name"])
	}

	switch image := m["image"].(type) {
	case string:
		p.ImageURL = image
	case []interface{}:
		if len(image) > 0 {
			p.ImageURL = ldString(image[0])
		}
	}

	if offer, ok := primaryOffer(m["offers"]); ok {
		if price, ok := ldFloat(offer["price"]); ok {
			p.Price = price
			p.HasPrice = true
		}
		if p.URL == "" {
			p.URL = ldString(offer["url"])
		}
		p.OriginalPrice = listPriceFromSpec(offer["priceSpecification"])
	}

	if p.Name == "" && !p.HasPrice {
		return p, false
	}
	return p, true
}

// primaryOffer retorna a oferta principal: o próprio objeto, ou a primeira de uma lista
func primaryOffer(v interface{}) (map[string]interface{}, bool) {
	switch offers := v.(type) {
	case map[string]interface{}:
		if hasLDType(offers, "AggregateOffer") {
			// AggregateOffer traz lowPrice em vez de price
			if _, ok := offers["price"]; !ok {
				offers["price"] = offers["lowPrice"]
			}
		}
		return offers, true
	case []interface{}:
		for _, item := range offers {
			if m, ok := item.(map[string]interface{}); ok {
				return m, true
			}
		}
	}
	return nil, false
}

// listPriceFromSpec procura o preço de lista/sugerido dentro de priceSpecification
func listPriceFromSpec(v interface{}) float64 {
	specs := []interface{}{}
	switch s := v.(type) {
	case map[string]interface{}:
		specs = append(specs, s)
	case []interface{}:
		specs = s
	}

	for _, item := range specs {
		spec, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		priceType := ldString(spec["priceType"])
		if strings.Contains(priceType, "ListPrice") || strings.Contains(priceType, "SRP") ||
			strings.Contains(priceType, "SuggestedRetailPrice") {
			if price, ok := ldFloat(spec["price"]); ok {
				return price
			}
		}
	}
	return 0
}

func ldString(v interface{}) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func ldFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		return pricing.ParsePrice(n)
	}
	return 0, false
}

// extractFromDOM é o fallback heurístico: varre âncoras para páginas de produto
// e tenta localizar nome, preço, imagem e marca dentro do container de cada uma
func extractFromDOM(doc *goquery.Document, pageURL string) []models.ScrapedProduct {
	seen := make(map[string]bool)
	var products []models.ScrapedProduct

	doc.Find("a[href]").Each(func(i int, a *goquery.Selection) {
		href := a.AttrOr("href", "")
		if !isProductLink(href) {
			return
		}

		absURL := absoluteURL(pageURL, href)
		if absURL == "" {
			return
		}
		key := strings.ToLower(absURL)
		if seen[key] {
			return
		}
		seen[key] = true

		container := a.Closest(`li, article, [class*="product-card"], [class*="product-tile"]`)
		if container.Length() == 0 {
			container = a.Parent()
		}

		p := models.ScrapedProduct{URL: absURL}

		p.Name = firstText(container, "h1, h2, h3, h4", `[class*="title"], [class*="name"]`)
		if p.Name == "" {
			p.Name = strings.TrimSpace(a.Text())
		}

		if price, ok := findPrice(container); ok {
			p.Price = price
			p.HasPrice = true
		}
		p.OriginalPrice = findOriginalPrice(container)

		img := container.Find("img").First()
		p.ImageURL = img.AttrOr("src", img.AttrOr("data-src", ""))

		p.Brand = strings.TrimSpace(container.Find(`[class*="brand"]`).First().Text())

		products = append(products, p)
	})

	return products
}

func isProductLink(href string) bool {
	return strings.Contains(href, "/product/") || strings.Contains(href, "/buy/")
}

func absoluteURL(pageURL, href string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	resolved.Fragment = ""
	return resolved.String()
}

func firstText(container *goquery.Selection, selectors ...string) string {
	for _, selector := range selectors {
		text := strings.TrimSpace(container.Find(selector).First().Text())
		if text != "" {
			return text
		}
	}
	return ""
}

// findPrice procura o preço atual: elementos com classe de preço primeiro,
// senão um número com prefixo de moeda no texto do container
func findPrice(container *goquery.Selection) (float64, bool) {
	priceText := strings.TrimSpace(container.Find(`[class*="price"]`).First().Text())
	if priceText != "" {
		if match := currencyRe.FindString(priceText); match != "" {
			priceText = match
		}
		if price, ok := pricing.ParsePrice(priceText); ok {
			return price, true
		}
	}

	if match := currencyRe.FindString(container.Text()); match != "" {
		return pricing.ParsePrice(match)
	}
	return 0, false
}

// findOriginalPrice procura um preço riscado/de lista dentro do container
func findOriginalPrice(container *goquery.Selection) float64 {
	selectors := []string{
		`del`, `s`,
		`[class*="was-price"]`, `[class*="original-price"]`, `[class*="rrp"]`, `[class*="strike"]`,
	}
	for _, selector := range selectors {
		text := strings.TrimSpace(container.Find(selector).First().Text())
		if text == "" {
			continue
		}
		if match := currencyRe.FindString(text); match != "" {
			text = match
		}
		if price, ok := pricing.ParsePrice(text); ok {
			return price
		}
	}
	return 0
}

func skuFromURL(productURL string) string {
	parsed, err := url.Parse(productURL)
	if err != nil {
		return ""
	}
	matches := skuFromURLRe.FindStringSubmatch(parsed.Path + "/")
	if len(matches) > 1 {
		return matches[1]
	}
	return ""
}
