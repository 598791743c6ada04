package catalog

import "fmt"

// AllCategories é o filtro que seleciona o catálogo inteiro
const AllCategories = "all"

// Category descreve uma categoria do site monitorado
type Category struct {
	ID    string // identificador usado nos jobs e no filtro
	Slug  string // caminho da listagem no site
	Label string // nome exibido ao usuário
}

// Catálogo fixo de categorias rastreadas. O slug compõe a URL de listagem.
var categories = []Category{
	{ID: "skincare", Slug: "skincare", Label: "Skincare"},
	{ID: "makeup", Slug: "makeup", Label: "Maquiagem"},
	{ID: "fragrance", Slug: "fragrance", Label: "Perfumes"},
	{ID: "haircare", Slug: "hair-care", Label: "Cabelos"},
	{ID: "vitamins", Slug: "vitamins-supplements", Label: "Vitaminas"},
	{ID: "baby", Slug: "baby-care", Label: "Infantil"},
}

// All retorna todas as categorias do catálogo
func All() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// Find busca uma categoria pelo ID
func Find(id string) (Category, bool) {
	for _, c := range categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// PageURL monta a URL de uma página da listagem da categoria
func (c Category) PageURL(baseURL string, page int) string {
	if page <= 1 {
		return fmt.Sprintf("%s/shop/%s", baseURL, c.Slug)
	}
	return fmt.Sprintf("%s/shop/%s?page=%d", baseURL, c.Slug, page)
}
