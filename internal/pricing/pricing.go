package pricing

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var nonNumericRe = regexp.MustCompile(`[^0-9.]`)

// ParsePrice converte um texto de preço (ex: "$1,234.56") em float64.
// Retorna false quando o texto não contém um preço resolvível.
func ParsePrice(text string) (float64, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, false
	}

	cleaned := nonNumericRe.ReplaceAllString(text, "")
	if cleaned == "" {
		return 0, false
	}

	price, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}

	return price, true
}

// DiscountPercent calcula o percentual de desconto entre o preço original e o atual,
// arredondado para duas casas decimais. Retorna 0 quando não há preço original válido.
func DiscountPercent(originalPrice, currentPrice float64) float64 {
	if originalPrice <= 0 {
		return 0
	}
	return math.Round((originalPrice-currentPrice)/originalPrice*10000) / 100
}
