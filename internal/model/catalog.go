package model

import "time"

// Variant is a size/color combination of a product with its own stock
// count and a globally unique SKU.
type Variant struct {
	Size  string `json:"size"`
	Color string `json:"color"`
	Stock int    `json:"stock"`
	SKU   string `json:"sku"`
}

// Product is a catalog entry. Prices are minor units. RatingsAverage and
// RatingsCount always equal the mean/count of the product's current
// reviews; the repository recomputes them on every review write.
type Product struct {
	ID             string
	Name           string
	Slug           string
	Description    string
	Price          int64
	CompareAtPrice *int64
	Category       string
	Image          string
	Published      bool
	Variants       []Variant
	RatingsAverage float64
	RatingsCount   int
	CreatedAt      time.Time
}

// InStock reports whether any variant has stock left.
func (p *Product) InStock() bool {
	for _, v := range p.Variants {
		if v.Stock > 0 {
			return true
		}
	}
	return false
}

// AvailableSizes returns the distinct sizes across variants, in first-seen order.
func (p *Product) AvailableSizes() []string {
	return distinct(p.Variants, func(v Variant) string { return v.Size })
}

// AvailableColors returns the distinct colors across variants, in first-seen order.
func (p *Product) AvailableColors() []string {
	return distinct(p.Variants, func(v Variant) string { return v.Color })
}

func distinct(variants []Variant, key func(Variant) string) []string {
	seen := make(map[string]struct{}, len(variants))
	var out []string
	for _, v := range variants {
		k := key(v)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// Review is a customer review of a product. One review per user per product.
type Review struct {
	ID        string
	ProductID string
	UserID    string
	Rating    int
	Title     string
	Body      string
	CreatedAt time.Time
}
