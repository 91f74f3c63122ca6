package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/modestmuse/museshop/internal/model"
	"github.com/modestmuse/museshop/internal/repository"
	"github.com/modestmuse/museshop/internal/validation"
)

// Store is the read-only slice of the data layer the tools may touch.
type Store interface {
	SearchProducts(ctx context.Context, query string, limit int) ([]model.Product, error)
	GetOrderByNumber(ctx context.Context, number string) (*model.Order, error)
}

// toolKind is a closed tagged union over the declared tools. Adding a tool
// means adding a variant here and a case to the dispatcher; an unknown
// name never reaches a store query.
type toolKind int

const (
	toolUnknown toolKind = iota
	toolSearchProducts
	toolLookupOrder
)

func toolKindOf(name string) toolKind {
	switch name {
	case "search_products":
		return toolSearchProducts
	case "lookup_order":
		return toolLookupOrder
	default:
		return toolUnknown
	}
}

const defaultSearchLimit = 4

type searchProductsInput struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type lookupOrderInput struct {
	OrderNumber string `json:"orderNumber"`
}

// runTool executes a single tool-use block and serializes the result. Tool
// failures never propagate: the model always receives a structured payload
// it can narrate.
func (a *Agent) runTool(ctx context.Context, block ContentBlock) string {
	var result any

	switch toolKindOf(block.Name) {
	case toolSearchProducts:
		var in searchProductsInput
		if err := json.Unmarshal(block.Input, &in); err != nil {
			result = map[string]any{"found": false, "error": "Malformed tool input."}
			break
		}
		result = a.searchProducts(ctx, in)
	case toolLookupOrder:
		var in lookupOrderInput
		if err := json.Unmarshal(block.Input, &in); err != nil {
			result = map[string]any{"found": false, "error": "Malformed tool input."}
			break
		}
		result = a.lookupOrder(ctx, in)
	case toolUnknown:
		result = map[string]any{"error": "Unknown tool requested"}
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return `{"found":false,"error":"Tool result could not be serialized."}`
	}
	return string(payload)
}

type productView struct {
	Name            string   `json:"name"`
	Slug            string   `json:"slug"`
	URL             string   `json:"url"`
	Price           string   `json:"price"`
	CompareAtPrice  *string  `json:"compareAtPrice"`
	Category        string   `json:"category,omitempty"`
	Rating          string   `json:"rating"`
	InStock         bool     `json:"inStock"`
	AvailableSizes  []string `json:"availableSizes"`
	AvailableColors []string `json:"availableColors"`
}

func (a *Agent) searchProducts(ctx context.Context, in searchProductsInput) any {
	limit := in.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	products, err := a.store.SearchProducts(ctx, in.Query, limit)
	if err != nil {
		return map[string]any{
			"found": false,
			"error": "Product search is temporarily unavailable. Please try again shortly.",
		}
	}

	if len(products) == 0 {
		return map[string]any{
			"found":   false,
			"message": "No products matched that search. Try different keywords.",
		}
	}

	views := make([]productView, 0, len(products))
	for i := range products {
		p := &products[i]

		rating := "No reviews yet"
		if p.RatingsCount > 0 {
			rating = fmt.Sprintf("%s/5 (%d reviews)", trimZeros(p.RatingsAverage), p.RatingsCount)
		}

		var compareAt *string
		if p.CompareAtPrice != nil {
			s := formatPKR(*p.CompareAtPrice)
			compareAt = &s
		}

		views = append(views, productView{
			Name:            p.Name,
			Slug:            p.Slug,
			URL:             "/shop/" + p.Slug,
			Price:           formatPKR(p.Price),
			CompareAtPrice:  compareAt,
			Category:        p.Category,
			Rating:          rating,
			InStock:         p.InStock(),
			AvailableSizes:  p.AvailableSizes(),
			AvailableColors: p.AvailableColors(),
		})
	}

	return map[string]any{
		"found":    true,
		"count":    len(views),
		"products": views,
	}
}

// orderView is the customer-safe order projection: no shipping address and
// no internal identifiers.
type orderView struct {
	Found         bool   `json:"found"`
	OrderNumber   string `json:"orderNumber"`
	Status        string `json:"status"`
	IsPaid        bool   `json:"isPaid"`
	PaidAt        string `json:"paidAt,omitempty"`
	IsDelivered   bool   `json:"isDelivered"`
	DeliveredAt   string `json:"deliveredAt,omitempty"`
	TotalPrice    string `json:"totalPrice"`
	ItemCount     int    `json:"itemCount"`
	PaymentMethod string `json:"paymentMethod"`
	PlacedOn      string `json:"placedOn"`
}

func (a *Agent) lookupOrder(ctx context.Context, in lookupOrderInput) any {
	normalized := validation.NormalizeOrderNumber(in.OrderNumber)

	order, err := a.store.GetOrderByNumber(ctx, normalized)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return map[string]any{
				"found":   false,
				"message": fmt.Sprintf("No order found with number %q. Please double-check the order number from your confirmation email.", normalized),
			}
		}
		return map[string]any{
			"found": false,
			"error": "Order lookup is temporarily unavailable. Please try the self-service tracker at /track-order or email hello@modestmusestyle.com.",
		}
	}

	return orderView{
		Found:         true,
		OrderNumber:   order.Number,
		Status:        string(order.Status),
		IsPaid:        order.IsPaid,
		PaidAt:        formatDate(order.PaidAt),
		IsDelivered:   order.IsDelivered,
		DeliveredAt:   formatDate(order.DeliveredAt),
		TotalPrice:    formatPKR(order.TotalPrice),
		ItemCount:     len(order.Items),
		PaymentMethod: string(order.PaymentMethod),
		PlacedOn:      formatDate(&order.CreatedAt),
	}
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2 January 2006")
}

// formatPKR renders a minor-unit amount as a display price, e.g. 450000 ->
// "PKR 4,500".
func formatPKR(minor int64) string {
	major := minor / 100
	cents := minor % 100
	if cents == 0 {
		return "PKR " + groupDigits(major)
	}
	return fmt.Sprintf("PKR %s.%02d", groupDigits(major), cents)
}

func groupDigits(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}

	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func trimZeros(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
