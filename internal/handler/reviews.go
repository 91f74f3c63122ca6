package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/modestmuse/museshop/internal/middleware"
	"github.com/modestmuse/museshop/internal/model"
)

type createReviewRequest struct {
	ProductID string `json:"productId"`
	Rating    int    `json:"rating"`
	Title     string `json:"title,omitempty"`
	Body      string `json:"body"`
}

type reviewResponse struct {
	ID        string `json:"id"`
	ProductID string `json:"productId"`
	Rating    int    `json:"rating"`
	Title     string `json:"title,omitempty"`
	Body      string `json:"body"`
}

// CreateReview adds a product review for the authenticated user.
func (h *Handler) CreateReview(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		h.respondMessage(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req createReviewRequest
	if !h.decode(w, r, &req) {
		return
	}

	review := &model.Review{
		ProductID: req.ProductID,
		Rating:    req.Rating,
		Title:     req.Title,
		Body:      req.Body,
	}
	if err := h.service.CreateReview(r.Context(), user, review); err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, http.StatusCreated, reviewResponse{
		ID:        review.ID,
		ProductID: review.ProductID,
		Rating:    review.Rating,
		Title:     review.Title,
		Body:      review.Body,
	}, nil)
}

// DeleteReview removes a review. Author or admin only.
func (h *Handler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		h.respondMessage(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := h.service.DeleteReview(r.Context(), user, chi.URLParam(r, "id")); err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondMessage(w, http.StatusOK, "review deleted")
}

type adjustStockRequest struct {
	SKU   string `json:"sku"`
	Delta int    `json:"delta"`
}

type variantResponse struct {
	Size  string `json:"size"`
	Color string `json:"color"`
	Stock int    `json:"stock"`
	SKU   string `json:"sku"`
}

// AdjustStock changes a variant's stock level. Admin only.
func (h *Handler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		h.respondMessage(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req adjustStockRequest
	if !h.decode(w, r, &req) {
		return
	}

	product, err := h.service.AdjustVariantStock(r.Context(), user, chi.URLParam(r, "id"), req.SKU, req.Delta)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	variants := make([]variantResponse, 0, len(product.Variants))
	for _, v := range product.Variants {
		variants = append(variants, variantResponse{Size: v.Size, Color: v.Color, Stock: v.Stock, SKU: v.SKU})
	}
	h.respond(w, http.StatusOK, map[string]any{"productId": product.ID, "variants": variants}, nil)
}
