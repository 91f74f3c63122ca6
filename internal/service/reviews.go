package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/modestmuse/museshop/internal/model"
)

// CreateReview adds a product review for the acting user and refreshes the
// product rating aggregates.
func (s *Service) CreateReview(ctx context.Context, actor *model.User, rev *model.Review) error {
	if rev.Rating < 1 || rev.Rating > 5 {
		return fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidInput)
	}
	if rev.ProductID == "" {
		return fmt.Errorf("%w: product id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(rev.Body) == "" {
		return fmt.Errorf("%w: review body is required", ErrInvalidInput)
	}

	rev.ID = uuid.NewString()
	rev.UserID = actor.ID
	return s.repo.CreateReview(ctx, rev)
}

// DeleteReview removes a review and refreshes the aggregates. Only the
// author or an admin may delete it.
func (s *Service) DeleteReview(ctx context.Context, actor *model.User, reviewID string) error {
	rev, err := s.repo.GetReviewByID(ctx, reviewID)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && rev.UserID != actor.ID {
		return ErrForbidden
	}
	return s.repo.DeleteReview(ctx, reviewID)
}

// AdjustVariantStock changes a variant's stock level by delta. Admin only.
func (s *Service) AdjustVariantStock(ctx context.Context, actor *model.User, productID, sku string, delta int) (*model.Product, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if sku == "" {
		return nil, fmt.Errorf("%w: sku is required", ErrInvalidInput)
	}
	return s.repo.AdjustVariantStock(ctx, productID, sku, delta)
}
