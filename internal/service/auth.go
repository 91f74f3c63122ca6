package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/modestmuse/museshop/internal/model"
	"github.com/modestmuse/museshop/internal/repository"
	"github.com/modestmuse/museshop/internal/validation"
)

const (
	bcryptCost        = 12
	minPasswordLength = 8
)

// Register creates a customer account with a normalized email and a bcrypt
// password hash.
func (s *Service) Register(ctx context.Context, name, email, password string) (*model.User, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	email = validation.NormalizeEmail(email)
	if !validation.IsValidEmail(email) {
		return nil, fmt.Errorf("%w: malformed email", ErrInvalidInput)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleCustomer,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// Authenticate verifies the credentials and returns the account. A missing
// account and a wrong password are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	email = validation.NormalizeEmail(email)

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	return user, nil
}

// GetUser returns an account by id.
func (s *Service) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.repo.GetUserByID(ctx, id)
}
