package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/modestmuse/museshop/internal/model"
	"github.com/modestmuse/museshop/internal/payment"
	"github.com/modestmuse/museshop/internal/repository"
)

type stubRepo struct {
	user       *model.User
	userErr    error
	order      *model.Order
	orderErr   error
	ownerEmail string
	product    *model.Product
	review     *model.Review

	createdUser   *model.User
	createdOrder  *model.Order
	createdReview *model.Review

	confirmedOrderID string
	confirmedReceipt model.PaymentResult
	setStatusOrderID string
	setStatusNext    model.OrderStatus
	deletedReviewID  string
}

func (r *stubRepo) Close() error { return nil }

func (r *stubRepo) CreateUser(ctx context.Context, u *model.User) error {
	r.createdUser = u
	return r.userErr
}

func (r *stubRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	if r.user == nil {
		return nil, repository.ErrUserNotFound
	}
	return r.user, r.userErr
}

func (r *stubRepo) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if r.user == nil {
		return nil, repository.ErrUserNotFound
	}
	return r.user, r.userErr
}

func (r *stubRepo) CreateOrder(ctx context.Context, o *model.Order) error {
	r.createdOrder = o
	o.Number = "MMS-00001"
	return r.orderErr
}

func (r *stubRepo) GetOrderByID(ctx context.Context, id string) (*model.Order, error) {
	if r.order == nil {
		return nil, repository.ErrOrderNotFound
	}
	return r.order, r.orderErr
}

func (r *stubRepo) GetOrderByNumber(ctx context.Context, number string) (*model.Order, error) {
	if r.order == nil {
		return nil, repository.ErrOrderNotFound
	}
	return r.order, r.orderErr
}

func (r *stubRepo) GetOrderForTracking(ctx context.Context, number string) (*model.Order, string, error) {
	if r.order == nil {
		return nil, "", repository.ErrOrderNotFound
	}
	return r.order, r.ownerEmail, r.orderErr
}

func (r *stubRepo) ListOrdersByUser(ctx context.Context, userID string, page, limit int) ([]model.Order, int64, error) {
	return nil, 0, nil
}

func (r *stubRepo) ListOrders(ctx context.Context, status model.OrderStatus, page, limit int) ([]model.Order, int64, error) {
	return nil, 0, nil
}

func (r *stubRepo) ConfirmOrderPayment(ctx context.Context, orderID string, receipt model.PaymentResult, paidAt time.Time) error {
	r.confirmedOrderID = orderID
	r.confirmedReceipt = receipt
	return r.orderErr
}

func (r *stubRepo) SetOrderStatus(ctx context.Context, orderID string, next model.OrderStatus, now time.Time) (*model.Order, error) {
	r.setStatusOrderID = orderID
	r.setStatusNext = next
	return r.order, r.orderErr
}

func (r *stubRepo) SearchProducts(ctx context.Context, query string, limit int) ([]model.Product, error) {
	return nil, nil
}

func (r *stubRepo) GetProductByID(ctx context.Context, id string) (*model.Product, error) {
	return r.product, nil
}

func (r *stubRepo) CreateReview(ctx context.Context, rev *model.Review) error {
	r.createdReview = rev
	return nil
}

func (r *stubRepo) GetReviewByID(ctx context.Context, id string) (*model.Review, error) {
	if r.review == nil {
		return nil, repository.ErrReviewNotFound
	}
	return r.review, nil
}

func (r *stubRepo) DeleteReview(ctx context.Context, id string) error {
	r.deletedReviewID = id
	return nil
}

func (r *stubRepo) AdjustVariantStock(ctx context.Context, productID, sku string, delta int) (*model.Product, error) {
	return r.product, nil
}

type stubCard struct {
	intent *payment.Intent
	err    error

	amount  int64
	orderID string
}

func (c *stubCard) CreateIntent(ctx context.Context, amountMinor int64, currency, orderID string) (*payment.Intent, error) {
	c.amount = amountMinor
	c.orderID = orderID
	if c.err != nil {
		return nil, c.err
	}
	return c.intent, nil
}

type stubVerifier struct {
	event *payment.Event
	err   error
}

func (v *stubVerifier) VerifyAndParse(body []byte, sigHeader string) (*payment.Event, error) {
	return v.event, v.err
}

func newTestService(repo *stubRepo, card CardProcessor, verifier WebhookVerifier) *Service {
	return NewService(repo, card, verifier, true, zap.NewNop())
}

func customer(id string) *model.User {
	return &model.User{ID: id, Role: model.RoleCustomer, IsActive: true}
}

func admin() *model.User {
	return &model.User{ID: "admin-1", Role: model.RoleAdmin, IsActive: true}
}

func validOrder() *model.Order {
	return &model.Order{
		UserID: "u-1",
		Items: []model.OrderItem{
			{ProductID: "p-1", Name: "Pearl Abaya", Price: 450000, Quantity: 2},
		},
		ShippingAddress: model.ShippingAddress{
			FullName: "Amina K", Street: "12 Mall Road", City: "Lahore", PostalCode: "54000", Country: "PK",
		},
		PaymentMethod: model.PaymentMethodCard,
		ItemsPrice:    900000,
		ShippingPrice: 25000,
		TaxPrice:      0,
		TotalPrice:    925000,
	}
}

func TestRegister_HashesAndNormalizes(t *testing.T) {
	repo := &stubRepo{}
	s := newTestService(repo, nil, nil)

	user, err := s.Register(context.Background(), "Amina", "  Amina@Example.COM ", "s3cret-pass")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if user.Email != "amina@example.com" {
		t.Fatalf("email = %q, want normalized lowercase", user.Email)
	}
	if user.Role != model.RoleCustomer {
		t.Fatalf("role = %q, want customer", user.Role)
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte("s3cret-pass")); err != nil {
		t.Fatalf("stored hash does not match the password: %v", err)
	}
	if repo.createdUser == nil {
		t.Fatalf("user was not persisted")
	}
}

func TestRegister_RejectsShortPassword(t *testing.T) {
	s := newTestService(&stubRepo{}, nil, nil)

	_, err := s.Register(context.Background(), "Amina", "amina@example.com", "short")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("error = %v, want ErrInvalidInput", err)
	}
}

func TestAuthenticate(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)

	tests := []struct {
		name     string
		user     *model.User
		password string
		wantErr  error
	}{
		{
			name:     "valid credentials",
			user:     &model.User{ID: "u-1", Email: "amina@example.com", PasswordHash: hash, IsActive: true},
			password: "s3cret-pass",
		},
		{
			name:     "wrong password",
			user:     &model.User{ID: "u-1", Email: "amina@example.com", PasswordHash: hash, IsActive: true},
			password: "wrong",
			wantErr:  ErrInvalidCredentials,
		},
		{
			name:     "unknown account",
			password: "s3cret-pass",
			wantErr:  ErrInvalidCredentials,
		},
		{
			name:     "deactivated account",
			user:     &model.User{ID: "u-1", Email: "amina@example.com", PasswordHash: hash, IsActive: false},
			password: "s3cret-pass",
			wantErr:  ErrAccountDisabled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestService(&stubRepo{user: tt.user}, nil, nil)

			_, err := s.Authenticate(context.Background(), "amina@example.com", tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateOrder_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(o *model.Order)
		wantErr error
	}{
		{
			name:    "no items",
			mutate:  func(o *model.Order) { o.Items = nil },
			wantErr: ErrInvalidInput,
		},
		{
			name:    "zero quantity",
			mutate:  func(o *model.Order) { o.Items[0].Quantity = 0 },
			wantErr: ErrInvalidInput,
		},
		{
			name:    "total does not match components",
			mutate:  func(o *model.Order) { o.TotalPrice = 1 },
			wantErr: ErrInvalidInput,
		},
		{
			name:    "items price does not match item sum",
			mutate:  func(o *model.Order) { o.ItemsPrice = 1; o.TotalPrice = 25001 },
			wantErr: ErrInvalidInput,
		},
		{
			name:    "both account and guest email",
			mutate:  func(o *model.Order) { o.GuestEmail = "guest@example.com" },
			wantErr: ErrInvalidInput,
		},
		{
			name:    "guest without email",
			mutate:  func(o *model.Order) { o.UserID = "" },
			wantErr: ErrInvalidInput,
		},
		{
			name:    "unsupported payment method",
			mutate:  func(o *model.Order) { o.PaymentMethod = "bitcoin" },
			wantErr: ErrInvalidInput,
		},
		{
			name:    "incomplete shipping address",
			mutate:  func(o *model.Order) { o.ShippingAddress.City = "" },
			wantErr: ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestService(&stubRepo{}, nil, nil)

			order := validOrder()
			tt.mutate(order)

			if err := s.CreateOrder(context.Background(), order); !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateOrder_StartsPendingAndUnpaid(t *testing.T) {
	repo := &stubRepo{}
	s := newTestService(repo, nil, nil)

	order := validOrder()
	order.Status = model.OrderStatusDelivered
	order.IsPaid = true
	paidAt := time.Now()
	order.PaidAt = &paidAt

	if err := s.CreateOrder(context.Background(), order); err != nil {
		t.Fatalf("CreateOrder error: %v", err)
	}

	if repo.createdOrder.Status != model.OrderStatusPending {
		t.Fatalf("status = %q, want pending", repo.createdOrder.Status)
	}
	if repo.createdOrder.IsPaid || repo.createdOrder.PaidAt != nil {
		t.Fatalf("placement must never mark an order paid")
	}
	if repo.createdOrder.ID == "" {
		t.Fatalf("order id was not assigned")
	}
}

func TestCreateOrder_CODGetsOfflineReference(t *testing.T) {
	repo := &stubRepo{}
	s := newTestService(repo, nil, nil)

	order := validOrder()
	order.PaymentMethod = model.PaymentMethodCOD

	if err := s.CreateOrder(context.Background(), order); err != nil {
		t.Fatalf("CreateOrder error: %v", err)
	}

	pr := repo.createdOrder.PaymentResult
	if pr == nil || !strings.HasPrefix(pr.ID, "COD-") {
		t.Fatalf("payment result = %+v, want COD reference", pr)
	}
	if repo.createdOrder.IsPaid {
		t.Fatalf("COD order must not be paid at placement")
	}
}

func TestCreateOrder_GuestCheckoutToggle(t *testing.T) {
	repo := &stubRepo{}
	s := NewService(repo, nil, nil, false, zap.NewNop())

	order := validOrder()
	order.UserID = ""
	order.GuestEmail = "guest@example.com"

	if err := s.CreateOrder(context.Background(), order); !errors.Is(err, ErrGuestCheckoutDisabled) {
		t.Fatalf("error = %v, want ErrGuestCheckoutDisabled", err)
	}
}

func TestCreateOrder_GuestEmailNormalized(t *testing.T) {
	repo := &stubRepo{}
	s := newTestService(repo, nil, nil)

	order := validOrder()
	order.UserID = ""
	order.GuestEmail = " Guest@Example.COM "

	if err := s.CreateOrder(context.Background(), order); err != nil {
		t.Fatalf("CreateOrder error: %v", err)
	}
	if repo.createdOrder.GuestEmail != "guest@example.com" {
		t.Fatalf("guest email = %q, want normalized", repo.createdOrder.GuestEmail)
	}
}

func TestUpdateStatus_AdminOnly(t *testing.T) {
	repo := &stubRepo{order: &model.Order{ID: "o-1", Status: model.OrderStatusShipped}}
	s := newTestService(repo, nil, nil)

	if _, err := s.UpdateStatus(context.Background(), customer("u-1"), "o-1", model.OrderStatusShipped); !errors.Is(err, ErrForbidden) {
		t.Fatalf("customer error = %v, want ErrForbidden", err)
	}

	if _, err := s.UpdateStatus(context.Background(), admin(), "o-1", "teleported"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("bad status error = %v, want ErrInvalidInput", err)
	}

	if _, err := s.UpdateStatus(context.Background(), admin(), "o-1", model.OrderStatusShipped); err != nil {
		t.Fatalf("admin error = %v", err)
	}
	if repo.setStatusNext != model.OrderStatusShipped {
		t.Fatalf("status passed to repo = %q", repo.setStatusNext)
	}
}

func TestTrackOrder_MasksWrongEmail(t *testing.T) {
	repo := &stubRepo{
		order:      &model.Order{ID: "o-1", Number: "MMS-00007", UserID: "u-1"},
		ownerEmail: "amina@example.com",
	}
	s := newTestService(repo, nil, nil)

	_, err := s.TrackOrder(context.Background(), "MMS-00007", "stranger@example.com")
	if !errors.Is(err, repository.ErrOrderNotFound) {
		t.Fatalf("wrong email error = %v, want masked not-found", err)
	}
}

func TestTrackOrder_NormalizesAndClearsLinkage(t *testing.T) {
	repo := &stubRepo{
		order:      &model.Order{ID: "o-1", Number: "MMS-00007", UserID: "u-1", GuestEmail: ""},
		ownerEmail: "amina@example.com",
	}
	s := newTestService(repo, nil, nil)

	order, err := s.TrackOrder(context.Background(), "  mms-00007 ", " AMINA@example.com ")
	if err != nil {
		t.Fatalf("TrackOrder error: %v", err)
	}
	if order.UserID != "" || order.GuestEmail != "" {
		t.Fatalf("tracking result leaks owner linkage: %+v", order)
	}
}

func TestGetOrderForOwner(t *testing.T) {
	order := &model.Order{ID: "o-1", UserID: "u-1"}

	tests := []struct {
		name    string
		actor   *model.User
		wantErr error
	}{
		{"owner", customer("u-1"), nil},
		{"admin", admin(), nil},
		{"stranger sees not-found", customer("u-2"), repository.ErrOrderNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestService(&stubRepo{order: order}, nil, nil)

			_, err := s.GetOrderForOwner(context.Background(), tt.actor, "o-1")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreatePaymentIntent(t *testing.T) {
	card := &stubCard{intent: &payment.Intent{ID: "pi_1", ClientSecret: "cs_1", Status: "requires_payment_method"}}
	order := validOrder()
	order.ID = "o-1"
	repo := &stubRepo{order: order}
	s := newTestService(repo, card, nil)

	intent, err := s.CreatePaymentIntent(context.Background(), customer("u-1"), "o-1")
	if err != nil {
		t.Fatalf("CreatePaymentIntent error: %v", err)
	}
	if intent.ClientSecret != "cs_1" {
		t.Fatalf("intent = %+v", intent)
	}
	if card.amount != order.TotalPrice || card.orderID != "o-1" {
		t.Fatalf("processor called with amount %d, order %q", card.amount, card.orderID)
	}
}

func TestCreatePaymentIntent_Rejections(t *testing.T) {
	makeOrder := func(mutate func(o *model.Order)) *model.Order {
		o := validOrder()
		o.ID = "o-1"
		mutate(o)
		return o
	}

	tests := []struct {
		name    string
		order   *model.Order
		actor   *model.User
		wantErr error
	}{
		{
			name:    "not a card order",
			order:   makeOrder(func(o *model.Order) { o.PaymentMethod = model.PaymentMethodCOD }),
			actor:   customer("u-1"),
			wantErr: ErrInvalidInput,
		},
		{
			name:    "already paid",
			order:   makeOrder(func(o *model.Order) { o.IsPaid = true }),
			actor:   customer("u-1"),
			wantErr: ErrInvalidInput,
		},
		{
			name:    "stranger",
			order:   makeOrder(func(o *model.Order) {}),
			actor:   customer("u-2"),
			wantErr: ErrForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card := &stubCard{intent: &payment.Intent{ID: "pi_1"}}
			s := newTestService(&stubRepo{order: tt.order}, card, nil)

			_, err := s.CreatePaymentIntent(context.Background(), tt.actor, "o-1")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreatePaymentIntent_GuestOrderByID(t *testing.T) {
	order := validOrder()
	order.ID = "o-1"
	order.UserID = ""
	order.GuestEmail = "guest@example.com"

	card := &stubCard{intent: &payment.Intent{ID: "pi_1"}}
	s := newTestService(&stubRepo{order: order}, card, nil)

	if _, err := s.CreatePaymentIntent(context.Background(), nil, "o-1"); err != nil {
		t.Fatalf("guest intent error: %v", err)
	}
}

func TestInitiateWallet_Dispatch(t *testing.T) {
	s := newTestService(&stubRepo{}, nil, nil)

	init, err := s.InitiateWallet(context.Background(), model.PaymentMethodJazzCash, "03001234567", 450000)
	if err != nil {
		t.Fatalf("jazzcash error: %v", err)
	}
	if !strings.HasPrefix(init.Reference, "JC-") || init.Status != "pending" {
		t.Fatalf("initiation = %+v", init)
	}

	init, err = s.InitiateWallet(context.Background(), model.PaymentMethodEasyPaisa, "03001234567", 450000)
	if err != nil {
		t.Fatalf("easypaisa error: %v", err)
	}
	if !strings.HasPrefix(init.Reference, "EP-") {
		t.Fatalf("initiation = %+v", init)
	}

	if _, err := s.InitiateWallet(context.Background(), model.PaymentMethodCard, "03001234567", 450000); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("card dispatch error = %v, want ErrInvalidInput", err)
	}

	if _, err := s.InitiateWallet(context.Background(), model.PaymentMethodJazzCash, "0300123456", 450000); !errors.Is(err, payment.ErrInvalidMobileNumber) {
		t.Fatalf("short number error = %v, want ErrInvalidMobileNumber", err)
	}
}

func succeededEvent(orderID string) *payment.Event {
	var e payment.Event
	e.ID = "evt_1"
	e.Type = payment.EventPaymentSucceeded
	e.Data.Object.ID = "pi_123"
	e.Data.Object.Status = "succeeded"
	e.Data.Object.Metadata = map[string]string{"orderId": orderID}
	return &e
}

func TestProcessWebhook_ConfirmsOnSuccess(t *testing.T) {
	repo := &stubRepo{}
	s := newTestService(repo, nil, &stubVerifier{event: succeededEvent("o-1")})

	if err := s.ProcessWebhook(context.Background(), []byte("{}"), "t=1,v1=ff"); err != nil {
		t.Fatalf("ProcessWebhook error: %v", err)
	}
	if repo.confirmedOrderID != "o-1" {
		t.Fatalf("confirmed order = %q, want o-1", repo.confirmedOrderID)
	}
	if repo.confirmedReceipt.ID != "pi_123" || repo.confirmedReceipt.Status != "succeeded" {
		t.Fatalf("receipt = %+v", repo.confirmedReceipt)
	}
}

func TestProcessWebhook_IgnoresOtherEvents(t *testing.T) {
	event := succeededEvent("o-1")
	event.Type = "payment_intent.created"

	repo := &stubRepo{}
	s := newTestService(repo, nil, &stubVerifier{event: event})

	if err := s.ProcessWebhook(context.Background(), []byte("{}"), "t=1,v1=ff"); err != nil {
		t.Fatalf("ProcessWebhook error: %v", err)
	}
	if repo.confirmedOrderID != "" {
		t.Fatalf("non-success event must not confirm, confirmed %q", repo.confirmedOrderID)
	}
}

func TestProcessWebhook_BadSignature(t *testing.T) {
	repo := &stubRepo{}
	s := newTestService(repo, nil, &stubVerifier{err: payment.ErrBadSignature})

	err := s.ProcessWebhook(context.Background(), []byte("{}"), "t=1,v1=bad")
	if !errors.Is(err, payment.ErrBadSignature) {
		t.Fatalf("error = %v, want ErrBadSignature", err)
	}
	if repo.confirmedOrderID != "" {
		t.Fatalf("bad signature must not touch state")
	}
}

func TestProcessWebhook_MissingOrderID(t *testing.T) {
	event := succeededEvent("")
	s := newTestService(&stubRepo{}, nil, &stubVerifier{event: event})

	if err := s.ProcessWebhook(context.Background(), []byte("{}"), "t=1,v1=ff"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("error = %v, want ErrInvalidInput", err)
	}
}

func TestDeleteReview_OwnerOrAdmin(t *testing.T) {
	review := &model.Review{ID: "r-1", ProductID: "p-1", UserID: "u-1"}

	tests := []struct {
		name    string
		actor   *model.User
		wantErr error
	}{
		{"author", customer("u-1"), nil},
		{"admin", admin(), nil},
		{"stranger", customer("u-2"), ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &stubRepo{review: review}
			s := newTestService(repo, nil, nil)

			err := s.DeleteReview(context.Background(), tt.actor, "r-1")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && repo.deletedReviewID != "r-1" {
				t.Fatalf("review was not deleted")
			}
		})
	}
}

func TestCreateReview_Validation(t *testing.T) {
	s := newTestService(&stubRepo{}, nil, nil)

	err := s.CreateReview(context.Background(), customer("u-1"), &model.Review{ProductID: "p-1", Rating: 6, Body: "nice"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("rating 6 error = %v, want ErrInvalidInput", err)
	}

	repo := &stubRepo{}
	s = newTestService(repo, nil, nil)
	err = s.CreateReview(context.Background(), customer("u-1"), &model.Review{ProductID: "p-1", Rating: 5, Body: "Lovely fabric"})
	if err != nil {
		t.Fatalf("CreateReview error: %v", err)
	}
	if repo.createdReview.UserID != "u-1" {
		t.Fatalf("review author = %q, want acting user", repo.createdReview.UserID)
	}
}
