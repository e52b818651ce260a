package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/octabyte/bm-session/api"
	"github.com/octabyte/bm-session/enums"
	"github.com/octabyte/bm-session/models"
)

var (
	ErrNoPlans          = errors.New("no billing plans available")
	ErrNoPaymentMethod  = errors.New("a payment method is required to subscribe")
	ErrInvoiceNotReady  = errors.New("subscription created but no open invoice is available yet")
	ErrPlanNotSpecified = errors.New("plan id is required")
)

type NewPaymentMethod struct {
	Type           enums.PaymentMethodType `json:"type" validate:"required,oneof=card boleto pix"`
	Token          string                  `json:"token" validate:"required_if=Type card"`
	IsDefault      bool                    `json:"is_default"`
	BillingDetails *BillingDetails         `json:"billing_details,omitempty"`
}

type BillingDetails struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
}

type CreateSubscriptionRequest struct {
	PlanID          uint64             `json:"plan_id" validate:"required"`
	PaymentMethodID uint64             `json:"payment_method_id" validate:"required"`
	BillingCycle    enums.BillingCycle `json:"billing_cycle" validate:"required,oneof=monthly yearly"`
}

// Service wraps the billing endpoints.
type Service struct {
	client   Requester
	validate *validator.Validate
}

func NewService(client Requester) *Service {
	return &Service{client: client, validate: validator.New()}
}

func (s *Service) Plans(ctx context.Context) ([]models.Plan, error) {
	var plans []models.Plan
	if err := s.client.DoList(ctx, api.Request{Method: http.MethodGet, Path: "/billing/plans/"}, &plans); err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	return plans, nil
}

func (s *Service) OpenInvoices(ctx context.Context) ([]models.Invoice, error) {
	var invoices []models.Invoice
	req := api.Request{
		Method: http.MethodGet,
		Path:   "/billing/invoices/",
		Query:  map[string]string{"status": string(enums.InvoiceOpen)},
	}
	if err := s.client.DoList(ctx, req, &invoices); err != nil {
		return nil, fmt.Errorf("list open invoices: %w", err)
	}
	return invoices, nil
}

func (s *Service) Invoice(ctx context.Context, id uint64) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := s.client.DoJSON(ctx, api.Request{Method: http.MethodGet, Path: fmt.Sprintf("/billing/invoices/%d/", id)}, &invoice); err != nil {
		return nil, fmt.Errorf("get invoice %d: %w", id, err)
	}
	return &invoice, nil
}

func (s *Service) PayInvoice(ctx context.Context, id uint64) error {
	req := api.Request{Method: http.MethodPost, Path: fmt.Sprintf("/billing/invoices/%d/pay/", id), Body: map[string]any{}}
	if err := s.client.DoJSON(ctx, req, nil); err != nil {
		return fmt.Errorf("pay invoice %d: %w", id, err)
	}
	return nil
}

func (s *Service) PaymentMethods(ctx context.Context) ([]models.PaymentMethod, error) {
	var methods []models.PaymentMethod
	if err := s.client.DoList(ctx, api.Request{Method: http.MethodGet, Path: "/billing/payment-methods/"}, &methods); err != nil {
		return nil, fmt.Errorf("list payment methods: %w", err)
	}
	return methods, nil
}

func (s *Service) AddPaymentMethod(ctx context.Context, method NewPaymentMethod) (*models.PaymentMethod, error) {
	if err := s.validate.Struct(method); err != nil {
		return nil, fmt.Errorf("invalid payment method: %w", err)
	}
	var created models.PaymentMethod
	if err := s.client.DoJSON(ctx, api.Request{Method: http.MethodPost, Path: "/billing/payment-methods/", Body: method}, &created); err != nil {
		return nil, fmt.Errorf("add payment method: %w", err)
	}
	return &created, nil
}

func (s *Service) SetDefaultPaymentMethod(ctx context.Context, id uint64) error {
	req := api.Request{Method: http.MethodPatch, Path: fmt.Sprintf("/billing/payment-methods/%d/set-default/", id), Body: map[string]any{}}
	if err := s.client.DoJSON(ctx, req, nil); err != nil {
		return fmt.Errorf("set default payment method %d: %w", id, err)
	}
	return nil
}

func (s *Service) CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) error {
	if req.BillingCycle == "" {
		req.BillingCycle = enums.BillingCycleMonthly
	}
	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("invalid subscription request: %w", err)
	}
	if err := s.client.DoJSON(ctx, api.Request{Method: http.MethodPost, Path: "/billing/subscriptions/create/", Body: req}, nil); err != nil {
		return fmt.Errorf("create subscription: %w", err)
	}
	return nil
}

func (s *Service) CancelSubscription(ctx context.Context, id uint64, atPeriodEnd bool) (*models.Subscription, error) {
	var sub models.Subscription
	req := api.Request{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("/billing/subscriptions/%d/cancel/", id),
		Body:   map[string]bool{"at_period_end": atPeriodEnd},
	}
	if err := s.client.DoJSON(ctx, req, &sub); err != nil {
		return nil, fmt.Errorf("cancel subscription %d: %w", id, err)
	}
	return &sub, nil
}

func (s *Service) UpgradeSubscription(ctx context.Context, id uint64, planID uint64) (*models.Subscription, error) {
	if planID == 0 {
		return nil, ErrPlanNotSpecified
	}
	var sub models.Subscription
	req := api.Request{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("/billing/subscriptions/%d/upgrade/", id),
		Body:   map[string]uint64{"plan_id": planID},
	}
	if err := s.client.DoJSON(ctx, req, &sub); err != nil {
		return nil, fmt.Errorf("upgrade subscription %d: %w", id, err)
	}
	return &sub, nil
}
