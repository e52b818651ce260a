package billing

import (
	"context"

	"go.uber.org/zap"

	"github.com/octabyte/bm-session/enums"
	"github.com/octabyte/bm-session/models"
	otellogger "github.com/octabyte/bm-session/otel/logger"
)

type CheckoutRequest struct {
	// PlanSlug selects the plan; unknown or empty slugs use the first plan.
	PlanSlug     string
	BillingCycle enums.BillingCycle
	// PaymentMethodID pins an existing method. When zero the default (or
	// first active) method is used.
	PaymentMethodID uint64
	// NewPaymentMethod is registered as the default method before paying.
	NewPaymentMethod *NewPaymentMethod
}

type CheckoutResult struct {
	Plan                *models.Plan
	Invoice             *models.Invoice
	PaymentMethodID     uint64
	CreatedSubscription bool
	Paid                bool
}

// Checkout pays for a plan: it reuses an open invoice when there is one,
// otherwise creates the subscription and pays the invoice it produces.
// Paid reflects the invoice status re-read after payment.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	plans, err := s.Plans(ctx)
	if err != nil {
		return nil, err
	}
	plan := pickPlan(plans, req.PlanSlug)
	if plan == nil {
		return nil, ErrNoPlans
	}
	result := &CheckoutResult{Plan: plan}

	methodID, err := s.resolvePaymentMethod(ctx, req)
	if err != nil {
		return nil, err
	}
	result.PaymentMethodID = methodID

	invoices, err := s.OpenInvoices(ctx)
	if err != nil {
		return nil, err
	}
	if len(invoices) == 0 {
		if methodID == 0 {
			return nil, ErrNoPaymentMethod
		}
		err := s.CreateSubscription(ctx, CreateSubscriptionRequest{
			PlanID:          plan.ID,
			PaymentMethodID: methodID,
			BillingCycle:    req.BillingCycle,
		})
		if err != nil {
			return nil, err
		}
		result.CreatedSubscription = true

		if invoices, err = s.OpenInvoices(ctx); err != nil {
			return nil, err
		}
		if len(invoices) == 0 {
			return nil, ErrInvoiceNotReady
		}
	}
	target := invoices[0]

	if err := s.PayInvoice(ctx, target.ID); err != nil {
		return nil, err
	}
	updated, err := s.Invoice(ctx, target.ID)
	if err != nil {
		return nil, err
	}
	result.Invoice = updated
	result.Paid = updated.Paid()

	otellogger.InfoCtx(ctx, "checkout finished",
		zap.String("plan", plan.Slug),
		zap.Uint64("invoice_id", updated.ID),
		zap.String("invoice_status", string(updated.Status)),
		zap.Bool("created_subscription", result.CreatedSubscription),
	)
	return result, nil
}

func (s *Service) resolvePaymentMethod(ctx context.Context, req CheckoutRequest) (uint64, error) {
	if req.NewPaymentMethod != nil {
		method := *req.NewPaymentMethod
		method.IsDefault = true
		created, err := s.AddPaymentMethod(ctx, method)
		if err != nil {
			return 0, err
		}
		return created.ID, nil
	}
	if req.PaymentMethodID != 0 {
		return req.PaymentMethodID, nil
	}

	methods, err := s.PaymentMethods(ctx)
	if err != nil {
		return 0, err
	}
	var fallback uint64
	for _, m := range methods {
		if !m.IsActive {
			continue
		}
		if m.IsDefault {
			return m.ID, nil
		}
		if fallback == 0 {
			fallback = m.ID
		}
	}
	return fallback, nil
}

func pickPlan(plans []models.Plan, slug string) *models.Plan {
	if len(plans) == 0 {
		return nil
	}
	for i := range plans {
		if slug != "" && plans[i].Slug == slug {
			return &plans[i]
		}
	}
	return &plans[0]
}
