package models

import "github.com/octabyte/bm-session/enums"

type Plan struct {
	ID                  uint64   `json:"id"`
	Name                string   `json:"name"`
	Slug                string   `json:"slug"`
	Description         string   `json:"description,omitempty"`
	PriceMonthlyDisplay string   `json:"price_monthly_display,omitempty"`
	PriceYearlyDisplay  string   `json:"price_yearly_display,omitempty"`
	Currency            string   `json:"currency,omitempty"`
	MaxProjects         int      `json:"max_projects"`
	MaxUsers            int      `json:"max_users"`
	Features            []string `json:"features,omitempty"`
	IsActive            bool     `json:"is_active"`
	IsFeatured          bool     `json:"is_featured"`
	TrialDays           int      `json:"trial_days"`
}

type Subscription struct {
	ID                 uint64                   `json:"id"`
	Status             enums.SubscriptionStatus `json:"status"`
	IsActive           bool                     `json:"is_active"`
	IsTrial            bool                     `json:"is_trial"`
	Plan               *Plan                    `json:"plan,omitempty"`
	CurrentPeriodStart string                   `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   string                   `json:"current_period_end,omitempty"`
	TrialEnd           string                   `json:"trial_end,omitempty"`
	CancelAtPeriodEnd  bool                     `json:"cancel_at_period_end"`
}

// Invoice amounts are decimal strings as serialized by the backend.
type Invoice struct {
	ID            uint64              `json:"id"`
	InvoiceNumber string              `json:"invoice_number"`
	Amount        string              `json:"amount"`
	TaxAmount     string              `json:"tax_amount,omitempty"`
	TotalAmount   string              `json:"total_amount"`
	Currency      string              `json:"currency"`
	Status        enums.InvoiceStatus `json:"status"`
	DueDate       string              `json:"due_date,omitempty"`
	PaidAt        *string             `json:"paid_at,omitempty"`
	PDFURL        string              `json:"gateway_pdf_url,omitempty"`
}

func (i *Invoice) Paid() bool {
	return i != nil && i.Status == enums.InvoicePaid
}

type PaymentMethod struct {
	ID           uint64                  `json:"id"`
	Type         enums.PaymentMethodType `json:"type"`
	Gateway      string                  `json:"gateway,omitempty"`
	IsDefault    bool                    `json:"is_default"`
	IsActive     bool                    `json:"is_active"`
	CardLast4    string                  `json:"card_last4,omitempty"`
	CardBrand    string                  `json:"card_brand,omitempty"`
	CardExpMonth int                     `json:"card_exp_month,omitempty"`
	CardExpYear  int                     `json:"card_exp_year,omitempty"`
	CardDisplay  string                  `json:"card_display,omitempty"`
}
