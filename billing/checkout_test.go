package billing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/tidwall/gjson"

	"github.com/octabyte/bm-session/enums"
)

// billingBackend fakes the billing endpoints used by Checkout.
type billingBackend struct {
	mu                  sync.Mutex
	plans               string
	methods             string
	openInvoices        []string
	invoicesAfterCreate []string
	statusAfterPay      string
	created             []string
	addedMethods        []string
	paid                []string
}

func (b *billingBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	body, _ := io.ReadAll(r.Body)
	switch {
	case r.URL.Path == "/billing/plans/":
		respond(w, http.StatusOK, b.plans)
	case r.URL.Path == "/billing/payment-methods/" && r.Method == http.MethodGet:
		respond(w, http.StatusOK, b.methods)
	case r.URL.Path == "/billing/payment-methods/" && r.Method == http.MethodPost:
		b.addedMethods = append(b.addedMethods, string(body))
		respond(w, http.StatusCreated, `{"id":77,"type":"card","is_default":true,"is_active":true}`)
	case r.URL.Path == "/billing/invoices/" && r.URL.Query().Get("status") == "open":
		respond(w, http.StatusOK, `{"results":[`+strings.Join(b.openInvoices, ",")+`]}`)
	case r.URL.Path == "/billing/subscriptions/create/":
		b.created = append(b.created, string(body))
		b.openInvoices = b.invoicesAfterCreate
		respond(w, http.StatusCreated, `{"detail":"ok"}`)
	case strings.HasSuffix(r.URL.Path, "/pay/"):
		b.paid = append(b.paid, r.URL.Path)
		respond(w, http.StatusOK, `{}`)
	case strings.HasPrefix(r.URL.Path, "/billing/invoices/"):
		id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/billing/invoices/"), "/")
		respond(w, http.StatusOK, fmt.Sprintf(`{"id":%s,"status":"%s","total_amount":"99.90"}`, id, b.statusAfterPay))
	default:
		respond(w, http.StatusNotFound, `{"detail":"Not found."}`)
	}
}

type CheckoutTestSuite struct {
	suite.Suite
	backend *billingBackend
	service *Service
}

func (s *CheckoutTestSuite) SetupTest() {
	s.backend = &billingBackend{
		plans:          `[{"id":1,"slug":"basic"},{"id":2,"slug":"pro"}]`,
		methods:        `[{"id":10,"is_active":true},{"id":11,"is_active":true,"is_default":true}]`,
		statusAfterPay: "paid",
	}
	client, _ := newTestClient(s.T(), s.backend)
	s.service = NewService(client)
}

func (s *CheckoutTestSuite) TestPaysExistingOpenInvoice() {
	s.backend.openInvoices = []string{`{"id":5,"status":"open"}`}

	result, err := s.service.Checkout(context.Background(), CheckoutRequest{PlanSlug: "pro"})
	s.Require().NoError(err)
	s.True(result.Paid)
	s.False(result.CreatedSubscription)
	s.Equal("pro", result.Plan.Slug)
	s.Equal(uint64(5), result.Invoice.ID)
	s.Equal([]string{"/billing/invoices/5/pay/"}, s.backend.paid)
	s.Empty(s.backend.created)
}

func (s *CheckoutTestSuite) TestCreatesSubscriptionWithDefaultMethod() {
	s.backend.invoicesAfterCreate = []string{`{"id":9,"status":"open"}`}

	result, err := s.service.Checkout(context.Background(), CheckoutRequest{PlanSlug: "pro"})
	s.Require().NoError(err)
	s.True(result.CreatedSubscription)
	s.True(result.Paid)
	s.Equal(uint64(11), result.PaymentMethodID)

	s.Require().Len(s.backend.created, 1)
	s.Equal(int64(2), gjson.Get(s.backend.created[0], "plan_id").Int())
	s.Equal(int64(11), gjson.Get(s.backend.created[0], "payment_method_id").Int())
	s.Equal("monthly", gjson.Get(s.backend.created[0], "billing_cycle").String())
	s.Equal([]string{"/billing/invoices/9/pay/"}, s.backend.paid)
}

func (s *CheckoutTestSuite) TestUnknownSlugFallsBackToFirstPlan() {
	s.backend.invoicesAfterCreate = []string{`{"id":9,"status":"open"}`}

	result, err := s.service.Checkout(context.Background(), CheckoutRequest{PlanSlug: "enterprise", BillingCycle: enums.BillingCycleYearly})
	s.Require().NoError(err)
	s.Equal("basic", result.Plan.Slug)
	s.Equal("yearly", gjson.Get(s.backend.created[0], "billing_cycle").String())
}

func (s *CheckoutTestSuite) TestRegistersNewPaymentMethod() {
	s.backend.methods = `[]`
	s.backend.invoicesAfterCreate = []string{`{"id":9,"status":"open"}`}

	result, err := s.service.Checkout(context.Background(), CheckoutRequest{
		NewPaymentMethod: &NewPaymentMethod{Type: enums.PaymentMethodCard, Token: "pm_123"},
	})
	s.Require().NoError(err)
	s.Equal(uint64(77), result.PaymentMethodID)
	s.Require().Len(s.backend.addedMethods, 1)
	s.True(gjson.Get(s.backend.addedMethods[0], "is_default").Bool())
	s.Equal("pm_123", gjson.Get(s.backend.addedMethods[0], "token").String())
}

func (s *CheckoutTestSuite) TestNoPlans() {
	s.backend.plans = `[]`

	_, err := s.service.Checkout(context.Background(), CheckoutRequest{})
	s.True(errors.Is(err, ErrNoPlans))
}

func (s *CheckoutTestSuite) TestNoPaymentMethod() {
	s.backend.methods = `[{"id":10,"is_active":false}]`

	_, err := s.service.Checkout(context.Background(), CheckoutRequest{})
	s.True(errors.Is(err, ErrNoPaymentMethod))
	s.Empty(s.backend.created)
}

func (s *CheckoutTestSuite) TestInvoiceNotReady() {
	_, err := s.service.Checkout(context.Background(), CheckoutRequest{})
	s.True(errors.Is(err, ErrInvoiceNotReady))
	s.Len(s.backend.created, 1)
	s.Empty(s.backend.paid)
}

func (s *CheckoutTestSuite) TestUnpaidAfterPayment() {
	s.backend.openInvoices = []string{`{"id":5,"status":"open"}`}
	s.backend.statusAfterPay = "open"

	result, err := s.service.Checkout(context.Background(), CheckoutRequest{})
	s.Require().NoError(err)
	s.False(result.Paid)
	s.Equal(enums.InvoiceOpen, result.Invoice.Status)
}

func (s *CheckoutTestSuite) TestInvalidPaymentMethodIsRejectedLocally() {
	_, err := s.service.AddPaymentMethod(context.Background(), NewPaymentMethod{Type: enums.PaymentMethodCard})
	s.Error(err)
	s.Empty(s.backend.addedMethods)
}

func (s *CheckoutTestSuite) TestUpgradeRequiresPlan() {
	_, err := s.service.UpgradeSubscription(context.Background(), 1, 0)
	s.True(errors.Is(err, ErrPlanNotSpecified))
}

func TestCheckoutTestSuite(t *testing.T) {
	suite.Run(t, new(CheckoutTestSuite))
}
