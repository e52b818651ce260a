package enums

// Route is the single destination a session bootstrap resolves to.
type Route string

const (
	RouteLogin           Route = "login"
	RouteOnboarding      Route = "onboarding"
	RouteBillingCheckout Route = "billing_checkout"
	RouteDashboard       Route = "dashboard"
)
