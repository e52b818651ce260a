package models

import (
	"strings"
	"time"

	"github.com/octabyte/bm-session/enums"
)

// User is the profile returned by the auth endpoints. A cached copy may be
// stale; it is overwritten on every successful fetch.
type User struct {
	ID                  uint64     `json:"id"`
	Email               string     `json:"email"`
	FirstName           string     `json:"first_name"`
	LastName            string     `json:"last_name"`
	FullName            string     `json:"full_name,omitempty"`
	Phone               string     `json:"phone,omitempty"`
	Role                enums.Role `json:"role,omitempty"`
	OnboardingCompleted bool       `json:"onboarding_completed"`
	OnboardingStep      int        `json:"onboarding_step"`
	IsActive            bool       `json:"is_active"`
	Tenant              *Tenant    `json:"tenant,omitempty"`
}

func (u *User) Name() string {
	if u.FullName != "" {
		return u.FullName
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// TenantID returns 0 while the user has no tenant (before onboarding).
func (u *User) TenantID() uint64 {
	if u.Tenant == nil {
		return 0
	}
	return u.Tenant.ID
}

// Tenant is a customer workspace. The limit, note and date fields are only
// filled by the admin endpoints.
type Tenant struct {
	ID                    uint64     `json:"id"`
	Name                  string     `json:"name"`
	Slug                  string     `json:"slug"`
	Domain                string     `json:"domain,omitempty"`
	Email                 string     `json:"email,omitempty"`
	Phone                 string     `json:"phone,omitempty"`
	IsActive              bool       `json:"is_active"`
	SubscriptionPlan      string     `json:"subscription_plan,omitempty"`
	IsSubscriptionActive  bool       `json:"is_subscription_active,omitempty"`
	SubscriptionStartDate string     `json:"subscription_start_date,omitempty"`
	SubscriptionEndDate   string     `json:"subscription_end_date,omitempty"`
	MaxProjects           int        `json:"max_projects,omitempty"`
	MaxUsers              int        `json:"max_users,omitempty"`
	Notes                 string     `json:"notes,omitempty"`
	CreatedAt             *time.Time `json:"created_at,omitempty"`
	UpdatedAt             *time.Time `json:"updated_at,omitempty"`
}

// AdminCredentials are the login of a tenant's first administrator.
type AdminCredentials struct {
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
}
