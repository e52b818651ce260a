package tenants

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/octabyte/bm-session/api"
	"github.com/octabyte/bm-session/models"
	"github.com/octabyte/bm-session/utils"
)

const basePath = "/tenants/"

var (
	ErrInvalidTenantID = errors.New("tenant id is required")
	ErrEmptyUpdate     = errors.New("tenant update has no fields")
)

// Requester is satisfied by *api.Client.
type Requester interface {
	DoJSON(ctx context.Context, req api.Request, out interface{}) error
	DoList(ctx context.Context, req api.Request, out interface{}) error
}

type ListOptions struct {
	Search   string
	IsActive *bool
	Page     int
	PageSize int
}

func (o ListOptions) query() map[string]string {
	q := map[string]string{}
	if o.Search != "" {
		q["search"] = o.Search
	}
	if o.IsActive != nil {
		q["is_active"] = strconv.FormatBool(*o.IsActive)
	}
	if o.Page > 0 {
		q["page"] = strconv.Itoa(o.Page)
	}
	if o.PageSize > 0 {
		q["page_size"] = strconv.Itoa(o.PageSize)
	}
	return q
}

// CreateRequest provisions a tenant. An empty Slug is derived from Name and
// an empty Domain from the slug when the service has a domain suffix.
type CreateRequest struct {
	Name             string `json:"name" validate:"required,max=255"`
	Slug             string `json:"slug" validate:"required,max=63,slug"`
	Domain           string `json:"domain,omitempty" validate:"omitempty,fqdn"`
	Email            string `json:"email" validate:"required,email"`
	Phone            string `json:"phone,omitempty"`
	SubscriptionPlan string `json:"subscription_plan,omitempty"`
	MaxProjects      int    `json:"max_projects" validate:"gte=0"`
	MaxUsers         int    `json:"max_users" validate:"gte=0"`
	Notes            string `json:"notes,omitempty"`
}

// UpdateRequest is a partial update; nil fields are left unchanged.
type UpdateRequest struct {
	Name             *string `json:"name,omitempty" validate:"omitempty,max=255"`
	Domain           *string `json:"domain,omitempty" validate:"omitempty,fqdn"`
	Email            *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone            *string `json:"phone,omitempty"`
	SubscriptionPlan *string `json:"subscription_plan,omitempty"`
	MaxProjects      *int    `json:"max_projects,omitempty" validate:"omitempty,gte=0"`
	MaxUsers         *int    `json:"max_users,omitempty" validate:"omitempty,gte=0"`
	Notes            *string `json:"notes,omitempty"`
	IsActive         *bool   `json:"is_active,omitempty"`
}

// CreatedTenant is the create response. AdminCredentials holds the generated
// administrator password and is only returned once.
type CreatedTenant struct {
	models.Tenant
	AdminCredentials *models.AdminCredentials `json:"admin_credentials,omitempty"`
}

// Service wraps the tenant administration endpoints used by the admin
// console. Its client is expected to hold an admin session.
type Service struct {
	client       Requester
	validate     *validator.Validate
	domainSuffix string
}

type Option func(*Service)

// WithDomainSuffix derives missing tenant domains as "<slug>.<suffix>".
func WithDomainSuffix(suffix string) Option {
	return func(s *Service) { s.domainSuffix = suffix }
}

func NewService(client Requester, opts ...Option) *Service {
	v := validator.New()
	_ = v.RegisterValidation("slug", validateSlug)
	s := &Service{client: client, validate: v}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) List(ctx context.Context, opts ListOptions) ([]models.Tenant, error) {
	var tenants []models.Tenant
	req := api.Request{Method: http.MethodGet, Path: basePath, Query: opts.query()}
	if err := s.client.DoList(ctx, req, &tenants); err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	return tenants, nil
}

func (s *Service) Get(ctx context.Context, id uint64) (*models.Tenant, error) {
	if id == 0 {
		return nil, ErrInvalidTenantID
	}
	var tenant models.Tenant
	if err := s.client.DoJSON(ctx, api.Request{Method: http.MethodGet, Path: tenantPath(id, "")}, &tenant); err != nil {
		return nil, fmt.Errorf("get tenant %d: %w", id, err)
	}
	return &tenant, nil
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*CreatedTenant, error) {
	if req.Slug == "" {
		req.Slug = Slugify(req.Name)
	}
	if req.Domain == "" && s.domainSuffix != "" && req.Slug != "" {
		req.Domain = req.Slug + "." + s.domainSuffix
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid tenant: %w", err)
	}

	var created CreatedTenant
	if err := s.client.DoJSON(ctx, api.Request{Method: http.MethodPost, Path: basePath, Body: req}, &created); err != nil {
		return nil, fmt.Errorf("create tenant: %w", err)
	}
	return &created, nil
}

func (s *Service) Update(ctx context.Context, id uint64, req UpdateRequest) (*models.Tenant, error) {
	if id == 0 {
		return nil, ErrInvalidTenantID
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid tenant update: %w", err)
	}
	if body, err := utils.StructToBytes(req); err == nil && string(body) == "{}" {
		return nil, ErrEmptyUpdate
	}

	var tenant models.Tenant
	if err := s.client.DoJSON(ctx, api.Request{Method: http.MethodPatch, Path: tenantPath(id, ""), Body: req}, &tenant); err != nil {
		return nil, fmt.Errorf("update tenant %d: %w", id, err)
	}
	return &tenant, nil
}

func (s *Service) Delete(ctx context.Context, id uint64) error {
	if id == 0 {
		return ErrInvalidTenantID
	}
	if err := s.client.DoJSON(ctx, api.Request{Method: http.MethodDelete, Path: tenantPath(id, "")}, nil); err != nil {
		return fmt.Errorf("delete tenant %d: %w", id, err)
	}
	return nil
}

func (s *Service) Activate(ctx context.Context, id uint64) error {
	return s.post(ctx, id, "activate", nil)
}

func (s *Service) Deactivate(ctx context.Context, id uint64) error {
	return s.post(ctx, id, "deactivate", nil)
}

func (s *Service) AdminCredentials(ctx context.Context, id uint64) (*models.AdminCredentials, error) {
	if id == 0 {
		return nil, ErrInvalidTenantID
	}
	var creds models.AdminCredentials
	if err := s.client.DoJSON(ctx, api.Request{Method: http.MethodGet, Path: tenantPath(id, "admin_credentials")}, &creds); err != nil {
		return nil, fmt.Errorf("get admin credentials of tenant %d: %w", id, err)
	}
	return &creds, nil
}

// ResetAdminPassword issues a new administrator password and returns it.
func (s *Service) ResetAdminPassword(ctx context.Context, id uint64) (*models.AdminCredentials, error) {
	var creds models.AdminCredentials
	if err := s.post(ctx, id, "reset_admin_password", &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

func (s *Service) post(ctx context.Context, id uint64, action string, out interface{}) error {
	if id == 0 {
		return ErrInvalidTenantID
	}
	req := api.Request{Method: http.MethodPost, Path: tenantPath(id, action), Body: map[string]any{}}
	if err := s.client.DoJSON(ctx, req, out); err != nil {
		return fmt.Errorf("%s tenant %d: %w", action, id, err)
	}
	return nil
}

func tenantPath(id uint64, action string) string {
	if action == "" {
		return fmt.Sprintf("%s%d/", basePath, id)
	}
	return fmt.Sprintf("%s%d/%s/", basePath, id, action)
}
