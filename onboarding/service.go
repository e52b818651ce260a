package onboarding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/octabyte/bm-session/api"
	"github.com/octabyte/bm-session/models"
	otellogger "github.com/octabyte/bm-session/otel/logger"
	"github.com/octabyte/bm-session/store"
	"github.com/octabyte/bm-session/utils"
)

const (
	progressPath = "/onboarding/"
	completePath = "/onboarding/complete/"
)

var (
	ErrInvalidStep     = errors.New("invalid onboarding step")
	ErrMissingStepData = errors.New("onboarding step data is incomplete")

	// ErrProfileUnavailable means onboarding was completed on the backend but
	// neither a fresh nor a cached profile could be returned.
	ErrProfileUnavailable = errors.New("onboarding completed but profile is unavailable")
)

// StepError lists the fields of a step payload that failed validation.
type StepError struct {
	Step   int
	Fields []string
}

func (e *StepError) Error() string {
	return fmt.Sprintf("onboarding step %d: invalid fields %s", e.Step, strings.Join(e.Fields, ", "))
}

func (e *StepError) Unwrap() error {
	return ErrMissingStepData
}

type Requester interface {
	DoJSON(ctx context.Context, req api.Request, out interface{}) error
}

// ProfileFetcher refreshes the cached user, see auth.Service.Me.
type ProfileFetcher interface {
	Me(ctx context.Context) (*models.User, error)
}

type Service struct {
	client   Requester
	profiles ProfileFetcher
	store    store.TokenStore
	validate *validator.Validate
}

func NewService(client Requester, profiles ProfileFetcher, tokens store.TokenStore) *Service {
	return &Service{
		client:   client,
		profiles: profiles,
		store:    tokens,
		validate: validator.New(),
	}
}

func (s *Service) Progress(ctx context.Context) (*models.OnboardingProgress, error) {
	var progress models.OnboardingProgress
	if err := s.client.DoJSON(ctx, api.Request{Method: http.MethodGet, Path: progressPath}, &progress); err != nil {
		return nil, fmt.Errorf("get onboarding progress: %w", err)
	}
	return &progress, nil
}

func (s *Service) SaveStep(ctx context.Context, step int, data map[string]interface{}) (*models.OnboardingProgress, error) {
	if step < StepCompany || step > StepReview {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStep, step)
	}
	if err := s.validateStep(ctx, step, data); err != nil {
		return nil, err
	}

	var progress models.OnboardingProgress
	req := api.Request{
		Method: http.MethodPost,
		Path:   progressPath,
		Body:   map[string]interface{}{"step": step, "data": data},
	}
	if err := s.client.DoJSON(ctx, req, &progress); err != nil {
		return nil, fmt.Errorf("save onboarding step %d: %w", step, err)
	}
	return &progress, nil
}

func (s *Service) SaveCompany(ctx context.Context, info CompanyInfo) (*models.OnboardingProgress, error) {
	return s.saveTyped(ctx, StepCompany, info)
}

func (s *Service) SaveContact(ctx context.Context, info ContactInfo) (*models.OnboardingProgress, error) {
	return s.saveTyped(ctx, StepContact, info)
}

func (s *Service) saveTyped(ctx context.Context, step int, payload interface{}) (*models.OnboardingProgress, error) {
	data := map[string]interface{}{}
	if err := utils.CloneJSON(payload, &data); err != nil {
		return nil, fmt.Errorf("encode onboarding step %d: %w", step, err)
	}
	return s.SaveStep(ctx, step, dropEmpty(data))
}

// Complete finishes onboarding and refreshes the cached profile. When the
// refresh fails the cached user is marked complete locally so the next
// bootstrap does not loop back to onboarding. Without a cached user the
// error is ErrProfileUnavailable; the backend step has still succeeded.
func (s *Service) Complete(ctx context.Context) (*models.User, error) {
	if err := s.client.DoJSON(ctx, api.Request{Method: http.MethodPost, Path: completePath}, nil); err != nil {
		return nil, fmt.Errorf("complete onboarding: %w", err)
	}

	user, err := s.profiles.Me(ctx)
	if err == nil {
		return user, nil
	}
	otellogger.WarnCtx(ctx, "profile refresh after onboarding failed, updating cached user", zap.Error(err))

	session, getErr := s.store.Get(ctx)
	if getErr != nil || session.User == nil {
		return nil, fmt.Errorf("%w: %v", ErrProfileUnavailable, err)
	}
	cached := *session.User
	cached.OnboardingCompleted = true
	if err := s.store.SetUser(ctx, &cached); err != nil {
		return nil, fmt.Errorf("update cached user: %w", err)
	}
	return &cached, nil
}

func (s *Service) validateStep(ctx context.Context, step int, data map[string]interface{}) error {
	rules, ok := stepRules[step]
	if !ok {
		return nil
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	errs := s.validate.ValidateMapCtx(ctx, data, rules)
	if len(errs) == 0 {
		return nil
	}
	return &StepError{Step: step, Fields: flattenFields("", errs)}
}

func flattenFields(prefix string, errs map[string]interface{}) []string {
	var fields []string
	for name, err := range errs {
		if nested, ok := err.(map[string]interface{}); ok {
			fields = append(fields, flattenFields(prefix+name+".", nested)...)
			continue
		}
		fields = append(fields, prefix+name)
	}
	sort.Strings(fields)
	return fields
}

// dropEmpty removes empty strings so required rules see them as missing.
func dropEmpty(data map[string]interface{}) map[string]interface{} {
	for key, value := range data {
		switch v := value.(type) {
		case string:
			if v == "" {
				delete(data, key)
			}
		case map[string]interface{}:
			data[key] = dropEmpty(v)
		}
	}
	return data
}
