package models

type OnboardingProgress struct {
	Step      int            `json:"step"`
	Completed bool           `json:"completed"`
	Data      map[string]any `json:"data,omitempty"`
}
