// Package domain holds DTOs for collector http and service contracts
package domain

import (
	"campaigncollector/internal/core/accessor"
	"campaigncollector/internal/core/touchpoint"
)

// EvaluateInput is a browser tag's page load
type EvaluateInput struct {
	URL      string `json:"url" validate:"required,url,max=2048" example:"https://shop.example/?utm_source=google"`
	Referrer string `json:"referrer,omitempty" validate:"omitempty,max=2048" example:"https://www.google.com/"`
}

// NavigateInput is an in-app route change
type NavigateInput struct {
	URL string `json:"url" validate:"required,url,max=2048" example:"https://shop.example/pricing?lvl_campaign=spring"`
}

// ConsentInput updates one consent category
type ConsentInput struct {
	Category string `json:"category" validate:"required,max=64" example:"analytics_storage"`
	Value    string `json:"value,omitempty" validate:"omitempty,oneof=granted denied null" example:"granted"`
}

// LeadInput is a lead submission from the page
type LeadInput struct {
	Event      string            `json:"event" validate:"required,max=64,printascii" example:"generate_lead"`
	Properties map[string]any    `json:"properties,omitempty"`
	UserData   map[string]string `json:"user_data,omitempty" validate:"omitempty,max=16,dive,keys,max=32,endkeys,max=512"`
}

// Evaluation is the outcome of a page load
type Evaluation struct {
	Outcome     string             `json:"outcome"`
	Persisted   bool               `json:"persisted"`
	AnonymousID string             `json:"anonymous_id"`
	Last        *touchpoint.Record `json:"last"`
	Snapshot    *accessor.Snapshot `json:"snapshot,omitempty"`
}

// Hydrated is the refreshed last touchpoint, nil when there is no live session
type Hydrated struct {
	Last *touchpoint.Record `json:"last"`
}

// ConsentState is the visitor's consent after an update
type ConsentState struct {
	Consent        map[string]string `json:"consent"`
	StorageAllowed bool              `json:"storage_allowed"`
}

// LeadAck acknowledges a queued or stored lead
type LeadAck struct {
	EventID string `json:"event_id"`
}
