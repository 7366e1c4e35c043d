package domain

import (
	"context"

	"campaigncollector/internal/core/lead"
)

// IntakePort is the first-party lead sink other modules may reuse
type IntakePort interface {
	Intake(ctx context.Context, p *lead.Payload) (LeadAck, error)
}
