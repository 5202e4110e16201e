package service

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// SubmissionFinalizedEvent is published when a submission reaches a terminal
// scored state, for downstream consumers (notifications, analytics).
type SubmissionFinalizedEvent struct {
	SubmissionID uint      `json:"submission_id"`
	AssessmentID uint      `json:"assessment_id"`
	StudentID    uint      `json:"student_id"`
	TotalScore   float64   `json:"total_score"`
	Percentage   float64   `json:"percentage"`
	Grade        string    `json:"grade"`
	Passed       bool      `json:"passed"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// EventPublisher emits domain events. A nil NATS connection degrades to a
// no-op so tests and single-node deployments need no broker.
type EventPublisher interface {
	PublishSubmissionFinalized(event SubmissionFinalizedEvent)
}

type natsEventPublisher struct {
	conn    *nats.Conn
	subject string
	logger  zerolog.Logger
}

// NewEventPublisher constructs a NATS-backed event publisher.
func NewEventPublisher(conn *nats.Conn, subject string, logger zerolog.Logger) EventPublisher {
	if subject == "" {
		subject = "assess.submissions.finalized"
	}
	return &natsEventPublisher{
		conn:    conn,
		subject: subject,
		logger:  logger.With().Str("component", "event_publisher").Logger(),
	}
}

func (p *natsEventPublisher) PublishSubmissionFinalized(event SubmissionFinalizedEvent) {
	if p.conn == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to encode finalized event")
		return
	}

	if err := p.conn.Publish(p.subject, payload); err != nil {
		p.logger.Warn().Err(err).Uint("submission_id", event.SubmissionID).Msg("failed to publish finalized event")
	}
}
