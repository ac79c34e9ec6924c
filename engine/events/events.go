// Package events announces politician lookups to other services over NATS.
package events

import (
	"context"
	"time"

	"github.com/WessleyAI/polidossier/engine/domain"
	"github.com/WessleyAI/polidossier/pkg/natsutil"
	"github.com/nats-io/nats.go"
)

// Subjects.
const (
	SubjectIdentified       = "politician.identified"
	SubjectDossierRefreshed = "politician.dossier.refreshed"
)

// Event is the JSON payload of every subject.
type Event struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Title       string    `json:"title"`
	State       string    `json:"state"`
	FullDetails bool      `json:"fullDetails"`
	RequestID   string    `json:"requestId,omitempty"`
	At          time.Time `json:"at"`
}

// FromPolitician builds an event for p.
func FromPolitician(p domain.Politician, requestID string) Event {
	return Event{
		ID:          p.ID,
		Name:        p.Name,
		Title:       p.Title,
		State:       p.State,
		FullDetails: p.FullDetails,
		RequestID:   requestID,
		At:          p.LastUpdated,
	}
}

// Publisher sends events.
type Publisher interface {
	Publish(ctx context.Context, subject string, ev Event) error
}

// NATS publishes events as JSON with trace headers.
type NATS struct {
	nc *nats.Conn
}

// NewNATS wraps an open connection.
func NewNATS(nc *nats.Conn) *NATS { return &NATS{nc: nc} }

func (n *NATS) Publish(ctx context.Context, subject string, ev Event) error {
	return natsutil.Publish(ctx, n.nc, subject, ev)
}

// Nop discards events. Used when no NATS_URL is configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, Event) error { return nil }
