package events

import (
	"context"
	"errors"
	"time"

	"github.com/timmy/memevote/internal/domain"
)

// EventType names a domain event.
type EventType string

const (
	EventMemeCreated EventType = "meme.created"
	EventVoteCast    EventType = "vote.cast"
)

// Event is emitted after a mutation has been persisted.
type Event struct {
	Type       EventType        `json:"type"`
	MemeID     string           `json:"memeId"`
	Address    string           `json:"address"`
	Meme       *domain.MemeView `json:"meme,omitempty"`
	OccurredAt time.Time        `json:"occurredAt"`
}

// Publisher delivers events to an external consumer.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
