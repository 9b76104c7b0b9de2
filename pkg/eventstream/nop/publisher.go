// Package nop provides a no-op eventstream publisher used for tests and
// disabled mode.
package nop

import (
	"context"

	"github.com/lattermind/mnemo/pkg/eventstream"
)

// Publisher is a no-op eventstream publisher.
type Publisher struct{}

// NewPublisher creates a new no-op eventstream publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishMemoryChanged validates input and otherwise does nothing.
func (p *Publisher) PublishMemoryChanged(_ context.Context, event *eventstream.MemoryChangedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	return nil
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}
