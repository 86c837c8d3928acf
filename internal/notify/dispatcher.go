package notify

import (
	"context"
	"fmt"

	"github.com/hireflow/hireflow/internal/domain"
)

// SendResult is a provider's verdict on one delivery attempt.
type SendResult struct {
	Success    bool
	ExternalID string
	Provider   string
	Err        error
}

// Sender delivers a notification over one channel. Implementations must be
// safe for concurrent use; the queue runs several workers per channel.
type Sender interface {
	Channel() string
	Send(ctx context.Context, n *domain.NotificationRequest) SendResult
}

// Dispatcher routes a notification to the sender registered for its channel.
type Dispatcher struct {
	senders map[string]Sender
}

func NewDispatcher(senders ...Sender) *Dispatcher {
	d := &Dispatcher{senders: make(map[string]Sender, len(senders))}
	for _, s := range senders {
		d.senders[s.Channel()] = s
	}
	return d
}

// Register adds or replaces the sender for a channel.
func (d *Dispatcher) Register(s Sender) {
	d.senders[s.Channel()] = s
}

// Dispatch sends the notification over its channel. An unknown channel is a
// failed attempt like any other and goes through the normal retry path.
func (d *Dispatcher) Dispatch(ctx context.Context, n *domain.NotificationRequest) SendResult {
	s, ok := d.senders[n.Channel]
	if !ok {
		return SendResult{Err: fmt.Errorf("no sender registered for channel %q", n.Channel)}
	}
	return s.Send(ctx, n)
}
