package smtp

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/go-user-service/internal/domain"
	"github.com/go-user-service/internal/infrastructure/metrics"
)

// ErrQueueFull is returned when the dispatcher cannot accept more mail.
var ErrQueueFull = errors.New("mail queue full")

type message struct {
	to, subject, body string
}

// Dispatcher is a Mailer that hands messages to a background worker so
// request handlers never block on the SMTP round trip. Delivery failures are
// logged and counted; they are not reported to the caller.
type Dispatcher struct {
	next  Mailer
	queue chan message

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewDispatcher(next Mailer, size int) *Dispatcher {
	if size < 1 {
		size = 1
	}
	d := &Dispatcher{
		next:  next,
		queue: make(chan message, size),
		done:  make(chan struct{}),
	}
	go d.run()
	return d
}

// SendEmail enqueues the message. It fails only when the queue is full or
// the dispatcher has been closed.
func (d *Dispatcher) SendEmail(to, subject, body string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return errors.New("mail dispatcher closed")
	}
	select {
	case d.queue <- message{to: to, subject: subject, body: body}:
		return nil
	default:
		metrics.RecordDelivery(domain.ChannelEmail, metrics.StatusDropped)
		return ErrQueueFull
	}
}

// Close stops accepting mail and waits for queued messages to drain.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for m := range d.queue {
		if err := d.next.SendEmail(m.to, m.subject, m.body); err != nil {
			metrics.RecordDelivery(domain.ChannelEmail, metrics.StatusFailed)
			slog.Warn("email delivery failed", "subject", m.subject, "err", err)
			continue
		}
		metrics.RecordDelivery(domain.ChannelEmail, metrics.StatusSent)
	}
}
