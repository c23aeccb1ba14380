package mail

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrQueueFull is returned by Enqueue when the buffer has no free slot.
	ErrQueueFull = errors.New("mail: queue full")
	// ErrDispatcherStopped is returned by Enqueue after Stop.
	ErrDispatcherStopped = errors.New("mail: dispatcher stopped")
)

// Dispatcher sends messages from a buffered queue on a background worker so
// that callers never wait on SMTP.
type Dispatcher struct {
	mailer  Mailer
	queue   chan Message
	timeout time.Duration
	log     *zap.Logger

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// DispatcherOption customises a Dispatcher.
type DispatcherOption func(*Dispatcher)

func WithSendTimeout(d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.timeout = d
		}
	}
}

func WithDispatcherLogger(l *zap.Logger) DispatcherOption {
	return func(disp *Dispatcher) {
		if l != nil {
			disp.log = l
		}
	}
}

// NewDispatcher starts a worker draining a queue of the given size.
func NewDispatcher(mailer Mailer, size int, opts ...DispatcherOption) *Dispatcher {
	if size <= 0 {
		size = 64
	}
	d := &Dispatcher{
		mailer:  mailer,
		queue:   make(chan Message, size),
		timeout: 15 * time.Second,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.wg.Add(1)
	go d.run()
	return d
}

// Enqueue schedules msg for delivery without blocking.
func (d *Dispatcher) Enqueue(msg Message) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrDispatcherStopped
	}
	select {
	case d.queue <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop rejects new messages and waits for queued ones to be attempted.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for msg := range d.queue {
		d.deliver(msg)
	}
}

func (d *Dispatcher) deliver(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	err := d.mailer.Send(ctx, msg)
	switch {
	case err == nil:
		d.log.Debug("mail delivered", zap.Strings("to", msg.To), zap.String("subject", msg.Subject))
	case errors.Is(err, ErrSMTPDisabled):
		d.log.Info("smtp disabled, message dropped", zap.Strings("to", msg.To), zap.String("subject", msg.Subject))
	default:
		d.log.Warn("mail delivery failed", zap.Strings("to", msg.To), zap.Error(err))
	}
}
