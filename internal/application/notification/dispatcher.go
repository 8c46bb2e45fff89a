package notification

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Options tunes a Dispatcher. Zero values get sane defaults.
type Options struct {
	Workers     int
	QueueLength int
	// SendTimeout bounds a single Sender.Send call.
	SendTimeout time.Duration
	Observer    Observer
}

// Dispatcher fans messages out to every sender from a bounded queue drained by
// a fixed worker pool. Enqueue never blocks the caller: a full queue drops the
// message. Sender errors are logged and counted, never returned to a flow.
type Dispatcher struct {
	senders []Sender
	opts    Options
	log     zerolog.Logger

	ch        chan Message
	wg        sync.WaitGroup
	closed    atomic.Bool
	closeOnce sync.Once
	mu        sync.RWMutex
}

func NewDispatcher(log zerolog.Logger, opts Options, senders ...Sender) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueLength <= 0 {
		opts.QueueLength = 64
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 30 * time.Second
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	d := &Dispatcher{
		senders: senders,
		opts:    opts,
		log:     log.With().Str("component", "notification_dispatcher").Logger(),
		ch:      make(chan Message, opts.QueueLength),
	}
	d.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go d.run()
	}
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for m := range d.ch {
		d.deliver(m)
	}
}

func (d *Dispatcher) deliver(m Message) {
	for _, s := range d.senders {
		ctx, cancel := context.WithTimeout(context.Background(), d.opts.SendTimeout)
		err := s.Send(ctx, m)
		cancel()
		if err != nil {
			d.opts.Observer.Failed(s.Name())
			d.log.Error().Err(err).
				Str("channel", s.Name()).
				Str("topic", string(m.Topic)).
				Str("account_kind", string(m.AccountKind)).
				Msg("notification delivery failed")
			continue
		}
		d.opts.Observer.Sent(s.Name())
	}
}

// Enqueue hands m to the worker pool. It returns false when the dispatcher is
// closed or the queue is full.
func (d *Dispatcher) Enqueue(m Message) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed.Load() {
		return false
	}
	select {
	case d.ch <- m:
		return true
	default:
		d.opts.Observer.Dropped()
		d.log.Warn().Str("topic", string(m.Topic)).Msg("notification queue full, message dropped")
		return false
	}
}

// Close stops accepting messages and waits for queued ones to be delivered,
// or for ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed.Store(true)
		close(d.ch)
		d.mu.Unlock()
	})
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
