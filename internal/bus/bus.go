// Package bus is a process-local, address-keyed request router.
//
// Each address is bound to exactly one handler. Callers send a typed body plus
// optional string metadata (the caller identity travels here) and either get the
// handler's reply, a typed failure, or a timeout once their bound expires.
// Handlers that outlive the caller are not cancelled; their result is dropped.
package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

const (
	// DefaultTimeout bounds a request whose context carries no deadline
	DefaultTimeout = 30 * time.Second

	// DefaultMaxInFlight caps concurrently running handlers; extra requests queue
	DefaultMaxInFlight = 256
)

// Metadata carries small string values alongside a payload
type Metadata map[string]string

// Get returns the value for key; safe on a nil map
func (m Metadata) Get(key string) string {
	if m == nil {
		return ""
	}
	return m[key]
}

// Message is what a handler receives
type Message struct {
	Body     any
	Metadata Metadata
	ID       string
	Address  string
}

// Handler serves one address. It returns the reply body or an error; returning a
// *ReplyError controls the failure code the caller sees.
type Handler func(ctx context.Context, msg *Message) (any, error)

// Option configures a Bus
type Option func(*Bus)

// WithTimeout sets the bound applied to requests whose context has no deadline
func WithTimeout(d time.Duration) Option {
	return func(b *Bus) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithMaxInFlight caps how many handlers may run at once
func WithMaxInFlight(n int64) Option {
	return func(b *Bus) {
		if n > 0 {
			b.maxInFlight = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// Bus routes requests to registered handlers
type Bus struct {
	handlers    map[string]Handler
	inflight    *semaphore.Weighted
	logger      *slog.Logger
	wg          sync.WaitGroup
	timeout     time.Duration
	maxInFlight int64
	mu          sync.RWMutex
}

// New creates an empty bus
func New(opts ...Option) *Bus {
	b := &Bus{
		handlers:    make(map[string]Handler),
		timeout:     DefaultTimeout,
		maxInFlight: DefaultMaxInFlight,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.inflight = semaphore.NewWeighted(b.maxInFlight)
	return b
}

// Register binds h to address. Binding an address twice is an error.
func (b *Bus) Register(address string, h Handler) error {
	if address == "" {
		return fmt.Errorf("register: empty address")
	}
	if h == nil {
		return fmt.Errorf("register %q: nil handler", address)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.handlers[address]; exists {
		return fmt.Errorf("register %q: %w", address, ErrAddressInUse)
	}
	b.handlers[address] = h

	b.logger.Debug("bus handler registered", "address", address)
	return nil
}

// Unregister removes the handler at address and reports whether one was bound
func (b *Bus) Unregister(address string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.handlers[address]; !exists {
		return false
	}
	delete(b.handlers, address)
	return true
}

func (b *Bus) lookup(address string) Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.handlers[address]
}

type reply struct {
	body any
	err  error
}

// Request sends body to the handler at address and waits for its reply.
//
// The wait is bounded by ctx, or by the bus timeout when ctx has no deadline.
// On expiry the caller gets a CodeTimeout failure but the handler keeps running
// on a context detached from the caller's cancellation, so its side effects may
// still land.
func (b *Bus) Request(ctx context.Context, address string, body any, md Metadata) (any, error) {
	h := b.lookup(address)
	if h == nil {
		b.logger.Warn("bus request to unbound address", "address", address)
		return nil, Fail(CodeAddressNotFound, fmt.Sprintf("no handler for %q", address), ErrAddressNotFound)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	msg := &Message{
		ID:       uuid.NewString(),
		Address:  address,
		Body:     body,
		Metadata: md,
	}

	// Saturated bus: queue for a slot instead of rejecting
	if err := b.inflight.Acquire(ctx, 1); err != nil {
		return nil, b.timedOut(ctx, msg)
	}

	replies := make(chan reply, 1)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer b.inflight.Release(1)
		res, err := b.invoke(context.WithoutCancel(ctx), h, msg)
		replies <- reply{body: res, err: err}
	}()

	select {
	case r := <-replies:
		if r.err != nil {
			return nil, asReply(r.err)
		}
		return r.body, nil
	case <-ctx.Done():
		return nil, b.timedOut(ctx, msg)
	}
}

// Publish delivers body to the handler at address without waiting for it.
// The handler's result is discarded; failures are only logged.
func (b *Bus) Publish(ctx context.Context, address string, body any, md Metadata) error {
	h := b.lookup(address)
	if h == nil {
		return Fail(CodeAddressNotFound, fmt.Sprintf("no handler for %q", address), ErrAddressNotFound)
	}

	msg := &Message{
		ID:       uuid.NewString(),
		Address:  address,
		Body:     body,
		Metadata: md,
	}
	detached := context.WithoutCancel(ctx)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := b.inflight.Acquire(detached, 1); err != nil {
			return
		}
		defer b.inflight.Release(1)
		if _, err := b.invoke(detached, h, msg); err != nil {
			b.logger.Warn("published message failed",
				"address", address,
				"message_id", msg.ID,
				"error", err)
		}
	}()
	return nil
}

// Drain waits for every running handler to finish, or for ctx to end
func (b *Bus) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// invoke runs h, turning a panic into an internal failure
func (b *Bus) invoke(ctx context.Context, h Handler, msg *Message) (res any, err error) {
	defer func() {
		if p := recover(); p != nil {
			b.logger.Error("bus handler panicked",
				"address", msg.Address,
				"message_id", msg.ID,
				"panic", p)
			res = nil
			err = Fail(CodeInternal, fmt.Sprintf("handler for %q panicked", msg.Address), nil)
		}
	}()
	return h(ctx, msg)
}

func (b *Bus) timedOut(ctx context.Context, msg *Message) error {
	b.logger.Warn("bus request timed out",
		"address", msg.Address,
		"message_id", msg.ID,
		"cause", ctx.Err())
	return Fail(CodeTimeout,
		fmt.Sprintf("no reply from %q within bound", msg.Address),
		fmt.Errorf("%w: %w", ErrTimeout, ctx.Err()))
}

// RequestAs is Request with a typed reply. A reply of any other type is an
// internal failure; a nil reply yields the zero value of T.
func RequestAs[T any](ctx context.Context, b *Bus, address string, body any, md Metadata) (T, error) {
	var zero T

	res, err := b.Request(ctx, address, body, md)
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}

	typed, ok := res.(T)
	if !ok {
		return zero, Fail(CodeInternal, fmt.Sprintf("unexpected reply type %T from %q", res, address), nil)
	}
	return typed, nil
}
