package pool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/gostash/storage"
)

// Bridge bounds concurrent access to a synchronous driver and runs its
// blocking calls on a dedicated worker pool. Callers acquire a session,
// submit closures through it, and release it when the operation's scope
// ends.
type Bridge struct {
	workers *ants.Pool
	tokens  chan struct{}
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) BridgeOption {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBridge creates a bridge pool with the given maximum number of
// concurrently live sessions. Size values below one are raised to one.
func NewBridge(size int, opts ...BridgeOption) (*Bridge, error) {
	if size < 1 {
		size = 1
	}

	workers, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("bridge pool: %w", err)
	}

	b := &Bridge{
		workers: workers,
		tokens:  make(chan struct{}, size),
		logger:  slog.Default(),
	}
	for i := 0; i < size; i++ {
		b.tokens <- struct{}{}
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Size returns the configured maximum number of live sessions.
func (b *Bridge) Size() int {
	return cap(b.tokens)
}

// InUse returns the number of sessions currently checked out.
func (b *Bridge) InUse() int {
	return cap(b.tokens) - len(b.tokens)
}

// Acquire checks out a session, waiting until one is available or the
// context ends. A context failure surfaces storage.ErrPoolExhausted.
func (b *Bridge) Acquire(ctx context.Context) (*Session, error) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return nil, storage.ErrStorageClosed
	}

	select {
	case <-b.tokens:
		return &Session{bridge: b}, nil
	default:
	}

	b.logger.Debug("bridge pool saturated, waiting for a session")
	select {
	case <-b.tokens:
		return &Session{bridge: b}, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", storage.ErrPoolExhausted, ctx.Err())
	}
}

// Close releases the worker pool. Sessions still checked out keep
// their workers until they finish; subsequent Acquire calls fail with
// storage.ErrStorageClosed.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	b.workers.Release()
	return nil
}

// Session is a single checked-out slot of a Bridge. It is owned by one
// caller and must not be shared; Release returns it to the pool and is
// safe to call more than once.
type Session struct {
	bridge   *Bridge
	released sync.Once
}

// Run executes fn on the bridge's worker pool and waits for completion
// or context cancellation. On cancellation the closure keeps running to
// completion on its worker, but the result is discarded and the
// session's pool slot stays held until the worker finishes, so a fresh
// Acquire can never land on a busy worker. An abandoned session must
// not be reused; Release it and acquire a new one.
func (s *Session) Run(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	if err := s.bridge.workers.Submit(func() {
		done <- fn()
	}); err != nil {
		if s.bridge.workers.IsClosed() {
			return storage.ErrStorageClosed
		}
		return fmt.Errorf("%w: %v", storage.ErrPoolExhausted, err)
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		s.released.Do(func() {
			go func() {
				<-done
				s.bridge.tokens <- struct{}{}
			}()
		})
		return ctx.Err()
	}
}

// Release returns the session to the pool. Exactly one token is
// returned no matter how many times Release is called.
func (s *Session) Release() {
	s.released.Do(func() {
		s.bridge.tokens <- struct{}{}
	})
}
