package session

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Factory attaches a new introspection connection.
type Factory func() (Introspector, error)

// Pool manages leased sessions. Attaching is expensive, so idle sessions are
// reused rather than re-attached per request. Each lease is exclusive until
// released; creation and reuse decisions are serialized under the pool lock.
type Pool struct {
	factory Factory
	log     *zap.Logger

	mu       sync.Mutex
	cond     *sync.Cond
	idle     []*Session
	leased   int
	capacity int // 0 = attach on demand, no upper bound
	closed   bool
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithCapacity bounds the number of live sessions. Lease blocks when every
// session is leased out.
func WithCapacity(n int) PoolOption {
	return func(p *Pool) { p.capacity = n }
}

// WithPoolLogger sets the pool's logger. Defaults to a no-op logger.
func WithPoolLogger(log *zap.Logger) PoolOption {
	return func(p *Pool) { p.log = log }
}

// NewPool creates a session pool backed by factory.
func NewPool(factory Factory, opts ...PoolOption) *Pool {
	p := &Pool{factory: factory, log: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Lease returns an exclusive session, reusing an idle one when available.
// With a bounded capacity, Lease blocks until a session is released. Fails
// only when the pool is closed or the factory cannot attach.
func (p *Pool) Lease() (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		if p.closed {
			return nil, fmt.Errorf("session pool is closed")
		}
		if n := len(p.idle); n > 0 {
			s := p.idle[n-1]
			p.idle = p.idle[:n-1]
			s.leased = true
			p.leased++
			p.log.Debug("session leased", zap.Int("idle", len(p.idle)), zap.Int("leased", p.leased))
			return s, nil
		}
		if p.capacity == 0 || p.leased < p.capacity {
			break
		}
		p.cond.Wait()
	}

	intro, err := p.factory()
	if err != nil {
		return nil, fmt.Errorf("attach introspection session: %w", err)
	}
	s := &Session{intro: intro, leased: true}
	p.leased++
	p.log.Debug("session attached", zap.Int("leased", p.leased))
	return s, nil
}

// Release returns a session to the idle set. Releasing a session that is not
// leased is a no-op.
func (p *Pool) Release(s *Session) {
	if s == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if !s.leased {
		p.log.Warn("release of unleased session ignored")
		return
	}
	s.leased = false
	p.leased--
	if p.closed {
		s.intro.Close()
	} else {
		p.idle = append(p.idle, s)
	}
	p.cond.Signal()
}

// Close detaches every idle session and fails future leases. Sessions still
// leased out are detached when released.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	var firstErr error
	for _, s := range p.idle {
		if err := s.intro.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.idle = nil
	p.cond.Broadcast()
	return firstErr
}
