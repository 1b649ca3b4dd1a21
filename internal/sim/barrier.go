package sim

import "sync"

// Barrier is a reusable step rendezvous. All parties block in Wait until
// the last one arrives; that arrival runs the boundary action exclusively
// and releases the generation. A party that stops participating must
// Retire so the remaining ones are not left waiting, and Abort releases
// everyone with an error.
type Barrier struct {
	mu      sync.Mutex
	action  func()
	parties int
	waiting int
	release chan struct{}
	err     error
}

// NewBarrier creates a barrier for the given number of parties. action,
// if non-nil, runs once per tripped generation while all other parties
// are still blocked.
func NewBarrier(parties int, action func()) *Barrier {
	return &Barrier{
		parties: parties,
		action:  action,
		release: make(chan struct{}),
	}
}

// Wait blocks until every active party has arrived. The last arriver runs
// the boundary action before anyone is released. Returns the abort error
// if the barrier was aborted.
func (b *Barrier) Wait() error {
	b.mu.Lock()
	if b.err != nil {
		b.mu.Unlock()
		return b.err
	}
	b.waiting++
	if b.waiting >= b.parties {
		b.trip()
		b.mu.Unlock()
		return nil
	}
	ch := b.release
	b.mu.Unlock()

	<-ch

	b.mu.Lock()
	err := b.err
	b.mu.Unlock()
	return err
}

// trip runs the boundary action and releases the current generation.
// Callers must hold b.mu; holding it keeps the action exclusive with
// respect to every other party.
func (b *Barrier) trip() {
	if b.action != nil {
		b.action()
	}
	b.waiting = 0
	close(b.release)
	b.release = make(chan struct{})
}

// Retire permanently removes one party. If the retiring party was the
// last one outstanding, the barrier trips for the waiters.
func (b *Barrier) Retire() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.parties > 0 {
		b.parties--
	}
	if b.parties > 0 && b.waiting >= b.parties {
		b.trip()
	}
}

// Abort releases all waiters, current and future, with err. The first
// abort error wins.
func (b *Barrier) Abort(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err == nil {
		b.err = err
	}
	b.waiting = 0
	close(b.release)
	b.release = make(chan struct{})
}

// Err returns the abort error, if any.
func (b *Barrier) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}
