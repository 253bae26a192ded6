package cart

import (
	"sync"
	"time"

	"emporio-pos/internal/apperr"

	"github.com/google/uuid"
)

var ErrCartNotFound = apperr.New(apperr.ErrNotFound, "cart_not_found", "cart not found")

type entry struct {
	mu      sync.Mutex
	cart    *Cart
	touched time.Time
}

// Registry holds the open carts of every till, keyed by an opaque id.
type Registry struct {
	mu    sync.RWMutex
	carts map[string]*entry
	now   func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		carts: make(map[string]*entry),
		now:   time.Now,
	}
}

// Open creates an empty cart and returns its id.
func (r *Registry) Open() string {
	id := uuid.NewString()
	r.mu.Lock()
	r.carts[id] = &entry{cart: New(), touched: r.now()}
	r.mu.Unlock()
	return id
}

// With runs fn while holding the cart's lock. Mutations made by fn are kept
// even when fn returns an error, matching how a till keeps the lines it had.
func (r *Registry) With(id string, fn func(c *Cart) error) error {
	r.mu.RLock()
	e, ok := r.carts[id]
	r.mu.RUnlock()
	if !ok {
		return ErrCartNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.touched = r.now()
	return fn(e.cart)
}

// Close discards a cart the till no longer needs.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.carts[id]; !ok {
		return ErrCartNotFound
	}
	delete(r.carts, id)
	return nil
}

// Sweep drops carts idle for longer than maxIdle and reports how many went.
// Carts that are busy, such as one waiting on a card authorization, are
// skipped until the next sweep.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)

	r.mu.RLock()
	candidates := make(map[string]*entry, len(r.carts))
	for id, e := range r.carts {
		candidates[id] = e
	}
	r.mu.RUnlock()

	var idle []string
	for id, e := range candidates {
		if !e.mu.TryLock() {
			continue
		}
		if e.touched.Before(cutoff) {
			idle = append(idle, id)
		}
		e.mu.Unlock()
	}
	if len(idle) == 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for _, id := range idle {
		e, ok := r.carts[id]
		if !ok || !e.mu.TryLock() {
			continue
		}
		// touched again since the first pass
		if e.touched.Before(cutoff) {
			delete(r.carts, id)
			removed++
		}
		e.mu.Unlock()
	}
	return removed
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.carts)
}
