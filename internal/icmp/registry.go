package icmp

import (
	"net/netip"
	"sort"
	"sync"
	"time"
)

// Handle identifies an open ICMP socket. It is the socket's file descriptor.
type Handle int

// InvalidHandle is never returned by a successful Open.
const InvalidHandle Handle = -1

// Binding is the fixed destination of an open socket.
// Every probe on the handle uses it; it never changes after Open.
type Binding struct {
	Handle    Handle
	Addr      netip.Addr
	Timeout   time.Duration
	TTL       int
	CreatedAt time.Time

	// mu serializes probes on this handle. Close does not wait on it before
	// shutting the socket down, which is how a blocked receive is released.
	mu     sync.Mutex
	closed bool
}

// Registry maps open handles to their bindings.
// Each Manager owns one; it is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	bindings map[Handle]*Binding
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		bindings: make(map[Handle]*Binding),
	}
}

// Register records b under its handle. A previous entry for the same handle
// can only be stale (the OS does not hand out a live descriptor twice), so it
// is replaced and reported.
func (r *Registry) Register(b *Binding) (replaced bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, replaced = r.bindings[b.Handle]
	r.bindings[b.Handle] = b
	return replaced
}

// Lookup returns the binding for h.
func (r *Registry) Lookup(h Handle) (*Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bindings[h]
	return b, ok
}

// Remove deletes and returns the binding for h.
func (r *Registry) Remove(h Handle) (*Binding, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bindings[h]
	if ok {
		delete(r.bindings, h)
	}
	return b, ok
}

// Len returns the number of registered handles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.bindings)
}

// Handles returns the registered handles in ascending order.
func (r *Registry) Handles() []Handle {
	r.mu.RLock()
	handles := make([]Handle, 0, len(r.bindings))
	for h := range r.bindings {
		handles = append(handles, h)
	}
	r.mu.RUnlock()

	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	return handles
}
