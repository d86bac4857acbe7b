package icmp

import (
	"net/netip"
	"sync"
	"testing"
)

func newTestBinding(h Handle, addr string) *Binding {
	return &Binding{Handle: h, Addr: netip.MustParseAddr(addr)}
}

func TestRegistry_RegisterLookupRemove(t *testing.T) {
	r := NewRegistry()

	if replaced := r.Register(newTestBinding(3, "10.0.0.1")); replaced {
		t.Error("Register() on empty registry reported a replacement")
	}

	b, ok := r.Lookup(3)
	if !ok {
		t.Fatal("Lookup(3) not found")
	}
	if b.Addr != netip.MustParseAddr("10.0.0.1") {
		t.Errorf("Addr = %v, want 10.0.0.1", b.Addr)
	}

	if _, ok := r.Lookup(4); ok {
		t.Error("Lookup(4) found an unregistered handle")
	}

	removed, ok := r.Remove(3)
	if !ok || removed != b {
		t.Error("Remove(3) did not return the registered binding")
	}
	if _, ok := r.Remove(3); ok {
		t.Error("second Remove(3) reported success")
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

func TestRegistry_ReplacesStaleEntry(t *testing.T) {
	r := NewRegistry()
	r.Register(newTestBinding(5, "10.0.0.1"))

	if replaced := r.Register(newTestBinding(5, "10.0.0.2")); !replaced {
		t.Error("Register() over an existing handle should report a replacement")
	}

	b, _ := r.Lookup(5)
	if b.Addr != netip.MustParseAddr("10.0.0.2") {
		t.Errorf("Addr = %v, want the newer binding 10.0.0.2", b.Addr)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestRegistry_Handles(t *testing.T) {
	r := NewRegistry()
	for _, h := range []Handle{9, 3, 7} {
		r.Register(newTestBinding(h, "192.0.2.1"))
	}

	got := r.Handles()
	want := []Handle{3, 7, 9}
	if len(got) != len(want) {
		t.Fatalf("Handles() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Handles()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestRegistry_Isolation(t *testing.T) {
	a := NewRegistry()
	b := NewRegistry()

	a.Register(newTestBinding(1, "10.0.0.1"))

	if _, ok := b.Lookup(1); ok {
		t.Error("binding leaked into an independent registry")
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(h Handle) {
			defer wg.Done()
			r.Register(newTestBinding(h, "198.51.100.1"))
			r.Lookup(h)
			r.Len()
			r.Remove(h)
		}(Handle(i))
	}
	wg.Wait()

	if r.Len() != 0 {
		t.Errorf("Len() = %d after concurrent register/remove, want 0", r.Len())
	}
}
