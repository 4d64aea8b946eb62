package session

import (
	"sync"
	"testing"
	"time"
)

// fakeIntro is a minimal in-memory Introspector for pool tests.
type fakeIntro struct {
	flushes int
	closed  bool
}

func (f *fakeIntro) Flush() error                                        { f.flushes++; return nil }
func (f *fakeIntro) MethodsByHandle(MethodHandle) ([]MethodRecord, error) { return nil, nil }
func (f *fakeIntro) MethodByAddress(uint64) (*MethodRecord, error)       { return nil, nil }
func (f *fakeIntro) Signature(MethodHandle) (string, bool)               { return "", false }
func (f *fakeIntro) ReadMemory(uint64, []byte) (int, error)              { return 0, nil }
func (f *fakeIntro) Target() Target                                      { return Target{Flavor: "FakeCLR", Version: "1.0", Arch: ArchX64} }
func (f *fakeIntro) Close() error                                        { f.closed = true; return nil }

func TestPoolReusesIdleSession(t *testing.T) {
	attached := 0
	p := NewPool(func() (Introspector, error) {
		attached++
		return &fakeIntro{}, nil
	})

	s1, err := p.Lease()
	if err != nil {
		t.Fatalf("Lease: %v", err)
	}
	p.Release(s1)

	s2, err := p.Lease()
	if err != nil {
		t.Fatalf("Lease: %v", err)
	}
	if s2 != s1 {
		t.Error("expected idle session to be reused")
	}
	if attached != 1 {
		t.Errorf("attached %d sessions, want 1", attached)
	}
}

func TestPoolBlocksAtCapacity(t *testing.T) {
	p := NewPool(func() (Introspector, error) {
		return &fakeIntro{}, nil
	}, WithCapacity(1))

	s1, err := p.Lease()
	if err != nil {
		t.Fatalf("Lease: %v", err)
	}

	got := make(chan *Session)
	go func() {
		s, err := p.Lease()
		if err != nil {
			t.Errorf("second Lease: %v", err)
		}
		got <- s
	}()

	select {
	case <-got:
		t.Fatal("second Lease returned while first still held")
	case <-time.After(20 * time.Millisecond):
	}

	p.Release(s1)
	select {
	case s := <-got:
		if s != s1 {
			t.Error("expected released session to satisfy waiter")
		}
	case <-time.After(time.Second):
		t.Fatal("second Lease never unblocked")
	}
}

func TestPoolConcurrentLeases(t *testing.T) {
	p := NewPool(func() (Introspector, error) {
		return &fakeIntro{}, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := p.Lease()
			if err != nil {
				t.Errorf("Lease: %v", err)
				return
			}
			if err := s.Invalidate(); err != nil {
				t.Errorf("Invalidate: %v", err)
			}
			p.Release(s)
		}()
	}
	wg.Wait()
}

func TestPoolCloseDetachesIdle(t *testing.T) {
	fi := &fakeIntro{}
	p := NewPool(func() (Introspector, error) { return fi, nil })

	s, err := p.Lease()
	if err != nil {
		t.Fatalf("Lease: %v", err)
	}
	p.Release(s)

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !fi.closed {
		t.Error("idle session not detached on Close")
	}
	if _, err := p.Lease(); err == nil {
		t.Error("Lease after Close should fail")
	}
}

func TestDoubleReleaseIgnored(t *testing.T) {
	p := NewPool(func() (Introspector, error) { return &fakeIntro{}, nil })
	s, err := p.Lease()
	if err != nil {
		t.Fatalf("Lease: %v", err)
	}
	p.Release(s)
	p.Release(s) // must not corrupt the idle set

	s2, err := p.Lease()
	if err != nil {
		t.Fatalf("Lease: %v", err)
	}
	p.Release(s2)
	if len(p.idle) != 1 {
		t.Errorf("idle = %d, want 1", len(p.idle))
	}
}
