package pool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"polystore/driver/drivertest"
	"polystore/fault"
)

func TestGetReusesIdleConnection(t *testing.T) {
	drv := drivertest.New()
	p := New(drv)
	ctx := context.Background()

	c, err := p.Get(ctx, "main")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	p.Return(c, false)

	c2, err := p.Get(ctx, "main")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if c2 != c {
		t.Error("second Get() should reuse the idle connection")
	}
	if drv.OpenCount() != 1 {
		t.Errorf("OpenCount() = %d, want 1", drv.OpenCount())
	}
}

func TestGetOpensPerDatabaseWhenNotSwitchable(t *testing.T) {
	drv := drivertest.New() // Switchable defaults to false
	p := New(drv)
	ctx := context.Background()

	a, err := p.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get(a) error: %v", err)
	}
	p.Return(a, false)

	b, err := p.Get(ctx, "b")
	if err != nil {
		t.Fatalf("Get(b) error: %v", err)
	}
	if b == a {
		t.Error("non-switchable driver must not hand an a-bound connection to b")
	}
	if drv.OpenCount() != 2 {
		t.Errorf("OpenCount() = %d, want 2", drv.OpenCount())
	}

	// The a-bound connection stays idle for later a borrows.
	if p.IdleCount() != 1 {
		t.Errorf("IdleCount() = %d, want 1", p.IdleCount())
	}
}

func TestGetSwitchesIdleConnection(t *testing.T) {
	drv := drivertest.New()
	drv.Switchable = true
	p := New(drv)
	ctx := context.Background()

	a, err := p.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get(a) error: %v", err)
	}
	p.Return(a, false)

	b, err := p.Get(ctx, "b")
	if err != nil {
		t.Fatalf("Get(b) error: %v", err)
	}
	if b != a {
		t.Error("switchable driver should re-point the idle connection")
	}
	if b.Database() != "b" {
		t.Errorf("Database() = %q, want b", b.Database())
	}
	if drv.Conns()[0].Switches() != 1 {
		t.Errorf("Switches() = %d, want 1", drv.Conns()[0].Switches())
	}
}

func TestGetEvictsClosedConnections(t *testing.T) {
	drv := drivertest.New()
	p := New(drv)
	ctx := context.Background()

	c, _ := p.Get(ctx, "main")
	p.Return(c, false)

	// The native side dropped the connection while it sat idle.
	drv.Conns()[0].SetOpen(false)

	c2, err := p.Get(ctx, "main")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if c2 == c {
		t.Error("Get() must never return a closed connection")
	}
	if drv.OpenCount() != 2 {
		t.Errorf("OpenCount() = %d, want 2", drv.OpenCount())
	}
}

func TestGetEvictsIdleTimeouts(t *testing.T) {
	drv := drivertest.New()
	p := New(drv, WithIdleCloseTimeout(time.Minute))

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	now := base
	p.now = func() time.Time { return now }

	ctx := context.Background()
	c, _ := p.Get(ctx, "main")
	p.Return(c, false)

	// Within the timeout the connection is reused.
	now = base.Add(30 * time.Second)
	c2, _ := p.Get(ctx, "main")
	if c2 != c {
		t.Error("connection within the idle timeout should be reused")
	}
	p.Return(c2, false)

	// Past the timeout the scan closes it and opens fresh.
	now = base.Add(5 * time.Minute)
	c3, err := p.Get(ctx, "main")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if c3 == c {
		t.Error("stale idle connection should have been evicted")
	}
	if drv.Conns()[0].IsOpen() {
		t.Error("evicted connection should be closed")
	}
}

func TestGetSweepsWholeIdleSet(t *testing.T) {
	drv := drivertest.New()
	p := New(drv)
	ctx := context.Background()

	first, _ := p.Get(ctx, "main")
	second, _ := p.Get(ctx, "main")
	p.Return(first, false)
	p.Return(second, false)

	// The entry queued after the eventual match drops natively.
	drv.Conns()[1].SetOpen(false)

	c, err := p.Get(ctx, "main")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if c != first {
		t.Error("Get() should hand out the first eligible idle connection")
	}
	if p.IdleCount() != 0 {
		t.Errorf("IdleCount() = %d, want 0: closed entries after the match must be evicted", p.IdleCount())
	}
}

func TestReturnForceClose(t *testing.T) {
	drv := drivertest.New()
	p := New(drv)
	ctx := context.Background()

	c, _ := p.Get(ctx, "main")
	p.Return(c, true)

	if p.IdleCount() != 0 {
		t.Errorf("IdleCount() = %d, want 0 after force close", p.IdleCount())
	}
	if drv.Conns()[0].IsOpen() {
		t.Error("force-closed connection should be closed natively")
	}
}

func TestGetOpenFailure(t *testing.T) {
	drv := drivertest.New()
	drv.FailNextOpen(errors.New("refused"))
	p := New(drv)

	_, err := p.Get(context.Background(), "main")
	if err == nil {
		t.Fatal("Get() should surface the open failure")
	}
	if !fault.Is(err, fault.Connection) {
		t.Errorf("kind = %s, want connection", fault.KindOf(err))
	}
}

func TestClear(t *testing.T) {
	drv := drivertest.New()
	p := New(drv)
	ctx := context.Background()

	idle, _ := p.Get(ctx, "main")
	p.Return(idle, false)
	held, _ := p.Get(ctx, "other")

	p.Clear()

	for _, c := range drv.Conns() {
		if c.IsOpen() {
			t.Error("Clear() should close every connection")
		}
	}
	if p.IdleCount() != 0 || p.InUseCount() != 0 {
		t.Error("Clear() should empty the pool")
	}

	_, err := p.Get(ctx, "main")
	if !fault.Is(err, fault.Lifecycle) {
		t.Errorf("Get() after Clear(): kind = %s, want lifecycle", fault.KindOf(err))
	}

	// Returning the straggler after Clear closes it, not re-pools it.
	p.Return(held, false)
	if p.IdleCount() != 0 {
		t.Error("Return() after Clear() must not re-pool the connection")
	}
}

func TestConcurrentBorrowExclusivity(t *testing.T) {
	drv := drivertest.New()
	p := New(drv)
	ctx := context.Background()

	const workers = 8
	const iterations = 50

	var mu sync.Mutex
	held := map[*Pooled]struct{}{}

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				c, err := p.Get(ctx, "main")
				if err != nil {
					errs <- err
					return
				}
				mu.Lock()
				if _, dup := held[c]; dup {
					mu.Unlock()
					errs <- errors.New("connection handed to two borrowers")
					return
				}
				held[c] = struct{}{}
				mu.Unlock()

				mu.Lock()
				delete(held, c)
				mu.Unlock()
				p.Return(c, false)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}

	if p.InUseCount() != 0 {
		t.Errorf("InUseCount() = %d, want 0", p.InUseCount())
	}
}
