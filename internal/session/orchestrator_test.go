package session

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeConn struct {
	events     chan Event
	registered bool

	mu        sync.Mutex
	pairCalls int
	sent      []string
	closed    bool
}

func (c *fakeConn) Events() <-chan Event { return c.events }
func (c *fakeConn) Registered() bool     { return c.registered }

func (c *fakeConn) RequestPairingCode(_ context.Context, _ string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pairCalls++
	return "ABCD1234", nil
}

func (c *fakeConn) Send(_ context.Context, recipient, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, recipient+":"+text)
	return nil
}

func (c *fakeConn) Logout(context.Context) error { return nil }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	dials atomic.Int64
}

func (d *fakeDialer) Dial(context.Context, string) (Conn, error) {
	d.dials.Add(1)
	c := &fakeConn{events: make(chan Event, 4)}
	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	return c, nil
}

func (d *fakeDialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

func newTestOrchestrator(t *testing.T, isOperator func(int64) bool) (*Orchestrator, *fakeDialer, string) {
	t.Helper()
	dir := t.TempDir()
	d := &fakeDialer{}
	o, err := NewOrchestrator(dir, d, isOperator, 20*time.Millisecond, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	o.Start(context.Background())
	return o, d, dir
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestPairDeliversCodeOnce(t *testing.T) {
	t.Parallel()
	o, d, _ := newTestOrchestrator(t, nil)

	var mu sync.Mutex
	var updates []Update
	onUpdate := func(u Update) {
		mu.Lock()
		updates = append(updates, u)
		mu.Unlock()
	}

	if err := o.Pair(context.Background(), 1, "alice", "628000000001", onUpdate); err != nil {
		t.Fatalf("Pair: %v", err)
	}
	conn := d.last()
	waitFor(t, "pairing code", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(updates) > 0
	})

	// Repeated readiness events must not request another code.
	conn.events <- Event{Kind: EventOpen}
	conn.events <- Event{Kind: EventOpen}
	waitFor(t, "connected status", func() bool { return o.IsConnected(1) })

	conn.mu.Lock()
	calls := conn.pairCalls
	conn.mu.Unlock()
	if calls != 1 {
		t.Fatalf("pairing code requested %d times, want 1", calls)
	}

	mu.Lock()
	first := updates[0]
	mu.Unlock()
	if first.Kind != UpdatePairingCode || first.Code != "ABCD1234" {
		t.Fatalf("first update = %+v", first)
	}
}

func TestLoggedOutNeverReconnects(t *testing.T) {
	t.Parallel()
	o, d, _ := newTestOrchestrator(t, nil)

	if err := o.Pair(context.Background(), 1, "", "628000000001", nil); err != nil {
		t.Fatalf("Pair: %v", err)
	}
	conn := d.last()
	conn.events <- Event{Kind: EventOpen}
	waitFor(t, "connected", func() bool { return o.IsConnected(1) })

	conn.events <- Event{Kind: EventClosed, Cause: CauseLoggedOut}
	waitFor(t, "disconnected", func() bool {
		r, _ := o.Get(1)
		return r.Status == StatusDisconnected
	})

	time.Sleep(100 * time.Millisecond) // well past the reconnect delay
	if got := d.dials.Load(); got != 1 {
		t.Fatalf("dialed %d times after logout, want 1", got)
	}
}

func TestLostConnectionReconnectsOnce(t *testing.T) {
	t.Parallel()
	o, d, _ := newTestOrchestrator(t, nil)

	if err := o.Pair(context.Background(), 1, "", "628000000001", nil); err != nil {
		t.Fatalf("Pair: %v", err)
	}
	conn := d.last()
	conn.events <- Event{Kind: EventOpen}
	waitFor(t, "connected", func() bool { return o.IsConnected(1) })

	conn.events <- Event{Kind: EventClosed, Cause: CauseLost}
	waitFor(t, "redial", func() bool { return d.dials.Load() == 2 })

	// The replacement connection comes back up.
	d.last().events <- Event{Kind: EventOpen}
	waitFor(t, "reconnected", func() bool { return o.IsConnected(1) })

	time.Sleep(100 * time.Millisecond)
	if got := d.dials.Load(); got != 2 {
		t.Fatalf("dialed %d times, want exactly 2", got)
	}
}

func TestConnOperatorFallback(t *testing.T) {
	t.Parallel()
	operator := int64(99)
	o, d, _ := newTestOrchestrator(t, func(id int64) bool { return id == operator })

	if err := o.Pair(context.Background(), 1, "", "628000000001", nil); err != nil {
		t.Fatalf("Pair: %v", err)
	}
	d.last().events <- Event{Kind: EventOpen}
	waitFor(t, "connected", func() bool { return o.IsConnected(1) })

	if _, ok := o.Conn(2); ok {
		t.Fatal("plain user borrowed a foreign session")
	}
	if _, ok := o.Conn(operator); !ok {
		t.Fatal("operator fallback did not yield a session")
	}
}

func TestTeardownWipesCredentials(t *testing.T) {
	t.Parallel()
	o, d, dir := newTestOrchestrator(t, nil)

	if err := o.Pair(context.Background(), 1, "", "628000000001", nil); err != nil {
		t.Fatalf("Pair: %v", err)
	}
	d.last().events <- Event{Kind: EventOpen}
	waitFor(t, "connected", func() bool { return o.IsConnected(1) })

	authDir := filepath.Join(dir, "sessions", "user_1")
	if _, err := os.Stat(authDir); err != nil {
		t.Fatalf("auth dir missing before teardown: %v", err)
	}
	if err := o.Teardown(context.Background(), 1); err != nil {
		t.Fatalf("Teardown: %v", err)
	}
	if _, err := os.Stat(authDir); !os.IsNotExist(err) {
		t.Fatalf("auth dir still present after teardown: %v", err)
	}
	if _, ok := o.Get(1); ok {
		t.Fatal("record survived teardown")
	}
	if err := o.Teardown(context.Background(), 1); err != ErrNoSession {
		t.Fatalf("second teardown err = %v, want ErrNoSession", err)
	}
}

func TestRestoreReconnectsConnectedRecords(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	d := &fakeDialer{}
	o, err := NewOrchestrator(dir, d, nil, time.Second, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	o.Start(context.Background())
	if err := o.Pair(context.Background(), 1, "", "628000000001", nil); err != nil {
		t.Fatalf("Pair: %v", err)
	}
	d.last().events <- Event{Kind: EventOpen}
	waitFor(t, "connected", func() bool { return o.IsConnected(1) })

	// A fresh orchestrator over the same data dir reconnects on restore.
	d2 := &fakeDialer{}
	o2, err := NewOrchestrator(dir, d2, nil, time.Second, zerolog.Nop())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	o2.Start(context.Background())
	o2.Restore(context.Background())
	if got := d2.dials.Load(); got != 1 {
		t.Fatalf("restore dialed %d times, want 1", got)
	}
}
