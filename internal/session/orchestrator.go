package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/JojoKaizeb/GenXuzoProject/internal/store"
)

type Status string

const (
	StatusUninitialized Status = "uninitialized"
	StatusPairing       Status = "pairing"
	StatusConnected     Status = "connected"
	StatusDisconnected  Status = "disconnected"
)

// Record is the persisted metadata of one actor's session. The live
// connection handle is kept separately and never serialized.
type Record struct {
	ActorID  int64  `json:"telegramId"`
	Username string `json:"telegramUsername,omitempty"`
	Number   string `json:"number"`
	AuthDir  string `json:"sessionDir"`
	Status   Status `json:"status"`
}

// UpdateKind describes a pairing/connection transition surfaced to the
// actor's chat.
type UpdateKind string

const (
	UpdatePairingCode   UpdateKind = "pairing_code"
	UpdatePairingFailed UpdateKind = "pairing_failed"
	UpdateConnected     UpdateKind = "connected"
	UpdateClosed        UpdateKind = "closed"
)

type Update struct {
	Kind  UpdateKind
	Code  string
	Cause CloseCause
}

type UpdateFunc func(Update)

var ErrNoSession = errors.New("no registered session")

const DefaultReconnectDelay = 5 * time.Second

type Orchestrator struct {
	log    zerolog.Logger
	dialer Dialer

	sessionsDir    string
	indexPath      string
	isOperator     func(int64) bool
	reconnectDelay time.Duration

	mu      sync.Mutex
	records map[int64]*Record
	conns   map[int64]Conn

	runCtx context.Context
}

func NewOrchestrator(dataDir string, dialer Dialer, isOperator func(int64) bool, reconnectDelay time.Duration, log zerolog.Logger) (*Orchestrator, error) {
	if reconnectDelay <= 0 {
		reconnectDelay = DefaultReconnectDelay
	}
	o := &Orchestrator{
		log:            log,
		dialer:         dialer,
		sessionsDir:    filepath.Join(dataDir, "sessions"),
		indexPath:      filepath.Join(dataDir, "sessions", "user_sessions.json"),
		isOperator:     isOperator,
		reconnectDelay: reconnectDelay,
		records:        make(map[int64]*Record),
		conns:          make(map[int64]Conn),
		runCtx:         context.Background(),
	}
	var list []*Record
	if _, err := store.LoadJSON(o.indexPath, &list); err != nil {
		return nil, err
	}
	for _, r := range list {
		o.records[r.ActorID] = r
	}
	return o, nil
}

// Start pins the lifecycle context used by connection watchers and
// scheduled reconnects.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	o.runCtx = ctx
	o.mu.Unlock()
}

// Restore re-attempts connections for every persisted session whose last
// known status was connected. Records without a credential directory are
// skipped.
func (o *Orchestrator) Restore(ctx context.Context) {
	o.mu.Lock()
	var ids []int64
	for id, r := range o.records {
		if r.Status == StatusConnected {
			ids = append(ids, id)
		}
	}
	o.mu.Unlock()

	for _, id := range ids {
		if err := o.connect(ctx, id, nil); err != nil {
			o.log.Warn().Err(err).Int64("actor", id).Msg("session restore failed")
		}
	}
}

// Pair registers (or re-registers) the actor's session and starts the
// pairing flow. Transitions are surfaced through onUpdate.
func (o *Orchestrator) Pair(ctx context.Context, actor int64, username, number string, onUpdate UpdateFunc) error {
	o.mu.Lock()
	if o.conns[actor] != nil {
		o.mu.Unlock()
		return fmt.Errorf("actor %d already has a live connection", actor)
	}
	r, ok := o.records[actor]
	if !ok {
		r = &Record{
			ActorID: actor,
			AuthDir: filepath.Join(o.sessionsDir, fmt.Sprintf("user_%d", actor)),
		}
		o.records[actor] = r
	}
	r.Username = username
	r.Number = number
	r.Status = StatusPairing
	o.mu.Unlock()

	if err := o.persist(); err != nil {
		return err
	}
	return o.connect(ctx, actor, onUpdate)
}

// connect opens the connection for an existing record. It no-ops when a
// live handle already exists, keeping session transitions serialized.
func (o *Orchestrator) connect(ctx context.Context, actor int64, onUpdate UpdateFunc) error {
	o.mu.Lock()
	r, ok := o.records[actor]
	if !ok {
		o.mu.Unlock()
		return ErrNoSession
	}
	if o.conns[actor] != nil {
		o.mu.Unlock()
		return nil
	}
	authDir := r.AuthDir
	number := r.Number
	o.mu.Unlock()

	if err := os.MkdirAll(authDir, 0o700); err != nil {
		return err
	}
	conn, err := o.dialer.Dial(ctx, authDir)
	if err != nil {
		return err
	}

	o.mu.Lock()
	// A concurrent connect may have won; keep the first handle only.
	if o.conns[actor] != nil {
		o.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	o.conns[actor] = conn
	o.mu.Unlock()

	go o.watch(conn, actor, number, onUpdate)
	return nil
}

// watch drives the per-session state machine from connection events.
func (o *Orchestrator) watch(conn Conn, actor int64, number string, onUpdate UpdateFunc) {
	notify := func(u Update) {
		if onUpdate != nil {
			onUpdate(u)
		}
	}

	// Request a pairing code at most once per connection attempt, no
	// matter how many readiness events the client emits.
	pairingRequested := false
	requestPairing := func() {
		if pairingRequested || conn.Registered() {
			return
		}
		pairingRequested = true
		code, err := conn.RequestPairingCode(o.lifecycleCtx(), number)
		if err != nil {
			o.log.Error().Err(err).Int64("actor", actor).Msg("pairing code request failed")
			notify(Update{Kind: UpdatePairingFailed})
			return
		}
		notify(Update{Kind: UpdatePairingCode, Code: code})
	}
	requestPairing()

	for ev := range conn.Events() {
		switch ev.Kind {
		case EventOpen:
			requestPairing()
			o.setStatus(actor, StatusConnected)
			o.log.Info().Int64("actor", actor).Str("number", number).Msg("session connected")
			notify(Update{Kind: UpdateConnected})

		case EventClosed:
			o.dropConn(actor, conn)
			o.setStatus(actor, StatusDisconnected)
			notify(Update{Kind: UpdateClosed, Cause: ev.Cause})

			if ev.Cause.Permanent() {
				o.log.Info().Int64("actor", actor).Msg("session logged out, not reconnecting")
				return
			}
			o.log.Info().Int64("actor", actor).Dur("delay", o.reconnectDelay).Msg("session closed, reconnect scheduled")
			o.scheduleReconnect(actor)
			return
		}
	}
	// Event stream ended without a close event: treat as a lost connection.
	if o.dropConn(actor, conn) {
		o.setStatus(actor, StatusDisconnected)
		o.scheduleReconnect(actor)
	}
}

// scheduleReconnect arms exactly one delayed reconnect attempt. The attempt
// re-checks the record: it no-ops if the session was removed or something
// else already reconnected it.
func (o *Orchestrator) scheduleReconnect(actor int64) {
	ctx := o.lifecycleCtx()
	t := time.NewTimer(o.reconnectDelay)
	go func() {
		defer t.Stop()
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}

		o.mu.Lock()
		r, ok := o.records[actor]
		stale := !ok || r.Status != StatusDisconnected || o.conns[actor] != nil
		o.mu.Unlock()
		if stale {
			return
		}
		if err := o.connect(ctx, actor, nil); err != nil {
			o.log.Warn().Err(err).Int64("actor", actor).Msg("reconnect attempt failed")
		}
	}()
}

func (o *Orchestrator) lifecycleCtx() context.Context {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.runCtx
}

// dropConn forgets the live handle if it is still the current one.
func (o *Orchestrator) dropConn(actor int64, conn Conn) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.conns[actor] != conn {
		return false
	}
	delete(o.conns, actor)
	return true
}

func (o *Orchestrator) setStatus(actor int64, s Status) {
	o.mu.Lock()
	r, ok := o.records[actor]
	if ok {
		r.Status = s
	}
	o.mu.Unlock()
	if !ok {
		return
	}
	if err := o.persist(); err != nil {
		o.log.Error().Err(err).Msg("session index save failed")
	}
}

// Conn returns the actor's live connection. Operators with no session of
// their own receive an arbitrary other live connection; this fallback is a
// deliberate privilege rule, not an accident.
func (o *Orchestrator) Conn(actor int64) (Conn, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if r, ok := o.records[actor]; ok && r.Status == StatusConnected {
		if c := o.conns[actor]; c != nil {
			return c, true
		}
	}
	if o.isOperator != nil && o.isOperator(actor) {
		for id, c := range o.conns {
			if r, ok := o.records[id]; ok && r.Status == StatusConnected && c != nil {
				o.log.Info().Int64("operator", actor).Int64("session_of", id).Msg("operator using fallback session")
				return c, true
			}
		}
	}
	return nil, false
}

// Teardown logs the session out (best effort), wipes its credentials and
// removes it from the index.
func (o *Orchestrator) Teardown(ctx context.Context, actor int64) error {
	o.mu.Lock()
	r, ok := o.records[actor]
	if !ok {
		o.mu.Unlock()
		return ErrNoSession
	}
	conn := o.conns[actor]
	delete(o.conns, actor)
	delete(o.records, actor)
	authDir := r.AuthDir
	o.mu.Unlock()

	if conn != nil {
		if err := conn.Logout(ctx); err != nil {
			o.log.Debug().Err(err).Int64("actor", actor).Msg("logout failed during teardown")
		}
		_ = conn.Close()
	}
	if authDir != "" {
		if err := os.RemoveAll(authDir); err != nil {
			o.log.Warn().Err(err).Str("dir", authDir).Msg("credential wipe failed")
		}
	}
	return o.persist()
}

// TeardownAll clears every registered session.
func (o *Orchestrator) TeardownAll(ctx context.Context) int {
	o.mu.Lock()
	ids := make([]int64, 0, len(o.records))
	for id := range o.records {
		ids = append(ids, id)
	}
	o.mu.Unlock()

	n := 0
	for _, id := range ids {
		if err := o.Teardown(ctx, id); err == nil {
			n++
		}
	}
	return n
}

func (o *Orchestrator) Get(actor int64) (Record, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	r, ok := o.records[actor]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// Records returns a snapshot ordered by actor id.
func (o *Orchestrator) Records() []Record {
	o.mu.Lock()
	out := make([]Record, 0, len(o.records))
	for _, r := range o.records {
		out = append(out, *r)
	}
	o.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ActorID < out[j].ActorID })
	return out
}

// FindByUsername resolves "@name" targets for operator commands.
func (o *Orchestrator) FindByUsername(username string) (Record, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, r := range o.records {
		if r.Username == username {
			return *r, true
		}
	}
	return Record{}, false
}

func (o *Orchestrator) ConnectedCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, r := range o.records {
		if r.Status == StatusConnected {
			n++
		}
	}
	return n
}

// ConnectedBy counts connected sessions matching the predicate.
func (o *Orchestrator) ConnectedBy(pred func(actorID int64) bool) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for id, r := range o.records {
		if r.Status == StatusConnected && pred(id) {
			n++
		}
	}
	return n
}

// IsConnected reports whether the actor's own session is live.
func (o *Orchestrator) IsConnected(actor int64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	r, ok := o.records[actor]
	return ok && r.Status == StatusConnected
}

func (o *Orchestrator) persist() error {
	o.mu.Lock()
	list := make([]*Record, 0, len(o.records))
	for _, r := range o.records {
		c := *r
		list = append(list, &c)
	}
	o.mu.Unlock()
	sort.Slice(list, func(i, j int) bool { return list[i].ActorID < list[j].ActorID })
	return store.SaveJSON(o.indexPath, list)
}
