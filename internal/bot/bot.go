// Package bot implements the command surface: routing, capability checks and
// the handlers behind every slash command and callback.
package bot

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/JojoKaizeb/GenXuzoProject/internal/access"
	"github.com/JojoKaizeb/GenXuzoProject/internal/broadcast"
	"github.com/JojoKaizeb/GenXuzoProject/internal/cooldown"
	"github.com/JojoKaizeb/GenXuzoProject/internal/gate"
	"github.com/JojoKaizeb/GenXuzoProject/internal/history"
	"github.com/JojoKaizeb/GenXuzoProject/internal/progress"
	"github.com/JojoKaizeb/GenXuzoProject/internal/remotecfg"
	"github.com/JojoKaizeb/GenXuzoProject/internal/session"
	kit "github.com/JojoKaizeb/GenXuzoProject/internal/transport"
)

// Version is the running release, compared against the remote version
// document by /update.
var Version = "3.1.0"

const historyPageSize = 5

type capability int

const (
	capAnyone capability = iota
	capAdmin
	capOwner
)

type command struct {
	cap     capability
	handler func(ctx context.Context, m *kit.Message, args string) error
}

type Bot struct {
	log      zerolog.Logger
	adapter  kit.Adapter
	gate     *gate.Gate
	local    *gate.LocalState
	roster   *access.Roster
	cooldown *cooldown.Registry
	history  *history.Registry
	sessions *session.Orchestrator
	remote   *remotecfg.Cache
	caster   *broadcast.Engine
	reporter *progress.Reporter

	channel      string // required channel, "@name" form; "" disables the gate
	pendingImage string // delivery status photo; "" keeps status messages text-only
	doneImage    string
	startedAt    time.Time
	restart      func()

	commands map[string]command

	pmu     sync.Mutex
	pending map[kit.MessageRef]pendingReply
}

// Deps carries the collaborators a Bot routes between.
type Deps struct {
	Adapter  kit.Adapter
	Gate     *gate.Gate
	Local    *gate.LocalState
	Roster   *access.Roster
	Cooldown *cooldown.Registry
	History  *history.Registry
	Sessions *session.Orchestrator
	Remote   *remotecfg.Cache
	Caster   *broadcast.Engine
	Reporter *progress.Reporter

	// PendingImage/DoneImage switch delivery status messages to photos with
	// caption-edited progress. Both optional; DoneImage falls back to
	// PendingImage.
	Channel      string
	PendingImage string
	DoneImage    string
	Restart      func()
}

func New(d Deps, log zerolog.Logger) *Bot {
	b := &Bot{
		log:          log,
		adapter:      d.Adapter,
		gate:         d.Gate,
		local:        d.Local,
		roster:       d.Roster,
		cooldown:     d.Cooldown,
		history:      d.History,
		sessions:     d.Sessions,
		remote:       d.Remote,
		caster:       d.Caster,
		reporter:     d.Reporter,
		channel:      d.Channel,
		pendingImage: d.PendingImage,
		doneImage:    d.DoneImage,
		startedAt:    time.Now(),
		restart:      d.Restart,
		pending:      make(map[kit.MessageRef]pendingReply),
	}
	b.commands = map[string]command{
		"/start":       {capAnyone, b.handleStart},
		"/status":      {capAnyone, b.handleStatus},
		"/update":      {capOwner, b.handleUpdate},
		"/reqpair":     {capAnyone, b.handleReqPair},
		"/send":        {capAnyone, b.handleSend},
		"/list":        {capAnyone, b.handleList},
		"/clear":       {capAnyone, b.handleClear},
		"/history":     {capAdmin, b.handleHistory},
		"/cs":          {capAdmin, b.handleStats},
		"/bc":          {capAdmin, b.handleBroadcast},
		"/addprem":     {capAdmin, b.handleAddPremium},
		"/delprem":     {capAdmin, b.handleDelPremium},
		"/listprem":    {capAdmin, b.handleListPremium},
		"/maintenance": {capOwner, b.handleMaintenance},
		"/setcd":       {capOwner, b.handleSetCooldown},
		"/addadmin":    {capOwner, b.handleAddAdmin},
		"/deladmin":    {capOwner, b.handleDelAdmin},
		"/restart":     {capOwner, b.handleRestart},
	}
	return b
}

// Dispatch routes one inbound update. Every update passes through the gate;
// plain chatter that is neither a command nor an awaited reply only touches
// the activity history.
func (b *Bot) Dispatch(ctx context.Context, upd kit.Update) {
	switch upd.Kind {
	case kit.UpdateCallback:
		b.dispatchCallback(ctx, upd)
	case kit.UpdateMessage:
		b.dispatchMessage(ctx, upd)
	}
}

func (b *Bot) dispatchMessage(ctx context.Context, upd kit.Update) {
	m := upd.Message

	if m.ReplyTo != nil {
		if p, ok := b.takePending(kit.MessageRef{ChatID: m.ChatID, MessageID: m.ReplyTo.MessageID}); ok {
			b.gate.Handle(ctx, upd, p.command, func(ctx context.Context, _ kit.Update) error {
				return p.fn(ctx, m)
			})
			return
		}
	}

	name, args := splitCommand(m.Text)
	cmd, ok := b.commands[name]
	if !ok {
		b.history.Touch(m.FromID, m.FromUsername)
		return
	}
	b.gate.Handle(ctx, upd, name, func(ctx context.Context, _ kit.Update) error {
		if !b.allowed(cmd.cap, m.FromID) {
			return b.replyText(ctx, m, "⛔ You are not allowed to use this command.")
		}
		return cmd.handler(ctx, m, args)
	})
}

func (b *Bot) dispatchCallback(ctx context.Context, upd kit.Update) {
	cb := upd.Callback
	action := cb.Data
	if i := strings.IndexByte(action, ':'); i >= 0 {
		action = action[:i]
	}
	h, ok := b.callbacks()[action]
	if !ok {
		b.history.Touch(cb.FromID, cb.Username)
		_ = b.adapter.AnswerCallback(ctx, cb.ID, "", false)
		return
	}
	b.gate.Handle(ctx, upd, action, func(ctx context.Context, _ kit.Update) error {
		return h(ctx, cb)
	})
}

func (b *Bot) callbacks() map[string]func(context.Context, *kit.Callback) error {
	return map[string]func(context.Context, *kit.Callback) error{
		"verify_join":  b.cbVerifyJoin,
		"history_page": b.cbHistoryPage,
		"menu":         b.cbMenu,
	}
}

func (b *Bot) allowed(c capability, actor int64) bool {
	switch c {
	case capOwner:
		return b.roster.IsOwner(actor)
	case capAdmin:
		return b.roster.IsAdmin(actor)
	default:
		return true
	}
}

func splitCommand(text string) (name, args string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}
	name = text
	if i := strings.IndexAny(text, " \n"); i >= 0 {
		name, args = text[:i], strings.TrimSpace(text[i+1:])
	}
	// Strip the bot-mention suffix of group commands ("/status@somebot").
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name), args
}

// pendingReply is a registered continuation for a force-reply prompt.
// Entries expire: a prompt nobody answers within pendingTTL is dropped the
// next time the map is touched, so abandoned confirm flows cannot pile up.
type pendingReply struct {
	command string
	at      time.Time
	fn      func(ctx context.Context, m *kit.Message) error
}

const pendingTTL = 10 * time.Minute

func (b *Bot) expectReply(prompt kit.MessageRef, command string, fn func(ctx context.Context, m *kit.Message) error) {
	now := time.Now()
	b.pmu.Lock()
	for ref, p := range b.pending {
		if now.Sub(p.at) > pendingTTL {
			delete(b.pending, ref)
		}
	}
	b.pending[prompt] = pendingReply{command: command, at: now, fn: fn}
	b.pmu.Unlock()
}

func (b *Bot) takePending(prompt kit.MessageRef) (pendingReply, bool) {
	b.pmu.Lock()
	defer b.pmu.Unlock()
	p, ok := b.pending[prompt]
	if !ok {
		return pendingReply{}, false
	}
	delete(b.pending, prompt)
	if time.Since(p.at) > pendingTTL {
		return pendingReply{}, false
	}
	return p, true
}

func (b *Bot) replyText(ctx context.Context, m *kit.Message, text string) error {
	_, err := b.adapter.SendText(ctx, kit.ChatTarget{ChatID: m.ChatID}, text, nil)
	return err
}

var numberRe = regexp.MustCompile(`^\d{8,15}$`)

// normalizeNumber strips formatting from a phone number and validates it.
func normalizeNumber(raw string) (string, error) {
	n := strings.NewReplacer("+", "", " ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(raw))
	if !numberRe.MatchString(n) {
		return "", fmt.Errorf("invalid number %q: expected 8-15 digits", raw)
	}
	return n, nil
}

// formatPairingCode groups the code for readability: "ABCD1234" → "ABCD-1234".
func formatPairingCode(code string) string {
	code = strings.ReplaceAll(code, "-", "")
	if len(code) <= 4 {
		return code
	}
	var parts []string
	for i := 0; i < len(code); i += 4 {
		end := i + 4
		if end > len(code) {
			end = len(code)
		}
		parts = append(parts, code[i:end])
	}
	return strings.Join(parts, "-")
}

// resolveActor turns "123456", "@name" into an actor id using the session
// index first, then the activity history.
func (b *Bot) resolveActor(arg string) (int64, bool) {
	arg = strings.TrimSpace(arg)
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return id, true
	}
	name := strings.TrimPrefix(arg, "@")
	if name == "" {
		return 0, false
	}
	if r, ok := b.sessions.FindByUsername(name); ok {
		return r.ActorID, true
	}
	if r, ok := b.history.FindByUsername(name); ok {
		return r.ActorID, true
	}
	return 0, false
}
