// Package gate wraps command handlers with the cross-cutting checks every
// inbound update goes through: activity tracking, the remote kill-switch,
// local maintenance mode, panic containment, and audit logging.
package gate

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/JojoKaizeb/GenXuzoProject/internal/access"
	"github.com/JojoKaizeb/GenXuzoProject/internal/history"
	"github.com/JojoKaizeb/GenXuzoProject/internal/remotecfg"
	"github.com/JojoKaizeb/GenXuzoProject/internal/store"
	kit "github.com/JojoKaizeb/GenXuzoProject/internal/transport"
)

// Handler is a resolved command handler invoked once the gate has let the
// update through.
type Handler func(ctx context.Context, upd kit.Update) error

// Responder is the adapter slice the gate needs to refuse updates.
type Responder interface {
	SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error)
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
}

// maintenanceAllowed lists commands that stay reachable while the remote
// kill-switch is on, so users can still see why the bot is down and whether
// a new release fixes it.
var maintenanceAllowed = map[string]bool{
	"/status": true,
	"/update": true,
}

type Gate struct {
	log     zerolog.Logger
	resp    Responder
	history *history.Registry
	remote  *remotecfg.Cache
	roster  *access.Roster
	local   *LocalState
	audit   store.Store

	now func() time.Time
}

func New(resp Responder, hist *history.Registry, remote *remotecfg.Cache, roster *access.Roster, local *LocalState, audit store.Store, log zerolog.Logger) *Gate {
	return &Gate{
		log:     log,
		resp:    resp,
		history: hist,
		remote:  remote,
		roster:  roster,
		local:   local,
		audit:   audit,
		now:     time.Now,
	}
}

type actor struct {
	id         int64
	username   string
	chatID     int64
	callbackID string
}

func actorOf(upd kit.Update) actor {
	switch upd.Kind {
	case kit.UpdateCallback:
		cb := upd.Callback
		return actor{id: cb.FromID, username: cb.Username, chatID: cb.ChatID, callbackID: cb.ID}
	default:
		m := upd.Message
		return actor{id: m.FromID, username: m.FromUsername, chatID: m.ChatID}
	}
}

// targetOf extracts what the command acted on: the first argument of a
// message command, or the payload after the callback action name.
func targetOf(upd kit.Update) string {
	switch upd.Kind {
	case kit.UpdateCallback:
		if _, payload, ok := strings.Cut(upd.Callback.Data, ":"); ok {
			return payload
		}
		return ""
	default:
		fields := strings.Fields(upd.Message.Text)
		if len(fields) < 2 {
			return ""
		}
		return fields[1]
	}
}

// Handle runs the full chain for one update. command is the normalized
// command name ("/status") or callback action name; it is what the audit
// trail and the maintenance allowlist key on.
func (g *Gate) Handle(ctx context.Context, upd kit.Update, command string, next Handler) {
	a := actorOf(upd)
	target := targetOf(upd)
	g.history.Touch(a.id, a.username)

	if blocked, reason := g.remoteBlocked(ctx, a, command); blocked {
		g.refuse(ctx, a, fmt.Sprintf("🚧 Bot is under maintenance.\n\n%s", reason))
		g.record(a, command, target, "blocked_remote", nil, 0)
		return
	}
	if g.local.Enabled() && !g.roster.IsOwner(a.id) {
		g.refuse(ctx, a, "🚧 Bot is temporarily unavailable. Please try again later.")
		g.record(a, command, target, "blocked_local", nil, 0)
		return
	}

	start := g.now()
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		g.log.Error().Interface("panic", r).Str("command", command).Int64("actor", a.id).Msg("handler panicked")
		if g.audit != nil {
			_ = g.audit.AppendError(context.Background(), store.ErrorEntry{
				At:      g.now(),
				Context: command,
				Message: fmt.Sprint(r),
				Stack:   string(debug.Stack()),
			})
		}
		g.refuse(ctx, a, "Something went wrong while handling your request.")
		g.record(a, command, target, "panic", fmt.Errorf("%v", r), g.now().Sub(start))
	}()

	err := next(ctx, upd)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		g.log.Error().Err(err).Str("command", command).Int64("actor", a.id).Msg("handler failed")
	}
	g.record(a, command, target, outcome, err, g.now().Sub(start))
}

func (g *Gate) remoteBlocked(ctx context.Context, a actor, command string) (bool, string) {
	if g.remote == nil || maintenanceAllowed[command] {
		return false, ""
	}
	maint := g.remote.Maintenance(ctx)
	if !maint.Enabled {
		return false, ""
	}
	if maint.AllowOperator && g.roster.IsOwner(a.id) {
		return false, ""
	}
	reason := maint.Reason
	if reason == "" {
		reason = "We'll be back shortly."
	}
	return true, reason
}

func (g *Gate) refuse(ctx context.Context, a actor, text string) {
	if a.callbackID != "" {
		if err := g.resp.AnswerCallback(ctx, a.callbackID, text, true); err != nil {
			g.log.Warn().Err(err).Msg("callback refusal failed")
		}
		return
	}
	if _, err := g.resp.SendText(ctx, kit.ChatTarget{ChatID: a.chatID}, text, nil); err != nil {
		g.log.Warn().Err(err).Msg("refusal notice failed")
	}
}

func (g *Gate) record(a actor, command, target, outcome string, err error, took time.Duration) {
	if g.audit == nil {
		return
	}
	e := store.AuditEntry{
		At:       g.now(),
		ActorID:  a.id,
		Username: a.username,
		ChatID:   a.chatID,
		Command:  command,
		Target:   target,
		Outcome:  outcome,
		TookMS:   took.Milliseconds(),
	}
	if err != nil {
		e.Error = err.Error()
	}
	if aerr := g.audit.AppendAudit(context.Background(), e); aerr != nil {
		g.log.Warn().Err(aerr).Msg("audit append failed")
	}
}
