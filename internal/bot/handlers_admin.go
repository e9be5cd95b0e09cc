package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/JojoKaizeb/GenXuzoProject/internal/broadcast"
	"github.com/JojoKaizeb/GenXuzoProject/internal/cooldown"
	"github.com/JojoKaizeb/GenXuzoProject/internal/history"
	"github.com/JojoKaizeb/GenXuzoProject/internal/session"
	kit "github.com/JojoKaizeb/GenXuzoProject/internal/transport"
)

func statusIcon(s session.Status) string {
	switch s {
	case session.StatusConnected:
		return "🟢"
	case session.StatusPairing:
		return "🟡"
	case session.StatusDisconnected:
		return "🔴"
	default:
		return "⚪"
	}
}

func (b *Bot) handleList(ctx context.Context, m *kit.Message, _ string) error {
	// Non-admins see their own session only.
	if !b.roster.IsAdmin(m.FromID) {
		r, ok := b.sessions.Get(m.FromID)
		if !ok {
			return b.replyText(ctx, m, "You have no registered session. Pair one with /reqpair.")
		}
		return b.replyText(ctx, m, fmt.Sprintf("%s Your session: %s · %s", statusIcon(r.Status), r.Number, r.Status))
	}

	records := b.sessions.Records()
	if len(records) == 0 {
		return b.replyText(ctx, m, "No registered sessions.")
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "📋 Sessions (%d)\n\n", len(records))
	for _, r := range records {
		name := r.Username
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(&sb, "%s %d @%s · %s · %s\n", statusIcon(r.Status), r.ActorID, name, r.Number, r.Status)
	}
	return b.replyText(ctx, m, sb.String())
}

func (b *Bot) handleClear(ctx context.Context, m *kit.Message, args string) error {
	// Bare /clear tears down the caller's own session.
	if args == "" {
		if err := b.sessions.Teardown(ctx, m.FromID); err != nil {
			return b.replyText(ctx, m, "You have no registered session.")
		}
		return b.replyText(ctx, m, "🧹 Your session was cleared and its credentials wiped.")
	}
	if !b.roster.IsAdmin(m.FromID) {
		return b.replyText(ctx, m, "⛔ Only admins can clear other sessions.")
	}
	if strings.EqualFold(args, "all") {
		n := b.sessions.TeardownAll(ctx)
		return b.replyText(ctx, m, fmt.Sprintf("🧹 Cleared %d sessions.", n))
	}
	id, ok := b.resolveActor(args)
	if !ok {
		return b.replyText(ctx, m, "❌ Unknown target "+args)
	}
	if err := b.sessions.Teardown(ctx, id); err != nil {
		return b.replyText(ctx, m, fmt.Sprintf("❌ No session for %d.", id))
	}
	return b.replyText(ctx, m, fmt.Sprintf("🧹 Session for %d cleared, credentials wiped.", id))
}

func historyPageText(records []history.Record, page, totalPages int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🗂 Users — page %d/%d\n\n", page, totalPages)
	for _, r := range records {
		name := r.Username
		if name == "" {
			name = "-"
		}
		number := r.Number
		if number == "" {
			number = "-"
		}
		fmt.Fprintf(&sb, "• %d @%s\n  number: %s\n  joined: %s · last seen: %s\n",
			r.ActorID, name, number,
			r.JoinedAt.Format("2006-01-02"), r.LastActive.Format("2006-01-02 15:04"))
	}
	return sb.String()
}

func historyNav(page, totalPages int) *kit.SendOptions {
	var row []kit.Button
	if page > 1 {
		row = append(row, kit.Button{Text: "⬅️ Prev", Data: fmt.Sprintf("history_page:%d", page-1)})
	}
	if page < totalPages {
		row = append(row, kit.Button{Text: "Next ➡️", Data: fmt.Sprintf("history_page:%d", page+1)})
	}
	if len(row) == 0 {
		return nil
	}
	return &kit.SendOptions{Buttons: [][]kit.Button{row}}
}

func (b *Bot) handleHistory(ctx context.Context, m *kit.Message, args string) error {
	page := 1
	if args != "" {
		if n, err := strconv.Atoi(args); err == nil && n > 0 {
			page = n
		}
	}
	records, totalPages := b.history.Page(page, historyPageSize)
	if len(records) == 0 {
		return b.replyText(ctx, m, fmt.Sprintf("No users on page %d (of %d).", page, totalPages))
	}
	_, err := b.adapter.SendText(ctx, kit.ChatTarget{ChatID: m.ChatID},
		historyPageText(records, page, totalPages), historyNav(page, totalPages))
	return err
}

func (b *Bot) cbHistoryPage(ctx context.Context, cb *kit.Callback) error {
	if !b.roster.IsAdmin(cb.FromID) {
		return b.adapter.AnswerCallback(ctx, cb.ID, "Not allowed.", true)
	}
	page := 1
	if i := strings.IndexByte(cb.Data, ':'); i >= 0 {
		if n, err := strconv.Atoi(cb.Data[i+1:]); err == nil && n > 0 {
			page = n
		}
	}
	records, totalPages := b.history.Page(page, historyPageSize)
	if len(records) == 0 {
		return b.adapter.AnswerCallback(ctx, cb.ID, "No such page.", false)
	}
	ref := kit.MessageRef{ChatID: cb.ChatID, MessageID: cb.MessageID}
	if err := b.adapter.EditText(ctx, ref, historyPageText(records, page, totalPages), historyNav(page, totalPages)); err != nil {
		return err
	}
	return b.adapter.AnswerCallback(ctx, cb.ID, "", false)
}

func (b *Bot) handleStats(ctx context.Context, m *kit.Message, _ string) error {
	now := time.Now()
	text := fmt.Sprintf(
		"📈 Statistics\n\n"+
			"👥 Known users: %d\n"+
			"🕑 Active last 24h: %d\n"+
			"🔗 Connected sessions: %d\n"+
			"⭐ Active premium: %d\n"+
			"⭐ Connected premium: %d",
		b.history.Len(),
		b.history.ActiveSince(now.Add(-24*time.Hour)),
		b.sessions.ConnectedCount(),
		b.roster.ActivePremiumCount(now),
		b.sessions.ConnectedBy(func(id int64) bool { return b.roster.IsPremium(id, now) }),
	)
	return b.replyText(ctx, m, text)
}

// parseBroadcastContent builds the payload from the command arguments and,
// when the command replies to a photo, that photo. Trailing "btn:Text|URL"
// lines turn into link buttons.
func parseBroadcastContent(m *kit.Message, args string) (broadcast.Content, error) {
	var c broadcast.Content
	var body []string
	for _, line := range strings.Split(args, "\n") {
		if rest, ok := strings.CutPrefix(strings.TrimSpace(line), "btn:"); ok {
			text, url, found := strings.Cut(rest, "|")
			if !found || strings.TrimSpace(url) == "" {
				return c, fmt.Errorf("bad button line %q, expected btn:Text|URL", line)
			}
			c.Buttons = append(c.Buttons, kit.Button{Text: strings.TrimSpace(text), URL: strings.TrimSpace(url)})
			continue
		}
		body = append(body, line)
	}
	c.Text = strings.TrimSpace(strings.Join(body, "\n"))

	if m.ReplyTo != nil && m.ReplyTo.PhotoID != "" {
		c.Photo = &kit.Photo{FileID: m.ReplyTo.PhotoID}
		if c.Text == "" {
			c.Text = m.ReplyTo.Caption
		}
	}
	if c.Text == "" && c.Photo == nil {
		return c, fmt.Errorf("nothing to broadcast")
	}
	return c, nil
}

func (b *Bot) handleBroadcast(ctx context.Context, m *kit.Message, args string) error {
	content, err := parseBroadcastContent(m, args)
	if err != nil {
		return b.replyText(ctx, m,
			"Usage: /bc <text>\nOptionally reply to a photo, and add up to 4 \"btn:Text|URL\" lines.\n\n❌ "+err.Error())
	}
	recipients := b.history.ActorIDs()

	prompt, err := b.adapter.SendText(ctx, kit.ChatTarget{ChatID: m.ChatID},
		fmt.Sprintf("📣 Ready to broadcast to %d users.\n\nReply CONFIRM to this message to send.", len(recipients)),
		&kit.SendOptions{ForceReply: true})
	if err != nil {
		return err
	}
	b.expectReply(prompt, "/bc", func(ctx context.Context, reply *kit.Message) error {
		if !strings.EqualFold(strings.TrimSpace(reply.Text), "CONFIRM") {
			return b.replyText(ctx, reply, "Broadcast cancelled.")
		}
		return b.runBroadcast(ctx, reply, recipients, content)
	})
	return nil
}

func (b *Bot) runBroadcast(ctx context.Context, m *kit.Message, recipients []int64, content broadcast.Content) error {
	status, err := b.adapter.SendText(ctx, kit.ChatTarget{ChatID: m.ChatID},
		fmt.Sprintf("📣 Broadcasting to %d users...", len(recipients)), nil)
	if err != nil {
		return err
	}
	res, err := b.caster.Run(ctx, recipients, content, status)
	if err != nil {
		_ = b.adapter.EditText(ctx, status, "❌ Broadcast aborted: "+err.Error(), nil)
		return err
	}
	summary := fmt.Sprintf("📣 Broadcast finished.\n\n✅ Delivered: %d\n❌ Failed: %d\n👥 Total: %d",
		res.Succeeded, res.Failed, res.Total)
	if err := b.adapter.EditText(ctx, status, summary, nil); err != nil && !errors.Is(err, kit.ErrNotModified) {
		b.log.Warn().Err(err).Msg("broadcast summary edit failed")
	}
	b.reporter.Forget(status)
	return nil
}

func (b *Bot) handleMaintenance(ctx context.Context, m *kit.Message, args string) error {
	var enable bool
	switch strings.ToLower(args) {
	case "on":
		enable = true
	case "off":
		enable = false
	default:
		return b.replyText(ctx, m, "Usage: /maintenance <on|off>")
	}
	changed, err := b.local.Set(enable)
	if err != nil {
		return err
	}
	if !changed {
		return b.replyText(ctx, m, "Maintenance mode is already "+args+".")
	}
	if err := b.replyText(ctx, m, "🚧 Maintenance mode is now "+strings.ToUpper(args)+"."); err != nil {
		return err
	}

	notice := "🚧 The bot is going down for maintenance. We'll be back soon."
	if !enable {
		notice = "✅ Maintenance is over, the bot is back."
	}
	return b.runBroadcast(ctx, m, b.history.ActorIDs(), broadcast.Content{Text: notice})
}

func (b *Bot) handleSetCooldown(ctx context.Context, m *kit.Message, args string) error {
	if args != "" {
		return b.applyCooldownUpdate(ctx, m, args)
	}
	w := b.cooldown.Windows()
	prompt, err := b.adapter.SendText(ctx, kit.ChatTarget{ChatID: m.ChatID},
		fmt.Sprintf(
			"⏳ Current cooldowns:\nfree: %s\npremium: %s\nowner: %s\n\n"+
				"Reply with the fields to change, e.g. \"free:5m premium:1m owner:0\".",
			cooldown.FormatWindow(w.Free), cooldown.FormatWindow(w.Premium), cooldown.FormatWindow(w.Owner)),
		&kit.SendOptions{ForceReply: true})
	if err != nil {
		return err
	}
	b.expectReply(prompt, "/setcd", func(ctx context.Context, reply *kit.Message) error {
		return b.applyCooldownUpdate(ctx, reply, reply.Text)
	})
	return nil
}

func (b *Bot) applyCooldownUpdate(ctx context.Context, m *kit.Message, input string) error {
	u, errs := cooldown.ParseUpdate(input)
	if u.Empty() {
		msg := "No valid fields found. Expected e.g. \"free:5m premium:1m owner:0\"."
		for _, e := range errs {
			msg += "\n• " + e.Error()
		}
		return b.replyText(ctx, m, msg)
	}
	w, err := b.cooldown.SetWindows(u.Free, u.Premium, u.Owner)
	if err != nil {
		return err
	}
	msg := fmt.Sprintf("✅ Cooldowns updated:\nfree: %s\npremium: %s\nowner: %s",
		cooldown.FormatWindow(w.Free), cooldown.FormatWindow(w.Premium), cooldown.FormatWindow(w.Owner))
	for _, e := range errs {
		msg += "\n⚠️ " + e.Error()
	}
	return b.replyText(ctx, m, msg)
}

func (b *Bot) handleAddPremium(ctx context.Context, m *kit.Message, args string) error {
	fields := strings.Fields(args)
	if len(fields) < 1 {
		return b.replyText(ctx, m, "Usage: /addprem <id|@username> [duration, default 30d]")
	}
	id, ok := b.resolveActor(fields[0])
	if !ok {
		return b.replyText(ctx, m, "❌ Unknown target "+fields[0])
	}
	window := 30 * 24 * time.Hour
	if len(fields) > 1 {
		d, err := cooldown.ParseWindow(fields[1])
		if err != nil {
			return b.replyText(ctx, m, "❌ "+err.Error())
		}
		window = d
	}
	until := time.Now().Add(window)
	existed, err := b.roster.GrantPremium(id, until)
	if err != nil {
		return err
	}
	verb := "granted"
	if existed {
		verb = "extended"
	}
	return b.replyText(ctx, m, fmt.Sprintf("⭐ Premium %s for %d until %s.", verb, id, until.Format("2006-01-02 15:04")))
}

func (b *Bot) handleDelPremium(ctx context.Context, m *kit.Message, args string) error {
	if args == "" {
		return b.replyText(ctx, m, "Usage: /delprem <id|@username>")
	}
	id, ok := b.resolveActor(args)
	if !ok {
		return b.replyText(ctx, m, "❌ Unknown target "+args)
	}
	removed, err := b.roster.RevokePremium(id)
	if err != nil {
		return err
	}
	if !removed {
		return b.replyText(ctx, m, fmt.Sprintf("%d is not on the premium list.", id))
	}
	return b.replyText(ctx, m, fmt.Sprintf("⭐ Premium revoked for %d.", id))
}

func (b *Bot) handleListPremium(ctx context.Context, m *kit.Message, _ string) error {
	members := b.roster.Premium()
	if len(members) == 0 {
		return b.replyText(ctx, m, "The premium list is empty.")
	}
	now := time.Now()
	var sb strings.Builder
	fmt.Fprintf(&sb, "⭐ Premium members (%d)\n\n", len(members))
	for _, p := range members {
		state := "active"
		if !p.ExpiresAt.After(now) {
			state = "expired"
		}
		fmt.Fprintf(&sb, "• %d — until %s (%s)\n", p.ID, p.ExpiresAt.Format("2006-01-02 15:04"), state)
	}
	return b.replyText(ctx, m, sb.String())
}

func (b *Bot) handleAddAdmin(ctx context.Context, m *kit.Message, args string) error {
	if args == "" {
		return b.replyText(ctx, m, "Usage: /addadmin <id|@username>")
	}
	id, ok := b.resolveActor(args)
	if !ok {
		return b.replyText(ctx, m, "❌ Unknown target "+args)
	}
	added, err := b.roster.AddAdmin(id)
	if err != nil {
		return err
	}
	if !added {
		return b.replyText(ctx, m, fmt.Sprintf("%d is already an admin.", id))
	}
	return b.replyText(ctx, m, fmt.Sprintf("🛡 %d is now an admin.", id))
}

func (b *Bot) handleDelAdmin(ctx context.Context, m *kit.Message, args string) error {
	if args == "" {
		return b.replyText(ctx, m, "Usage: /deladmin <id|@username>")
	}
	id, ok := b.resolveActor(args)
	if !ok {
		return b.replyText(ctx, m, "❌ Unknown target "+args)
	}
	removed, err := b.roster.RemoveAdmin(id)
	if err != nil {
		return err
	}
	if !removed {
		return b.replyText(ctx, m, fmt.Sprintf("%d is not an admin.", id))
	}
	return b.replyText(ctx, m, fmt.Sprintf("🛡 %d is no longer an admin.", id))
}

func (b *Bot) handleRestart(ctx context.Context, m *kit.Message, _ string) error {
	if err := b.replyText(ctx, m, "♻️ Restarting..."); err != nil {
		return err
	}
	if b.restart != nil {
		go b.restart()
	}
	return nil
}
