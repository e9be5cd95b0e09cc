package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JojoKaizeb/GenXuzoProject/internal/cooldown"
	"github.com/JojoKaizeb/GenXuzoProject/internal/progress"
	"github.com/JojoKaizeb/GenXuzoProject/internal/session"
	kit "github.com/JojoKaizeb/GenXuzoProject/internal/transport"
)

func (b *Bot) handleStart(ctx context.Context, m *kit.Message, _ string) error {
	text, opt := b.menuPage("main", m.FromID)
	_, err := b.adapter.SendText(ctx, kit.ChatTarget{ChatID: m.ChatID}, text, opt)
	return err
}

// menuPage renders one /start menu screen plus its navigation keyboard.
func (b *Bot) menuPage(page string, actor int64) (string, *kit.SendOptions) {
	back := kit.Button{Text: "⬅️ Back", Data: "menu:main"}
	switch page {
	case "public":
		return "📖 Commands\n\n" +
				"/reqpair <number> — pair a number, get a pairing code\n" +
				"/send <number> <text> — deliver a message over your session\n" +
				"/list — show your session\n" +
				"/clear — remove your session and wipe its credentials\n" +
				"/status — service state",
			&kit.SendOptions{Buttons: [][]kit.Button{{back}}}
	case "owner":
		return "👑 Admin Commands\n\n" +
				"/list, /clear <id|@user|all>, /history [page], /cs\n" +
				"/bc <text> — broadcast (reply CONFIRM)\n" +
				"/addprem, /delprem, /listprem\n" +
				"/maintenance <on|off>, /setcd, /addadmin, /deladmin, /restart, /update",
			&kit.SendOptions{Buttons: [][]kit.Button{{back}}}
	case "about":
		return "ℹ️ GenXuzo gateway v" + Version + "\n\nPairs chat accounts to the messaging network and relays deliveries.",
			&kit.SendOptions{Buttons: [][]kit.Button{{back}}}
	default:
		tier := b.roster.TierOf(actor, time.Now())
		text := fmt.Sprintf(
			"👋 Welcome!\n\n🆔 Your ID: %d\n⭐ Tier: %s\n\nPick a menu below to get started.",
			actor, tier,
		)
		rows := [][]kit.Button{
			{{Text: "📖 Commands", Data: "menu:public"}, {Text: "ℹ️ About", Data: "menu:about"}},
		}
		if b.roster.IsAdmin(actor) {
			rows = append(rows, []kit.Button{{Text: "👑 Admin", Data: "menu:owner"}})
		}
		if b.channel != "" {
			rows = append(rows,
				[]kit.Button{{Text: "📢 Join Channel", URL: "https://t.me/" + strings.TrimPrefix(b.channel, "@")}},
				[]kit.Button{{Text: "✅ Verify Join", Data: "verify_join"}},
			)
		}
		return text, &kit.SendOptions{Buttons: rows}
	}
}

func (b *Bot) cbMenu(ctx context.Context, cb *kit.Callback) error {
	page := "main"
	if i := strings.IndexByte(cb.Data, ':'); i >= 0 {
		page = cb.Data[i+1:]
	}
	text, opt := b.menuPage(page, cb.FromID)
	ref := kit.MessageRef{ChatID: cb.ChatID, MessageID: cb.MessageID}
	if err := b.adapter.EditText(ctx, ref, text, opt); err != nil && !errors.Is(err, kit.ErrNotModified) {
		return err
	}
	return b.adapter.AnswerCallback(ctx, cb.ID, "", false)
}

func (b *Bot) cbVerifyJoin(ctx context.Context, cb *kit.Callback) error {
	if b.channel == "" {
		return b.adapter.AnswerCallback(ctx, cb.ID, "No channel requirement is configured.", false)
	}
	member, err := b.adapter.IsChannelMember(ctx, b.channel, cb.FromID)
	if err != nil {
		return b.adapter.AnswerCallback(ctx, cb.ID, "Could not verify membership, try again.", true)
	}
	if !member {
		return b.adapter.AnswerCallback(ctx, cb.ID, "You have not joined "+b.channel+" yet.", true)
	}
	return b.adapter.AnswerCallback(ctx, cb.ID, "✅ Membership verified, you're good to go.", false)
}

// requireMembership enforces the channel join gate for connection commands.
// It reports whether the caller may proceed; if not it has already answered.
func (b *Bot) requireMembership(ctx context.Context, m *kit.Message) (bool, error) {
	if b.channel == "" || b.roster.IsOwner(m.FromID) {
		return true, nil
	}
	member, err := b.adapter.IsChannelMember(ctx, b.channel, m.FromID)
	if err != nil {
		b.log.Warn().Err(err).Int64("actor", m.FromID).Msg("membership check failed")
		// Verification outage must not lock users out.
		return true, nil
	}
	if member {
		return true, nil
	}
	opt := &kit.SendOptions{Buttons: [][]kit.Button{
		{{Text: "📢 Join Channel", URL: "https://t.me/" + strings.TrimPrefix(b.channel, "@")}},
		{{Text: "✅ Verify Join", Data: "verify_join"}},
	}}
	_, err = b.adapter.SendText(ctx, kit.ChatTarget{ChatID: m.ChatID},
		"🔒 Join "+b.channel+" first, then verify to unlock this command.", opt)
	return false, err
}

func (b *Bot) handleStatus(ctx context.Context, m *kit.Message, _ string) error {
	now := time.Now()
	uptime := now.Sub(b.startedAt).Round(time.Second)
	st := b.remote.State()

	remote := "off"
	if st.Maintenance.Enabled {
		remote = "ON: " + st.Maintenance.Reason
	}
	local := "off"
	if b.local.Enabled() {
		local = fmt.Sprintf("ON since %s", b.local.Since().Format("2006-01-02 15:04"))
	}
	w := b.cooldown.Windows()

	text := fmt.Sprintf(
		"📊 Service Status\n\n"+
			"🤖 Version: %s\n"+
			"⏱ Uptime: %s\n"+
			"🔗 Connected sessions: %d\n"+
			"👥 Known users: %d\n"+
			"⭐ Active premium: %d\n\n"+
			"🚧 Maintenance (remote): %s\n"+
			"🚧 Maintenance (local): %s\n\n"+
			"⏳ Cooldowns: free %s / premium %s / owner %s",
		Version, uptime,
		b.sessions.ConnectedCount(), b.history.Len(), b.roster.ActivePremiumCount(now),
		remote, local,
		cooldown.FormatWindow(w.Free), cooldown.FormatWindow(w.Premium), cooldown.FormatWindow(w.Owner),
	)
	return b.replyText(ctx, m, text)
}

func (b *Bot) handleUpdate(ctx context.Context, m *kit.Message, _ string) error {
	v, err := b.remote.Version(ctx)
	if err != nil {
		return b.replyText(ctx, m, "⚠️ Could not reach the release feed: "+err.Error())
	}
	if v.Version == "" || v.Version == Version {
		return b.replyText(ctx, m, "✅ You are on the latest release ("+Version+").")
	}
	text := fmt.Sprintf("⬆️ Release %s is available (running %s).", v.Version, Version)
	if v.Notes != "" {
		text += "\n\n" + v.Notes
	}
	return b.replyText(ctx, m, text)
}

func (b *Bot) handleReqPair(ctx context.Context, m *kit.Message, args string) error {
	ok, err := b.requireMembership(ctx, m)
	if err != nil || !ok {
		return err
	}
	if args == "" {
		return b.replyText(ctx, m, "Usage: /reqpair <number>\nExample: /reqpair 628123456789")
	}
	number, err := normalizeNumber(args)
	if err != nil {
		return b.replyText(ctx, m, "❌ "+err.Error())
	}

	ref, err := b.adapter.SendText(ctx, kit.ChatTarget{ChatID: m.ChatID},
		"⏳ Preparing session for "+number+"...", nil)
	if err != nil {
		return err
	}

	edit := func(text string) {
		// Transition callbacks outlive the inbound update.
		if err := b.adapter.EditText(context.Background(), ref, text, nil); err != nil {
			b.log.Warn().Err(err).Msg("pairing status edit failed")
		}
	}
	onUpdate := func(u session.Update) {
		switch u.Kind {
		case session.UpdatePairingCode:
			edit(fmt.Sprintf(
				"🔑 Pairing code for %s:\n\n`%s`\n\nEnter it on the device within the next minute.",
				number, formatPairingCode(u.Code)))
		case session.UpdatePairingFailed:
			edit("❌ Pairing failed. Check the number and try /reqpair again.")
		case session.UpdateConnected:
			b.history.SetNumber(m.FromID, number)
			edit("✅ " + number + " is connected and ready.")
		case session.UpdateClosed:
			if u.Cause.Permanent() {
				edit("🔌 Session for " + number + " was logged out on the device.")
			} else {
				edit("🔌 Connection for " + number + " dropped, reconnecting shortly...")
			}
		}
	}

	if err := b.sessions.Pair(ctx, m.FromID, m.FromUsername, number, onUpdate); err != nil {
		edit("❌ Could not start pairing: " + err.Error())
		return err
	}
	return nil
}

// canUseSession gates the connection-dependent command: operators always,
// premium members while unexpired, and anyone whose own session is live.
func (b *Bot) canUseSession(actor int64) bool {
	now := time.Now()
	if b.roster.IsOwner(actor) || b.roster.IsPremium(actor, now) {
		return true
	}
	return b.sessions.IsConnected(actor)
}

func (b *Bot) handleSend(ctx context.Context, m *kit.Message, args string) error {
	ok, err := b.requireMembership(ctx, m)
	if err != nil || !ok {
		return err
	}
	fields := strings.SplitN(args, " ", 2)
	if len(fields) < 2 || fields[0] == "" {
		return b.replyText(ctx, m, "Usage: /send <number> <text>")
	}
	recipient, err := normalizeNumber(fields[0])
	if err != nil {
		return b.replyText(ctx, m, "❌ "+err.Error())
	}
	text := strings.TrimSpace(fields[1])
	if text == "" {
		return b.replyText(ctx, m, "Usage: /send <number> <text>")
	}

	if !b.canUseSession(m.FromID) {
		return b.replyText(ctx, m, "⛔ This command needs premium access or a connected session of your own.")
	}

	tier := b.roster.TierOf(m.FromID, time.Now())
	if remaining := b.cooldown.CheckAndReserve(m.FromID, tier); remaining > 0 {
		return b.replyText(ctx, m, fmt.Sprintf("⏳ Cooldown active, wait %d seconds.", remaining))
	}

	conn, ok := b.sessions.Conn(m.FromID)
	if !ok {
		return b.replyText(ctx, m, "🔌 No connected session. Pair a number with /reqpair first.")
	}

	if b.pendingImage != "" {
		return b.deliverWithPhotoStatus(ctx, m, conn, recipient, text)
	}

	ref, err := b.adapter.SendText(ctx, kit.ChatTarget{ChatID: m.ChatID}, "📨 Delivering to "+recipient+"...", nil)
	if err != nil {
		return err
	}
	b.reporter.Update(ctx, ref, 50, "📨 Delivering to "+recipient+"...\n"+progress.Bar(50), nil)

	if err := conn.Send(ctx, recipient, text); err != nil {
		_ = b.adapter.EditText(ctx, ref, "❌ Delivery to "+recipient+" failed: "+err.Error(), nil)
		b.reporter.Forget(ref)
		return err
	}
	b.reporter.Update(ctx, ref, 100, "✅ Delivered to "+recipient+".", nil)
	b.reporter.Forget(ref)
	return nil
}

// deliverWithPhotoStatus runs the same delivery as handleSend but reports
// progress through a photo status message: caption edits for the stages and
// a media swap to the done image on success.
func (b *Bot) deliverWithPhotoStatus(ctx context.Context, m *kit.Message, conn session.Conn, recipient, text string) error {
	caption := "📨 Delivering to " + recipient + "..."
	ref, err := b.adapter.SendPhoto(ctx, kit.ChatTarget{ChatID: m.ChatID}, kit.Photo{URL: b.pendingImage}, caption, nil)
	if err != nil {
		return err
	}
	b.reporter.UpdateCaption(ctx, ref, 50, caption+"\n"+progress.Bar(50), nil)

	if err := conn.Send(ctx, recipient, text); err != nil {
		_ = b.adapter.EditCaption(ctx, ref, "❌ Delivery to "+recipient+" failed: "+err.Error(), nil)
		b.reporter.Forget(ref)
		return err
	}

	done := kit.Photo{URL: b.doneImage}
	if done.URL == "" {
		done.URL = b.pendingImage
	}
	if err := b.adapter.EditMedia(ctx, ref, done, "✅ Delivered to "+recipient+".", nil); err != nil && !errors.Is(err, kit.ErrNotModified) {
		b.log.Warn().Err(err).Msg("status media edit failed")
	}
	b.reporter.Forget(ref)
	return nil
}
