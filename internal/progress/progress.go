// Package progress throttles edits to long-running status messages so the
// chat platform's edit-rate tolerance is never exceeded.
package progress

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	kit "github.com/JojoKaizeb/GenXuzoProject/internal/transport"
)

const DefaultMinInterval = 600 * time.Millisecond

// Editor is the adapter slice the reporter needs.
type Editor interface {
	EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error
	EditCaption(ctx context.Context, ref kit.MessageRef, caption string, opt *kit.SendOptions) error
}

type Reporter struct {
	log         zerolog.Logger
	editor      Editor
	minInterval time.Duration

	mu   sync.Mutex
	last map[kit.MessageRef]time.Time

	now func() time.Time
}

func NewReporter(editor Editor, minInterval time.Duration, log zerolog.Logger) *Reporter {
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	return &Reporter{
		log:         log,
		editor:      editor,
		minInterval: minInterval,
		last:        make(map[kit.MessageRef]time.Time),
		now:         time.Now,
	}
}

// allow reserves an update slot for ref. Completion always passes: a 100%
// update must never be swallowed by throttling.
func (r *Reporter) allow(ref kit.MessageRef, percent int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if percent < 100 {
		if last, ok := r.last[ref]; ok && now.Sub(last) < r.minInterval {
			return false
		}
	}
	r.last[ref] = now
	return true
}

// Update edits ref's text in place. It reports whether the edit was applied
// (throttled updates return false without any transport call).
func (r *Reporter) Update(ctx context.Context, ref kit.MessageRef, percent int, text string, opt *kit.SendOptions) bool {
	if !r.allow(ref, percent) {
		return false
	}
	return r.settle(r.editor.EditText(ctx, ref, text, opt))
}

// UpdateCaption is Update for photo-message captions.
func (r *Reporter) UpdateCaption(ctx context.Context, ref kit.MessageRef, percent int, caption string, opt *kit.SendOptions) bool {
	if !r.allow(ref, percent) {
		return false
	}
	return r.settle(r.editor.EditCaption(ctx, ref, caption, opt))
}

func (r *Reporter) settle(err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, kit.ErrNotModified):
		// The platform already shows this content; an idempotent no-op.
		return true
	case errors.Is(err, kit.ErrEditTargetGone):
		return false
	default:
		r.log.Error().Err(err).Msg("progress update failed")
		return false
	}
}

// Forget releases the throttle entry for a finished message.
func (r *Reporter) Forget(ref kit.MessageRef) {
	r.mu.Lock()
	delete(r.last, ref)
	r.mu.Unlock()
}

// Bar renders a ten-segment progress bar like "[███░░░░░░░] 30%".
func Bar(percent int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := percent / 10
	return fmt.Sprintf("[%s%s] %d%%", strings.Repeat("█", filled), strings.Repeat("░", 10-filled), percent)
}
