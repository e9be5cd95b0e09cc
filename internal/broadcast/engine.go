// Package broadcast fans one message out to every known chat in rate-safe
// batches, reporting progress through an editable status message.
package broadcast

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/JojoKaizeb/GenXuzoProject/internal/progress"
	kit "github.com/JojoKaizeb/GenXuzoProject/internal/transport"
)

const (
	DefaultBatchSize  = 20
	DefaultBatchDelay = 100 * time.Millisecond

	// maxURLButtons caps the inline keyboard attached to a broadcast.
	maxURLButtons = 4

	// maxFailures bounds the per-run failure detail kept in memory; the
	// aggregate counters always cover the full run.
	maxFailures = 100
)

// Sender is the adapter slice the engine delivers through.
type Sender interface {
	SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error)
	SendPhoto(ctx context.Context, to kit.ChatTarget, photo kit.Photo, caption string, opt *kit.SendOptions) (kit.MessageRef, error)
}

// Content is one broadcast payload: text, or a photo with caption, plus an
// optional row of link buttons.
type Content struct {
	Text    string
	Photo   *kit.Photo
	Buttons []kit.Button
}

func (c Content) validate() error {
	if c.Text == "" && c.Photo == nil {
		return fmt.Errorf("broadcast: empty content")
	}
	if len(c.Buttons) > maxURLButtons {
		return fmt.Errorf("broadcast: at most %d buttons allowed, got %d", maxURLButtons, len(c.Buttons))
	}
	for _, b := range c.Buttons {
		if b.URL == "" {
			return fmt.Errorf("broadcast: button %q has no URL", b.Text)
		}
	}
	return nil
}

type Failure struct {
	ChatID int64
	Err    string
}

type Result struct {
	Total     int
	Succeeded int
	Failed    int
	Failures  []Failure
}

type Engine struct {
	log        zerolog.Logger
	sender     Sender
	reporter   *progress.Reporter
	limiter    *rate.Limiter
	batchSize  int
	batchDelay time.Duration
}

func NewEngine(sender Sender, reporter *progress.Reporter, batchSize int, batchDelay time.Duration, ratePerSec float64, log zerolog.Logger) *Engine {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if batchDelay <= 0 {
		batchDelay = DefaultBatchDelay
	}
	var lim *rate.Limiter
	if ratePerSec > 0 {
		lim = rate.NewLimiter(rate.Limit(ratePerSec), batchSize)
	}
	return &Engine{
		log:        log,
		sender:     sender,
		reporter:   reporter,
		limiter:    lim,
		batchSize:  batchSize,
		batchDelay: batchDelay,
	}
}

// Run delivers content to every recipient. Recipients are processed in
// batches: sends within a batch run concurrently, batches run one after
// another with a short pause between them. statusRef, when non-zero, is the
// message edited with delivery progress.
func (e *Engine) Run(ctx context.Context, recipients []int64, content Content, statusRef kit.MessageRef) (Result, error) {
	if err := content.validate(); err != nil {
		return Result{}, err
	}
	res := Result{Total: len(recipients)}
	if res.Total == 0 {
		return res, nil
	}

	var mu sync.Mutex
	lastBucket := -1
	done := 0

	for start := 0; start < len(recipients); start += e.batchSize {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		end := start + e.batchSize
		if end > len(recipients) {
			end = len(recipients)
		}

		var wg sync.WaitGroup
		for _, chatID := range recipients[start:end] {
			if e.limiter != nil {
				if err := e.limiter.Wait(ctx); err != nil {
					return res, err
				}
			}
			wg.Add(1)
			go func(chatID int64) {
				defer wg.Done()
				err := e.deliver(ctx, chatID, content)
				mu.Lock()
				defer mu.Unlock()
				done++
				if err != nil {
					res.Failed++
					if len(res.Failures) < maxFailures {
						res.Failures = append(res.Failures, Failure{ChatID: chatID, Err: err.Error()})
					}
				} else {
					res.Succeeded++
				}
			}(chatID)
		}
		wg.Wait()

		mu.Lock()
		percent := done * 100 / res.Total
		mu.Unlock()
		bucket := percent / 20
		if bucket > lastBucket || percent == 100 {
			lastBucket = bucket
			e.report(ctx, statusRef, percent, res)
		}

		if end < len(recipients) {
			select {
			case <-ctx.Done():
				return res, ctx.Err()
			case <-time.After(e.batchDelay):
			}
		}
	}

	e.log.Info().
		Int("total", res.Total).
		Int("succeeded", res.Succeeded).
		Int("failed", res.Failed).
		Msg("broadcast finished")
	return res, nil
}

func (e *Engine) deliver(ctx context.Context, chatID int64, content Content) error {
	to := kit.ChatTarget{ChatID: chatID}
	opt := &kit.SendOptions{}
	if len(content.Buttons) > 0 {
		opt.Buttons = [][]kit.Button{content.Buttons}
	}
	var err error
	if content.Photo != nil {
		_, err = e.sender.SendPhoto(ctx, to, *content.Photo, content.Text, opt)
	} else {
		_, err = e.sender.SendText(ctx, to, content.Text, opt)
	}
	return err
}

func (e *Engine) report(ctx context.Context, ref kit.MessageRef, percent int, res Result) {
	if e.reporter == nil || ref == (kit.MessageRef{}) {
		return
	}
	text := fmt.Sprintf(
		"📣 Broadcasting...\n\n%s\n\n✅ Delivered: %d\n❌ Failed: %d\n👥 Total: %d",
		progress.Bar(percent), res.Succeeded, res.Failed, res.Total,
	)
	e.reporter.Update(ctx, ref, percent, text, nil)
}
