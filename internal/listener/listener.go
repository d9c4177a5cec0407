// Package listener owns the perpetual listen cycle: it feeds recognized
// utterances to the dispatcher, restarts the speech engine when a session
// ends on its own, and runs the idle watchdog.
package listener

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/SoyDuilio/quevendi/internal/gateway"
	"github.com/SoyDuilio/quevendi/internal/speech"
	"github.com/SoyDuilio/quevendi/internal/stt"
)

// DefaultIdleTimeout matches the terminal's 3 minute inactivity nudge.
const DefaultIdleTimeout = 180 * time.Second

const restartDelay = 250 * time.Millisecond

// Commander receives recognized utterances in order.
type Commander interface {
	Offer(text string)
}

// CartView is the read-only cart access the watchdog is allowed.
type CartView interface {
	Len() int
}

// StatsSource provides the watchdog's backend snapshot.
type StatsSource interface {
	TodayStats(ctx context.Context) (gateway.Stats, error)
}

// Speaker voices the watchdog nudges through the shared queue.
type Speaker interface {
	Say(text string)
	Play(t speech.Tone)
}

// Events notify the presentation layer. Nil fields are skipped.
type Events struct {
	// Armed reports the listen loop going live or dead.
	Armed func(bool)
	// PromptResume asks the UI for a tap-to-resume affordance.
	PromptResume func()
}

// Controller drives one Recognizer. On mobile platforms spontaneous session
// ends are not auto-restarted; the UI is prompted for a manual re-arm instead.
type Controller struct {
	rec      stt.Recognizer
	commands Commander
	speaker  Speaker
	stats    StatsSource
	cart     CartView
	ev       Events

	idleTimeout time.Duration
	mobile      bool

	mu     sync.Mutex
	armed  bool
	fatal  bool
	resume chan struct{}
}

func New(rec stt.Recognizer, commands Commander, speaker Speaker, stats StatsSource, cart CartView, mobile bool, idleTimeout time.Duration, ev Events) *Controller {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &Controller{
		rec:         rec,
		commands:    commands,
		speaker:     speaker,
		stats:       stats,
		cart:        cart,
		ev:          ev,
		idleTimeout: idleTimeout,
		mobile:      mobile,
		resume:      make(chan struct{}, 1),
	}
}

// Armed reports whether the engine session is live.
func (c *Controller) Armed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.armed
}

// Resume re-arms the loop after a permission failure, a manual pause, or a
// mobile session end.
func (c *Controller) Resume() {
	c.mu.Lock()
	c.fatal = false
	c.mu.Unlock()
	select {
	case c.resume <- struct{}{}:
	default:
	}
}

// Pause stops the engine session until Resume.
func (c *Controller) Pause() {
	c.mu.Lock()
	c.fatal = true
	c.mu.Unlock()
	if err := c.rec.Stop(); err != nil {
		log.Printf("listener: stop: %v", err)
	}
	c.setArmed(false)
}

func (c *Controller) setArmed(on bool) {
	c.mu.Lock()
	changed := c.armed != on
	c.armed = on
	c.mu.Unlock()
	if changed && c.ev.Armed != nil {
		c.ev.Armed(on)
	}
}

func (c *Controller) promptResume() {
	if c.ev.PromptResume != nil {
		c.ev.PromptResume()
	}
}

// Run arms the engine and processes its events until ctx is cancelled.
// stt.ErrUnsupported at startup is fatal and returned; everything else is
// handled in the loop.
//
// The end-of-session signal stays closed until the next Start, so it is
// latched into a local channel that goes nil once consumed; the select case
// must block, not refire, while no live session exists.
func (c *Controller) Run(ctx context.Context) error {
	var ended <-chan struct{}
	if err := c.rec.Start(); err != nil {
		if errors.Is(err, stt.ErrUnsupported) {
			return fmt.Errorf("listener: %w", err)
		}
		log.Printf("listener: initial start failed: %v", err)
		c.promptResume()
	} else {
		c.setArmed(true)
		ended = c.rec.Ended()
	}

	idle := time.NewTimer(c.idleTimeout)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = c.rec.Stop()
			c.setArmed(false)
			return ctx.Err()

		case text := <-c.rec.Utterances():
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(c.idleTimeout)
			c.commands.Offer(text)

		case err := <-c.rec.Errors():
			if errors.Is(err, stt.ErrPermissionDenied) {
				// terminal until the user re-arms
				log.Printf("listener: %v", err)
				c.mu.Lock()
				c.fatal = true
				c.mu.Unlock()
				_ = c.rec.Stop()
				c.setArmed(false)
				c.promptResume()
				continue
			}
			// transient: the cycle survives, the session end restarts it
			log.Printf("listener: transient: %v", err)

		case <-ended:
			ended = nil
			c.setArmed(false)
			c.mu.Lock()
			fatal := c.fatal
			c.mu.Unlock()
			if fatal {
				continue
			}
			if c.mobile {
				// no auto-restart on mobile; battery and permission UX
				c.promptResume()
				continue
			}
			time.Sleep(restartDelay)
			if err := c.rec.Start(); err != nil {
				log.Printf("listener: restart failed: %v", err)
				c.promptResume()
				continue
			}
			c.setArmed(true)
			ended = c.rec.Ended()

		case <-c.resume:
			if err := c.rec.Start(); err != nil {
				log.Printf("listener: resume failed: %v", err)
				c.promptResume()
				continue
			}
			c.setArmed(true)
			ended = c.rec.Ended()

		case <-idle.C:
			c.checkIdle(ctx)
			idle.Reset(c.idleTimeout)
		}
	}
}

// checkIdle is the watchdog side channel. It reads the cart and the backend
// snapshot; it never mutates either.
func (c *Controller) checkIdle(ctx context.Context) {
	if c.cart != nil && c.cart.Len() > 0 {
		c.speaker.Say("Hay un pedido sin terminar")
		c.speaker.Play(speech.ToneAlert)
	}

	if c.stats == nil {
		return
	}
	statsCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	stats, err := c.stats.TodayStats(statsCtx)
	if err != nil {
		log.Printf("listener: stats check failed: %v", err)
		return
	}
	if stats.SalesCount < 5 {
		log.Printf("listener: slow day, %d sales so far", stats.SalesCount)
	}
	oos := stats.OutOfStock()
	if len(oos) == 0 {
		return
	}
	names := make([]string, 0, len(oos))
	for _, a := range oos {
		names = append(names, a.Name)
	}
	c.speaker.Say(fmt.Sprintf("Productos agotados: %s", strings.Join(names, ", ")))
	c.speaker.Play(speech.ToneAlert)
}
