/**
 * @description
 * This file implements the overlay's alert queue: a single-consumer FIFO plus
 * a cooperative scheduler that presents one alert at a time to the broadcast
 * display.
 *
 * Timing contract:
 * - a fixed gap (1s by default) separates successive alerts;
 * - an alert without media is shown for a fixed window (10s by default);
 * - an alert carrying media is shown for its media duration plus a padding
 *   (2s by default);
 * - per-creator presentation gates (minimum amount, alerts enabled) are
 *   evaluated at presentation time, not enqueue time, so configuration
 *   changes apply to alerts already sitting in the queue.
 *
 * The queue is unbounded and producers never block on its depth. Ordering is
 * client arrival order, not settlement order; out-of-order network delivery
 * can reorder presentation relative to settlement, which is an accepted
 * relaxed guarantee. Cancelling the run context discards the queue and any
 * pending timers.
 */

package overlay

import (
	"context"
	"sync"
	"time"

	"github.com/tipstream/ledger-service/internal/domain"
)

// Display is the surface the scheduler drives. Show and Clear are called from
// the scheduler goroutine only.
type Display interface {
	Show(alert domain.DonationAlertEvent)
	Clear()
}

// SettingsFunc returns the creator's current presentation gates. Called once
// per alert, immediately before presenting it.
type SettingsFunc func() domain.AlertSettings

// Options configures the scheduler's timing. Zero values fall back to the
// defaults documented above.
type Options struct {
	DisplayDuration time.Duration
	MediaPadding    time.Duration
	Gap             time.Duration
}

const (
	defaultDisplayDuration = 10 * time.Second
	defaultMediaPadding    = 2 * time.Second
	defaultGap             = 1 * time.Second
)

// Scheduler owns the alert queue and presents its items one at a time.
type Scheduler struct {
	display  Display
	settings SettingsFunc
	opts     Options

	mu    sync.Mutex
	queue []domain.DonationAlertEvent
	wake  chan struct{}
}

// NewScheduler creates a scheduler for one overlay session.
func NewScheduler(display Display, settings SettingsFunc, opts Options) *Scheduler {
	if opts.DisplayDuration <= 0 {
		opts.DisplayDuration = defaultDisplayDuration
	}
	if opts.MediaPadding <= 0 {
		opts.MediaPadding = defaultMediaPadding
	}
	if opts.Gap <= 0 {
		opts.Gap = defaultGap
	}
	return &Scheduler{
		display:  display,
		settings: settings,
		opts:     opts,
		wake:     make(chan struct{}, 1),
	}
}

// Enqueue appends an alert in arrival order. Never blocks.
func (s *Scheduler) Enqueue(alert domain.DonationAlertEvent) {
	s.mu.Lock()
	s.queue = append(s.queue, alert)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Len reports the number of queued, not-yet-presented alerts.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *Scheduler) dequeue() (domain.DonationAlertEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return domain.DonationAlertEvent{}, false
	}
	alert := s.queue[0]
	s.queue = s.queue[1:]
	return alert, true
}

// Run drives the presentation loop until ctx is cancelled. It is the single
// consumer of the queue; run it in exactly one goroutine per session.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		alert, ok := s.dequeue()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-s.wake:
				continue
			}
		}

		settings := s.settings()
		if !settings.AlertsEnabled || alert.Amount < settings.MinAlertAmount {
			continue
		}

		s.display.Show(alert)
		if !sleep(ctx, s.presentationWindow(alert)) {
			return
		}
		s.display.Clear()

		if !sleep(ctx, s.opts.Gap) {
			return
		}
	}
}

// presentationWindow returns how long an alert stays on screen.
func (s *Scheduler) presentationWindow(alert domain.DonationAlertEvent) time.Duration {
	if alert.MediaURL != "" && alert.MediaDurationSeconds > 0 {
		return time.Duration(alert.MediaDurationSeconds)*time.Second + s.opts.MediaPadding
	}
	return s.opts.DisplayDuration
}

// sleep waits for d, returning false if ctx was cancelled first.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
