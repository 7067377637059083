/**
 * @description
 * This file connects an overlay session to its creator's realtime channel. It
 * subscribes to `stream-{handle}` over Redis pub/sub, decodes the event
 * envelope, and feeds donation alerts into the scheduler's queue in arrival
 * order. Goal progress events bypass the queue entirely; they update the
 * progress bar immediately rather than competing with alerts for screen time.
 *
 * @dependencies
 * - context, encoding/json, log: Standard Go libraries.
 * - github.com/redis/go-redis/v9: Redis pub/sub subscription.
 */

package overlay

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
	"github.com/tipstream/ledger-service/internal/domain"
	"github.com/tipstream/ledger-service/pkg/pubsub"
)

// GoalProgressFunc receives goal-progress events as they arrive. Optional.
type GoalProgressFunc func(event domain.GoalProgressEvent)

// Listener subscribes to a creator's channel and enqueues incoming alerts.
type Listener struct {
	client     redis.UniversalClient
	scheduler  *Scheduler
	onProgress GoalProgressFunc
}

// NewListener creates a listener feeding the given scheduler.
func NewListener(client redis.UniversalClient, scheduler *Scheduler, onProgress GoalProgressFunc) *Listener {
	return &Listener{client: client, scheduler: scheduler, onProgress: onProgress}
}

// Listen consumes the creator's channel until ctx is cancelled. Malformed
// messages are logged and dropped; delivery is at-most-once so there is
// nothing to retry.
func (l *Listener) Listen(ctx context.Context, creatorHandle string) error {
	channel := pubsub.Channel(creatorHandle)
	sub := l.client.Subscribe(ctx, channel)
	defer sub.Close()

	// Fail fast if the subscription could not be established.
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			l.handle(channel, []byte(msg.Payload))
		}
	}
}

func (l *Listener) handle(channel string, payload []byte) {
	var envelope pubsub.Envelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		log.Printf("level=warn component=overlay msg=\"malformed envelope dropped\" channel=%s err=%v", channel, err)
		return
	}

	switch envelope.Event {
	case domain.EventDonation:
		var alert domain.DonationAlertEvent
		if err := json.Unmarshal(envelope.Data, &alert); err != nil {
			log.Printf("level=warn component=overlay msg=\"malformed donation alert dropped\" channel=%s err=%v", channel, err)
			return
		}
		l.scheduler.Enqueue(alert)
	case domain.EventGoalProgress:
		if l.onProgress == nil {
			return
		}
		var event domain.GoalProgressEvent
		if err := json.Unmarshal(envelope.Data, &event); err != nil {
			log.Printf("level=warn component=overlay msg=\"malformed goal event dropped\" channel=%s err=%v", channel, err)
			return
		}
		l.onProgress(event)
	default:
		log.Printf("level=info component=overlay msg=\"unhandled event ignored\" channel=%s event=%s", channel, envelope.Event)
	}
}
