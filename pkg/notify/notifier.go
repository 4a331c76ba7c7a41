// Package notify delivers order events off the request path. Events are
// queued on a single actor that hands each one to every configured sink in
// order; a failing sink is logged and never blocks the others.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/example/localdelivery/pkg/models"
	"go.uber.org/zap"
)

const deliverTimeout = 5 * time.Second

// Sink is one destination for order events.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, event models.OrderEvent) error
}

// Messages
type deliverEvent struct {
	Event models.OrderEvent
}

type flush struct{}

type flushed struct{}

// EventActor fans each event out to its sinks.
type EventActor struct {
	sinks  []Sink
	logger *zap.Logger
}

func (a *EventActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *deliverEvent:
		for _, sink := range a.sinks {
			a.deliver(sink, msg.Event)
		}

	case *flush:
		ctx.Respond(&flushed{})

	case *actor.Started:
		a.logger.Info("Event actor started", zap.Int("sinks", len(a.sinks)))

	case *actor.Stopping:
		a.logger.Info("Event actor stopping")

	case *actor.Stopped:
		a.logger.Info("Event actor stopped")
	}
}

func (a *EventActor) deliver(sink Sink, event models.OrderEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
	defer cancel()

	if err := sink.Deliver(ctx, event); err != nil {
		a.logger.Warn("Failed to deliver order event",
			zap.String("sink", sink.Name()),
			zap.String("event_type", string(event.Type)),
			zap.String("order_id", event.OrderID),
			zap.Error(err))
	}
}

// Notifier implements service.EventPublisher on top of an actor system.
type Notifier struct {
	system *actor.ActorSystem
	pid    *actor.PID
	logger *zap.Logger
}

func Start(logger *zap.Logger, sinks ...Sink) (*Notifier, error) {
	system := actor.NewActorSystem()

	props := actor.PropsFromProducer(func() actor.Actor {
		return &EventActor{sinks: sinks, logger: logger.Named("event-actor")}
	})
	pid, err := system.Root.SpawnNamed(props, "event-actor")
	if err != nil {
		return nil, fmt.Errorf("failed to spawn event actor: %w", err)
	}

	return &Notifier{system: system, pid: pid, logger: logger}, nil
}

// Publish enqueues the event and returns immediately.
func (n *Notifier) Publish(event models.OrderEvent) {
	n.system.Root.Send(n.pid, &deliverEvent{Event: event})
}

// Flush waits until every event published before the call was delivered.
func (n *Notifier) Flush(timeout time.Duration) error {
	result, err := n.system.Root.RequestFuture(n.pid, &flush{}, timeout).Result()
	if err != nil {
		return fmt.Errorf("failed to flush events: %w", err)
	}
	if _, ok := result.(*flushed); !ok {
		return fmt.Errorf("unexpected flush reply %T", result)
	}
	return nil
}

// Stop drains queued events and stops the actor.
func (n *Notifier) Stop() {
	if err := n.system.Root.PoisonFuture(n.pid).Wait(); err != nil {
		n.logger.Warn("Event actor did not stop cleanly", zap.Error(err))
	}
	n.system.Shutdown()
}
