package event

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rl1809/order-ledger/internal/core/domain"
	"github.com/rl1809/order-ledger/pkg/logger"
)

const (
	TopicOrderTransitioned  = "order.transitioned"
	TopicVendorScoreChanged = "vendor.score_changed"
)

// Sink delivers one encoded event to an external observer.
type Sink interface {
	Name() string
	Send(ctx context.Context, topic string, payload []byte) error
}

// Publisher fans events out to every sink in the background. Delivery failures are logged
// and never reach the caller.
type Publisher struct {
	sinks   []Sink
	timeout time.Duration
	logger  *logger.Logger
	wg      sync.WaitGroup
}

func NewPublisher(timeout time.Duration, log *logger.Logger, sinks ...Sink) *Publisher {
	return &Publisher{
		sinks:   sinks,
		timeout: timeout,
		logger:  log.WithComponent("event_publisher"),
	}
}

func (p *Publisher) PublishOrderEvent(ctx context.Context, e domain.OrderEvent) {
	p.dispatch(ctx, TopicOrderTransitioned, e.EventID, e)
}

func (p *Publisher) PublishScoreChanged(ctx context.Context, e domain.ScoreChangedEvent) {
	p.dispatch(ctx, TopicVendorScoreChanged, e.EventID, e)
}

// Close waits for in-flight deliveries.
func (p *Publisher) Close() {
	p.wg.Wait()
}

func (p *Publisher) dispatch(ctx context.Context, topic, eventID string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("Failed to encode event", "topic", topic, "event_id", eventID, "error", err)
		return
	}

	// deliveries outlive the request that produced them
	base := context.WithoutCancel(ctx)
	for _, sink := range p.sinks {
		p.wg.Add(1)
		go func(s Sink) {
			defer p.wg.Done()

			sendCtx, cancel := context.WithTimeout(base, p.timeout)
			defer cancel()

			if err := s.Send(sendCtx, topic, payload); err != nil {
				p.logger.Warn("Event delivery failed",
					"sink", s.Name(),
					"topic", topic,
					"event_id", eventID,
					"error", err)
				return
			}
			p.logger.Debug("Event delivered", "sink", s.Name(), "topic", topic, "event_id", eventID)
		}(sink)
	}
}
