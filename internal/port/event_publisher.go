package port

import (
	"context"

	"github.com/rl1809/order-ledger/internal/core/domain"
)

// EventPublisher broadcasts to external observers. It is fire-and-forget: implementations
// absorb their own failures, so callers have nothing to handle.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event domain.OrderEvent)
	PublishScoreChanged(ctx context.Context, event domain.ScoreChangedEvent)
}
