package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/order-ledger/internal/core/domain"
	"github.com/rl1809/order-ledger/internal/port"
	"github.com/rl1809/order-ledger/pkg/logger"
)

var ErrVendorNotFound = errors.New("vendor not found")

// ScoreResult describes one persisted score change.
type ScoreResult struct {
	Vendor        domain.Vendor
	PreviousScore float64
	Reliability   *domain.Reliability // nil for delta updates
}

type ScoringService struct {
	vendors   port.VendorRepository
	orders    port.OrderRepository
	locker    port.Locker
	queue     port.RescoreQueue
	publisher port.EventPublisher
	logger    *logger.Logger
	now       func() time.Time
}

func NewScoringService(
	vendors port.VendorRepository,
	orders port.OrderRepository,
	locker port.Locker,
	queue port.RescoreQueue,
	publisher port.EventPublisher,
	log *logger.Logger,
) *ScoringService {
	return &ScoringService{
		vendors:   vendors,
		orders:    orders,
		locker:    locker,
		queue:     queue,
		publisher: publisher,
		logger:    log.WithComponent("vendor_scorer"),
		now:       time.Now,
	}
}

func vendorLockKey(vendorID string) string {
	return "lock:vendor:" + vendorID
}

func (s *ScoringService) GetVendor(ctx context.Context, vendorID string) (*domain.Vendor, error) {
	v, err := s.vendors.GetVendor(ctx, vendorID)
	if errors.Is(err, port.ErrNotFound) {
		return nil, ErrVendorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load vendor: %w", err)
	}
	return v, nil
}

// ApplyScoreEvent adjusts a vendor's score by the fixed delta for kind. Callers must invoke it
// once per discrete event: unlike recalculation it is not idempotent.
func (s *ScoringService) ApplyScoreEvent(ctx context.Context, vendorID string, kind domain.ScoreEvent) (*ScoreResult, error) {
	release, err := s.locker.Acquire(ctx, vendorLockKey(vendorID))
	if err != nil {
		return nil, fmt.Errorf("lock vendor %s: %w", vendorID, err)
	}
	defer release()

	current, err := s.GetVendor(ctx, vendorID)
	if err != nil {
		return nil, err
	}

	updated, ok := domain.ApplyDelta(*current, kind)
	if !ok {
		s.logger.Warn("Ignoring unknown score event", "vendor_id", vendorID, "event", kind)
		return &ScoreResult{Vendor: *current, PreviousScore: current.ReliabilityScore}, nil
	}
	updated.UpdatedAt = s.now().UTC()

	if err := s.vendors.SaveVendorScore(ctx, updated); err != nil {
		return nil, fmt.Errorf("save vendor score: %w", err)
	}

	s.logger.Info("Vendor score adjusted",
		"vendor_id", vendorID,
		"event", kind,
		"previous_score", current.ReliabilityScore,
		"new_score", updated.ReliabilityScore)

	s.publishChange(ctx, vendorID, current.ReliabilityScore, updated.ReliabilityScore, string(kind))
	return &ScoreResult{Vendor: updated, PreviousScore: current.ReliabilityScore}, nil
}

// RecalculateReliabilityScore recomputes a vendor's score from its full terminal history and
// replaces the stored values. Running it twice without new orders yields the same result.
func (s *ScoringService) RecalculateReliabilityScore(ctx context.Context, vendorID, trigger string) (*ScoreResult, error) {
	release, err := s.locker.Acquire(ctx, vendorLockKey(vendorID))
	if err != nil {
		return nil, fmt.Errorf("lock vendor %s: %w", vendorID, err)
	}
	defer release()

	previous := domain.BaseReliabilityScore
	current, err := s.vendors.GetVendor(ctx, vendorID)
	switch {
	case err == nil:
		previous = current.ReliabilityScore
	case errors.Is(err, port.ErrNotFound):
		// first score for a vendor the catalog has not synced yet
	default:
		return nil, fmt.Errorf("load vendor: %w", err)
	}

	orders, err := s.orders.ListVendorOrders(ctx, vendorID, domain.OrderStatusDelivered, domain.OrderStatusVendorRejected)
	if err != nil {
		return nil, fmt.Errorf("load vendor orders: %w", err)
	}

	r := domain.ComputeReliability(orders)
	updated := domain.Vendor{
		ID:                 vendorID,
		ReliabilityScore:   r.Score,
		TotalOrders:        r.TotalOrders,
		PerformanceMetrics: domain.PerformanceMetrics{OnTimeDeliveryRate: r.OnTimeDeliveryRate},
		UpdatedAt:          s.now().UTC(),
	}
	if err := s.vendors.SaveVendorScore(ctx, updated); err != nil {
		return nil, fmt.Errorf("save vendor score: %w", err)
	}

	s.logger.Info("Vendor score recalculated",
		"vendor_id", vendorID,
		"trigger", trigger,
		"previous_score", previous,
		"new_score", r.Score,
		"on_time_rate", r.OnTimeDeliveryRate,
		"delivered", r.DeliveredCount,
		"rejected", r.RejectedCount)

	s.publishChange(ctx, vendorID, previous, r.Score, trigger)
	return &ScoreResult{Vendor: updated, PreviousScore: previous, Reliability: &r}, nil
}

// RecalculateOrDefer recomputes the score and, on failure, queues the vendor for a later retry.
// It never returns an error: scoring must not undo the transition that triggered it.
func (s *ScoringService) RecalculateOrDefer(ctx context.Context, vendorID, trigger string) {
	if _, err := s.RecalculateReliabilityScore(ctx, vendorID, trigger); err != nil {
		s.logger.Error("Vendor score recalculation failed, deferring",
			"vendor_id", vendorID,
			"trigger", trigger,
			"error", err)
		if qerr := s.queue.Defer(ctx, vendorID); qerr != nil {
			s.logger.Error("Failed to defer vendor rescoring", "vendor_id", vendorID, "error", qerr)
		}
	}
}

// ReconcileDeferred drains up to limit deferred vendors and recomputes each. Vendors that fail
// again are re-queued. It returns how many were recomputed successfully.
func (s *ScoringService) ReconcileDeferred(ctx context.Context, limit int) (int, error) {
	vendorIDs, err := s.queue.Pop(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("pop deferred vendors: %w", err)
	}

	done := 0
	for _, id := range vendorIDs {
		if _, err := s.RecalculateReliabilityScore(ctx, id, "reconcile"); err != nil {
			s.logger.Error("Deferred rescoring failed", "vendor_id", id, "error", err)
			if qerr := s.queue.Defer(ctx, id); qerr != nil {
				s.logger.Error("Failed to re-defer vendor rescoring", "vendor_id", id, "error", qerr)
			}
			continue
		}
		done++
	}

	if len(vendorIDs) > 0 {
		s.logger.Info("Deferred rescoring pass finished", "popped", len(vendorIDs), "recomputed", done)
	}
	return done, nil
}

func (s *ScoringService) publishChange(ctx context.Context, vendorID string, previous, next float64, trigger string) {
	s.publisher.PublishScoreChanged(ctx, domain.ScoreChangedEvent{
		EventID:       uuid.NewString(),
		VendorID:      vendorID,
		PreviousScore: previous,
		NewScore:      next,
		Delta:         next - previous,
		Trigger:       trigger,
		Timestamp:     s.now().UTC(),
	})
}
