package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rl1809/order-ledger/internal/core/domain"
	"github.com/rl1809/order-ledger/internal/port"
	"github.com/rl1809/order-ledger/pkg/logger"
)

var (
	ErrOrderNotFound          = errors.New("order not found")
	ErrConcurrentModification = errors.New("order was modified concurrently")
	ErrActorNotAllowed        = errors.New("actor is not allowed to perform this operation")
)

type CreateOrderInput struct {
	ProductID            string
	VendorID             string
	VendorCatalogItemID  *string
	Quantity             int
	UnitPrice            decimal.Decimal
	ExpectedDeliveryDate *time.Time
	Submit               bool // PENDING_APPROVAL instead of DRAFT
}

// TransitionResult is returned for every committed transition, together with the audit entry
// that was written in the same commit.
type TransitionResult struct {
	Order      domain.Order
	AuditEntry domain.AuditEntryView
}

type OrderService struct {
	orders    port.OrderRepository
	ledger    *AuditLedger
	scorer    *ScoringService
	locker    port.Locker
	stock     port.StockRepository
	publisher port.EventPublisher
	logger    *logger.Logger
	now       func() time.Time
}

func NewOrderService(
	orders port.OrderRepository,
	ledger *AuditLedger,
	scorer *ScoringService,
	locker port.Locker,
	stock port.StockRepository,
	publisher port.EventPublisher,
	log *logger.Logger,
) *OrderService {
	return &OrderService{
		orders:    orders,
		ledger:    ledger,
		scorer:    scorer,
		locker:    locker,
		stock:     stock,
		publisher: publisher,
		logger:    log.WithComponent("order_service"),
		now:       time.Now,
	}
}

func orderLockKey(orderID string) string {
	return "lock:order:" + orderID
}

// CreateOrder records a new replenishment request. Creation is not a lifecycle transition
// and writes no audit entry.
func (s *OrderService) CreateOrder(ctx context.Context, actor domain.Actor, in CreateOrderInput) (*domain.Order, error) {
	if actor.Role != domain.RoleManager || actor.UserID == "" || actor.BusinessID == "" {
		return nil, fmt.Errorf("create order: %w", ErrActorNotAllowed)
	}
	if in.UnitPrice.IsNegative() {
		return nil, &domain.ValidationError{Field: "unitPrice", Reason: "must not be negative"}
	}
	if err := domain.CheckMoney("unitPrice", in.UnitPrice); err != nil {
		return nil, err
	}

	now := s.now().UTC().Truncate(time.Millisecond)
	status := domain.OrderStatusDraft
	if in.Submit {
		status = domain.OrderStatusPendingApproval
	}

	order := domain.Order{
		ID:                  uuid.NewString(),
		ProductID:           strings.TrimSpace(in.ProductID),
		VendorID:            strings.TrimSpace(in.VendorID),
		VendorCatalogItemID: in.VendorCatalogItemID,
		BusinessID:          actor.BusinessID,
		CreatedBy:           actor.UserID,
		Quantity:            in.Quantity,
		TotalValue:          in.UnitPrice.Mul(decimal.NewFromInt(int64(in.Quantity))),
		Status:              status,
		CreatedAt:           now,
		UpdatedAt:           now,
		Version:             1,
	}
	if in.ExpectedDeliveryDate != nil {
		d := in.ExpectedDeliveryDate.UTC().Truncate(time.Millisecond)
		order.ExpectedDeliveryDate = &d
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}

	if err := s.orders.CreateOrder(ctx, order); err != nil {
		s.logger.Error("Failed to create order", "error", err)
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.logger.Info("Order created",
		"order_id", order.ID,
		"vendor_id", order.VendorID,
		"status", order.Status,
		"total_value", order.TotalValue.String())
	return &order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if errors.Is(err, port.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	return order, nil
}

func (s *OrderService) Approve(ctx context.Context, actor domain.Actor, orderID string) (*TransitionResult, error) {
	return s.transition(ctx, orderID, domain.Command{Action: domain.ActionApprove, Actor: actor})
}

func (s *OrderService) Reject(ctx context.Context, actor domain.Actor, orderID, reason string) (*TransitionResult, error) {
	return s.transition(ctx, orderID, domain.Command{Action: domain.ActionReject, Actor: actor, Reason: reason})
}

// VendorAction applies the vendor's disposition on an approved order.
func (s *OrderService) VendorAction(ctx context.Context, actor domain.Actor, orderID string, action domain.VendorAction, reason string, newDate *time.Time) (*TransitionResult, error) {
	a, err := domain.ActionForVendorAction(action)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, orderID, domain.Command{
		Action:          a,
		Actor:           actor,
		Reason:          reason,
		NewExpectedDate: newDate,
	})
}

func (s *OrderService) Dispatch(ctx context.Context, actor domain.Actor, orderID string) (*TransitionResult, error) {
	return s.transition(ctx, orderID, domain.Command{Action: domain.ActionDispatch, Actor: actor})
}

// UpdateDeliveryStatus advances a dispatched order to IN_TRANSIT and then DELIVERED.
func (s *OrderService) UpdateDeliveryStatus(ctx context.Context, actor domain.Actor, orderID string, status domain.OrderStatus) (*TransitionResult, error) {
	a, err := domain.ActionForDeliveryStatus(status)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, orderID, domain.Command{Action: a, Actor: actor})
}

// VerifyChain re-derives every audit entry of the order.
func (s *OrderService) VerifyChain(ctx context.Context, orderID string) (domain.ChainVerification, error) {
	if _, err := s.GetOrder(ctx, orderID); err != nil {
		return domain.ChainVerification{}, err
	}
	return s.ledger.VerifyOrderChain(ctx, orderID)
}

func (s *OrderService) AuditTrail(ctx context.Context, orderID string) ([]domain.AuditEntryView, error) {
	if _, err := s.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}
	return s.ledger.ListEntries(ctx, orderID)
}

func (s *OrderService) VerifyEntry(ctx context.Context, entryID string) (domain.EntryVerification, error) {
	return s.ledger.VerifySingleEntry(ctx, entryID)
}

func (s *OrderService) transition(ctx context.Context, orderID string, cmd domain.Command) (*TransitionResult, error) {
	order, entry, err := s.commitTransition(ctx, orderID, cmd)
	if err != nil {
		return nil, err
	}

	// The transition is committed; nothing below may fail it.
	s.afterCommit(context.WithoutCancel(ctx), order, entry, cmd.Actor)

	return &TransitionResult{Order: order, AuditEntry: entry.View()}, nil
}

// commitTransition holds the order lock across read, guard, and the combined order+audit write,
// so the (status, chain head) pair a transition observes cannot change underneath it.
func (s *OrderService) commitTransition(ctx context.Context, orderID string, cmd domain.Command) (domain.Order, domain.AuditLogEntry, error) {
	release, err := s.locker.Acquire(ctx, orderLockKey(orderID))
	if err != nil {
		return domain.Order{}, domain.AuditLogEntry{}, fmt.Errorf("lock order %s: %w", orderID, err)
	}
	defer release()

	current, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, domain.AuditLogEntry{}, err
	}

	next, auditAction, err := domain.Transition(*current, cmd, s.now())
	if err != nil {
		s.logger.Warn("Transition refused",
			"order_id", orderID,
			"action", cmd.Action,
			"status", current.Status,
			"actor_id", cmd.Actor.UserID,
			"role", cmd.Actor.Role,
			"error", err)
		return domain.Order{}, domain.AuditLogEntry{}, err
	}
	next.Version = current.Version + 1

	entry, err := s.ledger.Append(ctx, next, auditAction, cmd.Actor.UserID, next.BusinessID,
		func(ctx context.Context, e domain.AuditLogEntry) error {
			return s.orders.SaveTransition(ctx, next, current.Version, e)
		})
	if errors.Is(err, port.ErrVersionConflict) {
		s.logger.Warn("Order changed during transition", "order_id", orderID, "version", current.Version)
		return domain.Order{}, domain.AuditLogEntry{}, fmt.Errorf("order %s: %w", orderID, ErrConcurrentModification)
	}
	if err != nil {
		s.logger.Error("Failed to commit transition", "order_id", orderID, "action", cmd.Action, "error", err)
		return domain.Order{}, domain.AuditLogEntry{}, err
	}

	s.logger.Info("Order transitioned",
		"order_id", orderID,
		"from", current.Status,
		"to", next.Status,
		"actor_id", cmd.Actor.UserID,
		"audit_entry_id", entry.ID,
		"data_hash", entry.DataHash)
	return next, entry, nil
}

// afterCommit runs side effects on external collaborators. Each is isolated: a failure is
// logged and never touches the committed order or its audit entry.
func (s *OrderService) afterCommit(ctx context.Context, order domain.Order, entry domain.AuditLogEntry, actor domain.Actor) {
	if order.Status == domain.OrderStatusDelivered {
		if err := s.stock.IncrementStock(ctx, order.ProductID, order.Quantity); err != nil {
			s.logger.Error("Failed to increment stock for delivered order",
				"order_id", order.ID,
				"product_id", order.ProductID,
				"quantity", order.Quantity,
				"error", err)
		}
	}

	if order.Status == domain.OrderStatusDelivered || order.Status == domain.OrderStatusVendorRejected {
		s.scorer.RecalculateOrDefer(ctx, order.VendorID, string(entry.Action))
	}

	s.publisher.PublishOrderEvent(ctx, domain.OrderEvent{
		EventID:      uuid.NewString(),
		OrderID:      order.ID,
		VendorID:     order.VendorID,
		BusinessID:   order.BusinessID,
		Status:       order.Status,
		Action:       entry.Action,
		ActorID:      actor.UserID,
		AuditEntryID: entry.ID,
		Timestamp:    entry.Timestamp,
	})
}
