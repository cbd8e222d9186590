package handler

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/order-ledger/internal/core/domain"
	"github.com/rl1809/order-ledger/internal/core/service"
)

// Mock OrderLifecycle: records the last call and returns err when set
type mockLifecycle struct {
	mu        sync.Mutex
	err       error
	lastActor domain.Actor
	lastCall  string
	lastArgs  []any
}

func (m *mockLifecycle) record(call string, actor domain.Actor, args ...any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastCall = call
	m.lastActor = actor
	m.lastArgs = args
	return m.err
}

func (m *mockLifecycle) last() (string, domain.Actor, []any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastCall, m.lastActor, m.lastArgs
}

func sampleOrder(id string, status domain.OrderStatus) domain.Order {
	return domain.Order{
		ID:         id,
		ProductID:  "prod-1",
		VendorID:   "vendor-1",
		BusinessID: "biz-1",
		CreatedBy:  "mgr-1",
		Quantity:   10,
		TotalValue: decimal.NewFromInt(250),
		Status:     status,
		Version:    2,
	}
}

func sampleResult(id string, status domain.OrderStatus, action domain.AuditAction) *service.TransitionResult {
	return &service.TransitionResult{
		Order: sampleOrder(id, status),
		AuditEntry: domain.AuditEntryView{
			ID:       "entry-1",
			OrderID:  id,
			Action:   action,
			DataHash: "0xabc",
			Status:   domain.EntryStatusVerified,
		},
	}
}

func (m *mockLifecycle) CreateOrder(ctx context.Context, actor domain.Actor, in service.CreateOrderInput) (*domain.Order, error) {
	if err := m.record("CreateOrder", actor, in); err != nil {
		return nil, err
	}
	o := sampleOrder("order-new", domain.OrderStatusDraft)
	o.TotalValue = in.UnitPrice.Mul(decimal.NewFromInt(int64(in.Quantity)))
	return &o, nil
}

func (m *mockLifecycle) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	if err := m.record("GetOrder", domain.Actor{}, orderID); err != nil {
		return nil, err
	}
	o := sampleOrder(orderID, domain.OrderStatusApproved)
	return &o, nil
}

func (m *mockLifecycle) Approve(ctx context.Context, actor domain.Actor, orderID string) (*service.TransitionResult, error) {
	if err := m.record("Approve", actor, orderID); err != nil {
		return nil, err
	}
	return sampleResult(orderID, domain.OrderStatusApproved, domain.AuditOrderApproved), nil
}

func (m *mockLifecycle) Reject(ctx context.Context, actor domain.Actor, orderID, reason string) (*service.TransitionResult, error) {
	if err := m.record("Reject", actor, orderID, reason); err != nil {
		return nil, err
	}
	return sampleResult(orderID, domain.OrderStatusRejected, domain.AuditOrderRejected), nil
}

func (m *mockLifecycle) VendorAction(ctx context.Context, actor domain.Actor, orderID string, action domain.VendorAction, reason string, newDate *time.Time) (*service.TransitionResult, error) {
	if err := m.record("VendorAction", actor, orderID, action, reason, newDate); err != nil {
		return nil, err
	}
	return sampleResult(orderID, domain.OrderStatusConfirmed, domain.AuditVendorAccepted), nil
}

func (m *mockLifecycle) Dispatch(ctx context.Context, actor domain.Actor, orderID string) (*service.TransitionResult, error) {
	if err := m.record("Dispatch", actor, orderID); err != nil {
		return nil, err
	}
	return sampleResult(orderID, domain.OrderStatusDispatched, domain.AuditDispatched), nil
}

func (m *mockLifecycle) UpdateDeliveryStatus(ctx context.Context, actor domain.Actor, orderID string, status domain.OrderStatus) (*service.TransitionResult, error) {
	if err := m.record("UpdateDeliveryStatus", actor, orderID, status); err != nil {
		return nil, err
	}
	return sampleResult(orderID, status, domain.AuditInTransit), nil
}

func (m *mockLifecycle) VerifyChain(ctx context.Context, orderID string) (domain.ChainVerification, error) {
	if err := m.record("VerifyChain", domain.Actor{}, orderID); err != nil {
		return domain.ChainVerification{}, err
	}
	return domain.ChainVerification{OrderID: orderID, Valid: true, EntriesChecked: 2}, nil
}

func (m *mockLifecycle) AuditTrail(ctx context.Context, orderID string) ([]domain.AuditEntryView, error) {
	if err := m.record("AuditTrail", domain.Actor{}, orderID); err != nil {
		return nil, err
	}
	return []domain.AuditEntryView{{ID: "entry-1", OrderID: orderID, Action: domain.AuditOrderApproved}}, nil
}

func (m *mockLifecycle) VerifyEntry(ctx context.Context, entryID string) (domain.EntryVerification, error) {
	if err := m.record("VerifyEntry", domain.Actor{}, entryID); err != nil {
		return domain.EntryVerification{}, err
	}
	return domain.EntryVerification{EntryID: entryID, Status: domain.EntryStatusVerified, HashValid: true, LinkValid: true}, nil
}

// Mock VendorScoring
type mockScoring struct {
	mu       sync.Mutex
	err      error
	lastKind domain.ScoreEvent
}

func (m *mockScoring) GetVendor(ctx context.Context, vendorID string) (*domain.Vendor, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Vendor{ID: vendorID, ReliabilityScore: 95, TotalOrders: 1}, nil
}

func (m *mockScoring) ApplyScoreEvent(ctx context.Context, vendorID string, kind domain.ScoreEvent) (*service.ScoreResult, error) {
	m.mu.Lock()
	m.lastKind = kind
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return &service.ScoreResult{Vendor: domain.Vendor{ID: vendorID, ReliabilityScore: 90}, PreviousScore: 100}, nil
}

func (m *mockScoring) RecalculateReliabilityScore(ctx context.Context, vendorID, trigger string) (*service.ScoreResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &service.ScoreResult{Vendor: domain.Vendor{ID: vendorID, ReliabilityScore: 95}, PreviousScore: 100}, nil
}
