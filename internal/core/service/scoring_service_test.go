package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rl1809/order-ledger/internal/core/domain"
)

func TestApplyScoreEvent_Clamps(t *testing.T) {
	tests := []struct {
		name       string
		start      float64
		event      domain.ScoreEvent
		wantScore  float64
		wantOrders int
	}{
		{"delay floors at zero", 5, domain.ScoreEventDelayed, 0, 0},
		{"on time caps at hundred", 98, domain.ScoreEventOnTime, 100, 1},
		{"cancel", 50, domain.ScoreEventCancelled, 30, 0},
		{"complete", 50, domain.ScoreEventCompleted, 53, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.store.putVendor(domain.Vendor{ID: "vendor-1", ReliabilityScore: tt.start})

			res, err := f.scorer.ApplyScoreEvent(context.Background(), "vendor-1", tt.event)
			if err != nil {
				t.Fatalf("expected success, got error: %v", err)
			}
			if res.Vendor.ReliabilityScore != tt.wantScore {
				t.Errorf("expected score %v, got %v", tt.wantScore, res.Vendor.ReliabilityScore)
			}
			if res.PreviousScore != tt.start {
				t.Errorf("expected previous %v, got %v", tt.start, res.PreviousScore)
			}

			stored, _ := f.store.vendor("vendor-1")
			if stored.ReliabilityScore != tt.wantScore || stored.TotalOrders != tt.wantOrders {
				t.Errorf("stored vendor mismatch: %+v", stored)
			}
		})
	}
}

func TestApplyScoreEvent_UnknownIsNoop(t *testing.T) {
	f := newFixture()
	f.store.putVendor(domain.Vendor{ID: "vendor-1", ReliabilityScore: 70, TotalOrders: 3})

	res, err := f.scorer.ApplyScoreEvent(context.Background(), "vendor-1", domain.ScoreEvent("LOST_IN_SPACE"))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if res.Vendor.ReliabilityScore != 70 || res.Vendor.TotalOrders != 3 {
		t.Errorf("expected vendor unchanged, got %+v", res.Vendor)
	}
	if _, scoreEvents := f.publisher.counts(); scoreEvents != 0 {
		t.Errorf("expected no score events, got %d", scoreEvents)
	}
}

func TestApplyScoreEvent_VendorNotFound(t *testing.T) {
	f := newFixture()

	_, err := f.scorer.ApplyScoreEvent(context.Background(), "ghost", domain.ScoreEventOnTime)
	if !errors.Is(err, ErrVendorNotFound) {
		t.Errorf("expected ErrVendorNotFound, got: %v", err)
	}
}

func TestRecalculate_Deterministic(t *testing.T) {
	f := newFixture()
	f.store.putVendor(domain.Vendor{ID: "vendor-1", ReliabilityScore: 12, TotalOrders: 40})

	late := testNow.Add(-time.Hour)
	early := testNow.Add(time.Hour)
	for i, tc := range []struct {
		status   domain.OrderStatus
		expected *time.Time
	}{
		{domain.OrderStatusDelivered, &early},
		{domain.OrderStatusDelivered, &late},
		{domain.OrderStatusDelivered, nil},
		{domain.OrderStatusVendorRejected, nil},
		{domain.OrderStatusConfirmed, nil},
	} {
		o := f.seedOrder(string(rune('a'+i)), tc.status)
		o.ExpectedDeliveryDate = tc.expected
		if tc.status == domain.OrderStatusDelivered {
			d := testNow
			o.ActualDeliveryDate = &d
		}
		f.store.putOrder(o)
	}

	first, err := f.scorer.RecalculateReliabilityScore(context.Background(), "vendor-1", "manual")
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	second, err := f.scorer.RecalculateReliabilityScore(context.Background(), "vendor-1", "manual")
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}

	// 100 + 3*5 - 10 - 20
	if first.Vendor.ReliabilityScore != 85 {
		t.Errorf("expected 85, got %v", first.Vendor.ReliabilityScore)
	}
	if first.PreviousScore != 12 {
		t.Errorf("expected previous 12, got %v", first.PreviousScore)
	}
	if second.Vendor.ReliabilityScore != first.Vendor.ReliabilityScore ||
		second.Vendor.TotalOrders != first.Vendor.TotalOrders ||
		second.Vendor.PerformanceMetrics != first.Vendor.PerformanceMetrics {
		t.Errorf("recompute not idempotent: %+v vs %+v", first.Vendor, second.Vendor)
	}
	if first.Vendor.TotalOrders != 4 {
		t.Errorf("expected total 4 replacing stored 40, got %d", first.Vendor.TotalOrders)
	}
}

func TestRecalculate_FailureDefers(t *testing.T) {
	f := newFixture()
	f.store.listErr = errors.New("connection reset")

	f.scorer.RecalculateOrDefer(context.Background(), "vendor-1", "test")
	if !f.queue.has("vendor-1") {
		t.Fatal("expected vendor to be deferred")
	}

	done, err := f.scorer.ReconcileDeferred(context.Background(), 10)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if done != 0 {
		t.Errorf("expected 0 recomputed while store fails, got %d", done)
	}
	if !f.queue.has("vendor-1") {
		t.Error("expected vendor to be re-deferred")
	}
}
