package domain

import (
	"math/rand"
	"testing"
	"time"
)

func TestClampScore(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-15, 0},
		{0, 0},
		{42.5, 42.5},
		{100, 100},
		{103, 100},
	}
	for _, tt := range tests {
		if got := ClampScore(tt.in); got != tt.want {
			t.Errorf("ClampScore(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestApplyDelta(t *testing.T) {
	v := Vendor{ID: "v", ReliabilityScore: 5}

	got, ok := ApplyDelta(v, ScoreEventDelayed)
	if !ok || got.ReliabilityScore != 0 {
		t.Errorf("expected clamp to 0, got %v (ok=%v)", got.ReliabilityScore, ok)
	}
	if got.TotalOrders != 0 {
		t.Errorf("DELAYED must not count toward total, got %d", got.TotalOrders)
	}

	v.ReliabilityScore = 98
	got, _ = ApplyDelta(v, ScoreEventOnTime)
	if got.ReliabilityScore != 100 || got.TotalOrders != 1 {
		t.Errorf("expected 100 with one order, got %+v", got)
	}

	got, ok = ApplyDelta(v, ScoreEvent("UNKNOWN"))
	if ok || got != v {
		t.Errorf("unknown event must be a no-op, got %+v (ok=%v)", got, ok)
	}
}

func deliveredOrder(id string, expected, actual time.Time) Order {
	o := newOrder(OrderStatusDelivered)
	o.ID = id
	o.ExpectedDeliveryDate = &expected
	o.ActualDeliveryDate = &actual
	return o
}

func TestComputeReliability(t *testing.T) {
	late := deliveredOrder("late", now, now.Add(24*time.Hour))
	onTime := deliveredOrder("on-time", now, now.Add(-time.Hour))
	rejected := newOrder(OrderStatusVendorRejected)
	rejected.ID = "rejected"
	unknownDate := newOrder(OrderStatusDelivered)
	unknownDate.ID = "no-date"
	ignored := newOrder(OrderStatusInTransit)
	ignored.ID = "ignored"

	r := ComputeReliability([]Order{late, onTime, rejected, unknownDate, ignored})

	// 100 + 5*3 - 10 - 20
	if r.Score != 85 {
		t.Errorf("expected 85, got %v", r.Score)
	}
	if r.DeliveredCount != 3 || r.OnTimeCount != 2 || r.RejectedCount != 1 || r.TotalOrders != 4 {
		t.Errorf("unexpected counts: %+v", r)
	}
	want := float64(2) / float64(3) * 100
	if r.OnTimeDeliveryRate != want {
		t.Errorf("expected rate %v, got %v", want, r.OnTimeDeliveryRate)
	}
}

func TestComputeReliability_LateOrderNetsMinusFive(t *testing.T) {
	base := ComputeReliability(nil)
	with := ComputeReliability([]Order{deliveredOrder("late", now, now.Add(24*time.Hour))})

	if with.Score-base.Score != -5 {
		t.Errorf("expected net -5, got %v -> %v", base.Score, with.Score)
	}
	if base.OnTimeDeliveryRate != 0 || base.TotalOrders != 0 {
		t.Errorf("empty history must score base with no rate, got %+v", base)
	}
}

func TestComputeReliability_ClampsFinalTotal(t *testing.T) {
	var orders []Order
	for i := 0; i < 10; i++ {
		o := newOrder(OrderStatusVendorRejected)
		o.ID = string(rune('a' + i))
		orders = append(orders, o)
	}
	if r := ComputeReliability(orders); r.Score != 0 {
		t.Errorf("expected floor 0, got %v", r.Score)
	}

	orders = orders[:0]
	for i := 0; i < 10; i++ {
		orders = append(orders, deliveredOrder(string(rune('a'+i)), now, now))
	}
	if r := ComputeReliability(orders); r.Score != 100 {
		t.Errorf("expected cap 100, got %v", r.Score)
	}
}

func TestComputeReliability_OrderIndependent(t *testing.T) {
	var orders []Order
	for i := 0; i < 12; i++ {
		switch i % 3 {
		case 0:
			orders = append(orders, deliveredOrder(string(rune('a'+i)), now, now.Add(time.Hour)))
		case 1:
			orders = append(orders, deliveredOrder(string(rune('a'+i)), now, now.Add(-time.Hour)))
		default:
			o := newOrder(OrderStatusVendorRejected)
			o.ID = string(rune('a' + i))
			orders = append(orders, o)
		}
	}

	want := ComputeReliability(orders)
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 10; i++ {
		rng.Shuffle(len(orders), func(a, b int) { orders[a], orders[b] = orders[b], orders[a] })
		if got := ComputeReliability(orders); got != want {
			t.Fatalf("result depends on input order: %+v vs %+v", got, want)
		}
	}
}
