package domain

import (
	"sort"
	"time"
)

const (
	MinReliabilityScore  = 0.0
	MaxReliabilityScore  = 100.0
	BaseReliabilityScore = 100.0

	completionBonus = 5.0
	delayPenalty    = 10.0
	rejectPenalty   = 20.0
)

type PerformanceMetrics struct {
	OnTimeDeliveryRate float64
}

// Vendor holds only the fields the scorer owns. Catalog data lives elsewhere.
type Vendor struct {
	ID                 string
	ReliabilityScore   float64
	TotalOrders        int
	PerformanceMetrics PerformanceMetrics
	UpdatedAt          time.Time
}

// ScoreEvent is a discrete signal applied through the delta path.
type ScoreEvent string

const (
	ScoreEventOnTime    ScoreEvent = "ON_TIME"
	ScoreEventDelayed   ScoreEvent = "DELAYED"
	ScoreEventCancelled ScoreEvent = "CANCELLED"
	ScoreEventCompleted ScoreEvent = "COMPLETED"
)

var scoreDeltas = map[ScoreEvent]float64{
	ScoreEventOnTime:    5,
	ScoreEventDelayed:   -10,
	ScoreEventCancelled: -20,
	ScoreEventCompleted: 3,
}

// ScoreDelta returns the fixed adjustment for kind; ok is false for unknown kinds.
func ScoreDelta(kind ScoreEvent) (float64, bool) {
	d, ok := scoreDeltas[kind]
	return d, ok
}

// CountsTowardTotal reports whether the event increments a vendor's order count.
func (k ScoreEvent) CountsTowardTotal() bool {
	return k == ScoreEventOnTime || k == ScoreEventCompleted
}

// ClampScore bounds a score to [0, 100].
func ClampScore(v float64) float64 {
	if v < MinReliabilityScore {
		return MinReliabilityScore
	}
	if v > MaxReliabilityScore {
		return MaxReliabilityScore
	}
	return v
}

// ApplyDelta returns the vendor after a single delta event. Unknown kinds return ok=false and v unchanged.
func ApplyDelta(v Vendor, kind ScoreEvent) (Vendor, bool) {
	d, ok := ScoreDelta(kind)
	if !ok {
		return v, false
	}
	v.ReliabilityScore = ClampScore(v.ReliabilityScore + d)
	if kind.CountsTowardTotal() {
		v.TotalOrders++
	}
	return v, true
}

// Reliability is the result of recomputing a vendor's score from its terminal orders.
type Reliability struct {
	Score              float64
	OnTimeDeliveryRate float64
	TotalOrders        int
	DeliveredCount     int
	OnTimeCount        int
	RejectedCount      int
}

// ComputeReliability recomputes a score from scratch. Orders that are neither DELIVERED nor
// VENDOR_REJECTED are ignored. The result depends only on the set of orders, not their order.
func ComputeReliability(orders []Order) Reliability {
	sorted := make([]Order, len(orders))
	copy(sorted, orders)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var r Reliability
	total := BaseReliabilityScore
	for _, o := range sorted {
		switch o.Status {
		case OrderStatusDelivered:
			r.DeliveredCount++
			total += completionBonus
			if o.DeliveredLate() {
				total -= delayPenalty
			} else {
				r.OnTimeCount++
			}
		case OrderStatusVendorRejected:
			r.RejectedCount++
			total -= rejectPenalty
		}
	}

	r.Score = ClampScore(total)
	if r.DeliveredCount > 0 {
		r.OnTimeDeliveryRate = float64(r.OnTimeCount) / float64(r.DeliveredCount) * 100
	}
	r.TotalOrders = r.DeliveredCount + r.RejectedCount
	return r
}
