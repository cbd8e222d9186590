package domain

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusDraft           OrderStatus = "DRAFT"
	OrderStatusPendingApproval OrderStatus = "PENDING_APPROVAL"
	OrderStatusApproved        OrderStatus = "APPROVED"
	OrderStatusRejected        OrderStatus = "REJECTED"
	OrderStatusAccepted        OrderStatus = "ACCEPTED"
	OrderStatusConfirmed       OrderStatus = "CONFIRMED"
	OrderStatusDispatched      OrderStatus = "DISPATCHED"
	OrderStatusInTransit       OrderStatus = "IN_TRANSIT"
	OrderStatusDelivered       OrderStatus = "DELIVERED"
	OrderStatusVendorRejected  OrderStatus = "VENDOR_REJECTED"
	OrderStatusDelayRequested  OrderStatus = "DELAY_REQUESTED"
)

// AllStatuses lists every status. Tests use it to check the transition table covers them all.
var AllStatuses = []OrderStatus{
	OrderStatusDraft,
	OrderStatusPendingApproval,
	OrderStatusApproved,
	OrderStatusRejected,
	OrderStatusAccepted,
	OrderStatusConfirmed,
	OrderStatusDispatched,
	OrderStatusInTransit,
	OrderStatusDelivered,
	OrderStatusVendorRejected,
	OrderStatusDelayRequested,
}

func (s OrderStatus) Valid() bool {
	for _, st := range AllStatuses {
		if st == s {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition may leave s.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusDelivered, OrderStatusRejected, OrderStatusVendorRejected:
		return true
	case OrderStatusDraft, OrderStatusPendingApproval, OrderStatusApproved, OrderStatusAccepted,
		OrderStatusConfirmed, OrderStatusDispatched, OrderStatusInTransit, OrderStatusDelayRequested:
		return false
	}
	return false
}

// VendorAction is the vendor's disposition on an approved order.
type VendorAction string

const (
	VendorActionAccept       VendorAction = "ACCEPT"
	VendorActionReject       VendorAction = "REJECT"
	VendorActionRequestDelay VendorAction = "REQUEST_DELAY"
)

func (a VendorAction) Valid() bool {
	switch a {
	case VendorActionAccept, VendorActionReject, VendorActionRequestDelay:
		return true
	}
	return false
}

type Order struct {
	ID                  string
	ProductID           string
	VendorID            string
	VendorCatalogItemID *string
	BusinessID          string
	CreatedBy           string
	ApprovedBy          *string

	Quantity   int
	TotalValue decimal.Decimal

	Status       OrderStatus
	VendorAction *VendorAction

	CreatedAt            time.Time
	UpdatedAt            time.Time
	ConfirmedAt          *time.Time
	DispatchedAt         *time.Time
	InTransitAt          *time.Time
	DeliveredAt          *time.Time
	ExpectedDeliveryDate *time.Time
	ActualDeliveryDate   *time.Time

	RejectionReason *string
	DelayReason     *string
	NewExpectedDate *time.Time

	Version int // optimistic locking
}

// Limits of the quantity INT and total_value DECIMAL(18,4) columns.
const (
	MaxQuantity    = math.MaxInt32
	MoneyPrecision = 4
)

var maxMoney = decimal.New(1, 14)

// CheckMoney rejects amounts the total_value column would round or refuse.
func CheckMoney(field string, d decimal.Decimal) error {
	if !d.Equal(d.Truncate(MoneyPrecision)) {
		return &ValidationError{Field: field, Reason: "must have at most 4 decimal places"}
	}
	if d.Abs().GreaterThanOrEqual(maxMoney) {
		return &ValidationError{Field: field, Reason: "must be less than 10^14"}
	}
	return nil
}

// Validate checks the invariants that hold for every persisted order.
func (o Order) Validate() error {
	if o.ID == "" {
		return &ValidationError{Field: "id", Reason: "is required"}
	}
	if o.ProductID == "" {
		return &ValidationError{Field: "productId", Reason: "is required"}
	}
	if o.VendorID == "" {
		return &ValidationError{Field: "vendorId", Reason: "is required"}
	}
	if o.BusinessID == "" {
		return &ValidationError{Field: "businessId", Reason: "is required"}
	}
	if o.Quantity < 1 {
		return &ValidationError{Field: "quantity", Reason: "must be at least 1"}
	}
	if o.Quantity > MaxQuantity {
		return &ValidationError{Field: "quantity", Reason: "must not exceed 2147483647"}
	}
	if o.TotalValue.IsNegative() {
		return &ValidationError{Field: "totalValue", Reason: "must not be negative"}
	}
	if err := CheckMoney("totalValue", o.TotalValue); err != nil {
		return err
	}
	if !o.Status.Valid() {
		return &ValidationError{Field: "status", Reason: "unknown status " + string(o.Status)}
	}
	return nil
}

// DeliveryTime returns the recorded delivery timestamp, preferring the actual delivery date.
func (o Order) DeliveryTime() *time.Time {
	if o.ActualDeliveryDate != nil {
		return o.ActualDeliveryDate
	}
	return o.DeliveredAt
}

// DeliveredLate is true only when lateness can be proven: both dates recorded and delivery after expectation.
func (o Order) DeliveredLate() bool {
	delivered := o.DeliveryTime()
	if delivered == nil || o.ExpectedDeliveryDate == nil {
		return false
	}
	return delivered.After(*o.ExpectedDeliveryDate)
}

// Clone returns a deep copy so callers can mutate the result without touching the original.
func (o Order) Clone() Order {
	c := o
	c.VendorCatalogItemID = cloneString(o.VendorCatalogItemID)
	c.ApprovedBy = cloneString(o.ApprovedBy)
	c.RejectionReason = cloneString(o.RejectionReason)
	c.DelayReason = cloneString(o.DelayReason)
	if o.VendorAction != nil {
		a := *o.VendorAction
		c.VendorAction = &a
	}
	c.ConfirmedAt = cloneTime(o.ConfirmedAt)
	c.DispatchedAt = cloneTime(o.DispatchedAt)
	c.InTransitAt = cloneTime(o.InTransitAt)
	c.DeliveredAt = cloneTime(o.DeliveredAt)
	c.ExpectedDeliveryDate = cloneTime(o.ExpectedDeliveryDate)
	c.ActualDeliveryDate = cloneTime(o.ActualDeliveryDate)
	c.NewExpectedDate = cloneTime(o.NewExpectedDate)
	return c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
