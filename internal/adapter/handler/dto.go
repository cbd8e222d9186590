package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/order-ledger/internal/core/domain"
	"github.com/rl1809/order-ledger/internal/core/service"
)

type CreateOrderRequest struct {
	ProductID            string          `json:"productId" validate:"required,max=64"`
	VendorID             string          `json:"vendorId" validate:"required,max=64"`
	VendorCatalogItemID  *string         `json:"vendorCatalogItemId" validate:"omitempty,max=64"`
	Quantity             int             `json:"quantity" validate:"required,min=1,max=2147483647"`
	UnitPrice            decimal.Decimal `json:"unitPrice"`
	ExpectedDeliveryDate *time.Time      `json:"expectedDeliveryDate"`
	Submit               bool            `json:"submit"`
}

type RejectRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type VendorActionRequest struct {
	Action          string     `json:"action" validate:"required,oneof=ACCEPT REJECT REQUEST_DELAY"`
	Reason          string     `json:"reason" validate:"required_unless=Action ACCEPT"`
	NewExpectedDate *time.Time `json:"newExpectedDate" validate:"required_if=Action REQUEST_DELAY"`
}

type DeliveryStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=IN_TRANSIT DELIVERED"`
}

type ScoreEventRequest struct {
	Kind string `json:"kind" validate:"required"`
}

type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type OrderResponse struct {
	ID                   string               `json:"id"`
	ProductID            string               `json:"productId"`
	VendorID             string               `json:"vendorId"`
	VendorCatalogItemID  *string              `json:"vendorCatalogItemId"`
	BusinessID           string               `json:"businessId"`
	CreatedBy            string               `json:"createdBy"`
	ApprovedBy           *string              `json:"approvedBy"`
	Quantity             int                  `json:"quantity"`
	TotalValue           decimal.Decimal      `json:"totalValue"`
	Status               domain.OrderStatus   `json:"status"`
	VendorAction         *domain.VendorAction `json:"vendorAction"`
	ExpectedDeliveryDate *time.Time           `json:"expectedDeliveryDate"`
	ActualDeliveryDate   *time.Time           `json:"actualDeliveryDate"`
	ConfirmedAt          *time.Time           `json:"confirmedAt"`
	DispatchedAt         *time.Time           `json:"dispatchedAt"`
	InTransitAt          *time.Time           `json:"inTransitAt"`
	DeliveredAt          *time.Time           `json:"deliveredAt"`
	RejectionReason      *string              `json:"rejectionReason"`
	DelayReason          *string              `json:"delayReason"`
	NewExpectedDate      *time.Time           `json:"newExpectedDate"`
	CreatedAt            time.Time            `json:"createdAt"`
	UpdatedAt            time.Time            `json:"updatedAt"`
	Version              int                  `json:"version"`
}

func toOrderResponse(o domain.Order) OrderResponse {
	return OrderResponse{
		ID:                   o.ID,
		ProductID:            o.ProductID,
		VendorID:             o.VendorID,
		VendorCatalogItemID:  o.VendorCatalogItemID,
		BusinessID:           o.BusinessID,
		CreatedBy:            o.CreatedBy,
		ApprovedBy:           o.ApprovedBy,
		Quantity:             o.Quantity,
		TotalValue:           o.TotalValue,
		Status:               o.Status,
		VendorAction:         o.VendorAction,
		ExpectedDeliveryDate: o.ExpectedDeliveryDate,
		ActualDeliveryDate:   o.ActualDeliveryDate,
		ConfirmedAt:          o.ConfirmedAt,
		DispatchedAt:         o.DispatchedAt,
		InTransitAt:          o.InTransitAt,
		DeliveredAt:          o.DeliveredAt,
		RejectionReason:      o.RejectionReason,
		DelayReason:          o.DelayReason,
		NewExpectedDate:      o.NewExpectedDate,
		CreatedAt:            o.CreatedAt,
		UpdatedAt:            o.UpdatedAt,
		Version:              o.Version,
	}
}

type TransitionResponse struct {
	Order      OrderResponse         `json:"order"`
	AuditEntry domain.AuditEntryView `json:"auditEntry"`
}

func toTransitionResponse(r *service.TransitionResult) TransitionResponse {
	return TransitionResponse{Order: toOrderResponse(r.Order), AuditEntry: r.AuditEntry}
}

type VendorResponse struct {
	ID                 string    `json:"id"`
	ReliabilityScore   float64   `json:"reliabilityScore"`
	TotalOrders        int       `json:"totalOrders"`
	OnTimeDeliveryRate float64   `json:"onTimeDeliveryRate"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

func toVendorResponse(v domain.Vendor) VendorResponse {
	return VendorResponse{
		ID:                 v.ID,
		ReliabilityScore:   v.ReliabilityScore,
		TotalOrders:        v.TotalOrders,
		OnTimeDeliveryRate: v.PerformanceMetrics.OnTimeDeliveryRate,
		UpdatedAt:          v.UpdatedAt,
	}
}

type ScoreResponse struct {
	Vendor        VendorResponse `json:"vendor"`
	PreviousScore float64        `json:"previousScore"`
}

func toScoreResponse(r *service.ScoreResult) ScoreResponse {
	return ScoreResponse{Vendor: toVendorResponse(r.Vendor), PreviousScore: r.PreviousScore}
}
