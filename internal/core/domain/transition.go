package domain

import (
	"fmt"
	"strings"
	"time"
)

// Action is a lifecycle command that may move an order between statuses.
type Action string

const (
	ActionApprove       Action = "approve"
	ActionReject        Action = "reject"
	ActionVendorAccept  Action = "vendor_accept"
	ActionVendorReject  Action = "vendor_reject"
	ActionRequestDelay  Action = "request_delay"
	ActionDispatch      Action = "dispatch"
	ActionMarkInTransit Action = "mark_in_transit"
	ActionMarkDelivered Action = "mark_delivered"
)

// AllActions lists every lifecycle action.
var AllActions = []Action{
	ActionApprove,
	ActionReject,
	ActionVendorAccept,
	ActionVendorReject,
	ActionRequestDelay,
	ActionDispatch,
	ActionMarkInTransit,
	ActionMarkDelivered,
}

// AuditAction is the label stored on the audit entry a transition produces.
type AuditAction string

const (
	AuditOrderApproved  AuditAction = "ORDER_APPROVED"
	AuditOrderRejected  AuditAction = "ORDER_REJECTED"
	AuditVendorAccepted AuditAction = "VENDOR_ACCEPTED"
	AuditVendorRejected AuditAction = "VENDOR_REJECTED"
	AuditDelayRequested AuditAction = "DELAY_REQUESTED"
	AuditDispatched     AuditAction = "ORDER_DISPATCHED"
	AuditInTransit      AuditAction = "ORDER_IN_TRANSIT"
	AuditDelivered      AuditAction = "ORDER_DELIVERED"
)

type edge struct {
	from  []OrderStatus
	to    OrderStatus
	role  Role
	audit AuditAction
}

var transitions = map[Action]edge{
	ActionApprove: {
		from:  []OrderStatus{OrderStatusDraft, OrderStatusPendingApproval},
		to:    OrderStatusApproved,
		role:  RoleOwner,
		audit: AuditOrderApproved,
	},
	ActionReject: {
		from:  []OrderStatus{OrderStatusDraft, OrderStatusPendingApproval},
		to:    OrderStatusRejected,
		role:  RoleOwner,
		audit: AuditOrderRejected,
	},
	ActionVendorAccept: {
		from:  []OrderStatus{OrderStatusApproved},
		to:    OrderStatusConfirmed,
		role:  RoleVendor,
		audit: AuditVendorAccepted,
	},
	ActionVendorReject: {
		from:  []OrderStatus{OrderStatusApproved},
		to:    OrderStatusVendorRejected,
		role:  RoleVendor,
		audit: AuditVendorRejected,
	},
	ActionRequestDelay: {
		from:  []OrderStatus{OrderStatusApproved},
		to:    OrderStatusDelayRequested,
		role:  RoleVendor,
		audit: AuditDelayRequested,
	},
	ActionDispatch: {
		from:  []OrderStatus{OrderStatusConfirmed},
		to:    OrderStatusDispatched,
		role:  RoleVendor,
		audit: AuditDispatched,
	},
	ActionMarkInTransit: {
		from:  []OrderStatus{OrderStatusDispatched},
		to:    OrderStatusInTransit,
		role:  RoleVendor,
		audit: AuditInTransit,
	},
	ActionMarkDelivered: {
		from:  []OrderStatus{OrderStatusInTransit},
		to:    OrderStatusDelivered,
		role:  RoleVendor,
		audit: AuditDelivered,
	},
}

// Command carries a requested transition and the fields some edges require.
type Command struct {
	Action          Action
	Actor           Actor
	Reason          string
	NewExpectedDate *time.Time
}

// Transition applies cmd to o. It never mutates o; the returned order is a modified copy.
func Transition(o Order, cmd Command, now time.Time) (Order, AuditAction, error) {
	e, ok := transitions[cmd.Action]
	if !ok {
		return Order{}, "", &TransitionError{
			OrderID: o.ID,
			Action:  cmd.Action,
			Current: o.Status,
			Reason:  fmt.Sprintf("unknown action %q", cmd.Action),
		}
	}

	if o.Status.Terminal() {
		return Order{}, "", &TransitionError{
			OrderID: o.ID,
			Action:  cmd.Action,
			Current: o.Status,
			Reason:  fmt.Sprintf("order is in terminal status %s", o.Status),
		}
	}
	if !containsStatus(e.from, o.Status) {
		return Order{}, "", &TransitionError{
			OrderID:  o.ID,
			Action:   cmd.Action,
			Current:  o.Status,
			Required: e.from,
		}
	}
	if err := authorize(o, cmd, e.role); err != nil {
		return Order{}, "", err
	}
	if err := requireFields(cmd); err != nil {
		return Order{}, "", err
	}

	next := o.Clone()
	// stored as DATETIME(3) and hashed at millisecond precision
	ts := now.UTC().Truncate(time.Millisecond)

	switch cmd.Action {
	case ActionApprove:
		approver := cmd.Actor.UserID
		next.ApprovedBy = &approver
	case ActionReject:
		reason := strings.TrimSpace(cmd.Reason)
		next.RejectionReason = &reason
	case ActionVendorAccept:
		next.VendorAction = vendorActionPtr(VendorActionAccept)
		next.ConfirmedAt = &ts
	case ActionVendorReject:
		reason := strings.TrimSpace(cmd.Reason)
		next.VendorAction = vendorActionPtr(VendorActionReject)
		next.RejectionReason = &reason
	case ActionRequestDelay:
		reason := strings.TrimSpace(cmd.Reason)
		newDate := cmd.NewExpectedDate.UTC().Truncate(time.Millisecond)
		next.VendorAction = vendorActionPtr(VendorActionRequestDelay)
		next.DelayReason = &reason
		next.NewExpectedDate = &newDate
	case ActionDispatch:
		next.DispatchedAt = &ts
	case ActionMarkInTransit:
		next.InTransitAt = &ts
	case ActionMarkDelivered:
		next.DeliveredAt = &ts
		delivered := ts
		next.ActualDeliveryDate = &delivered
	default:
		return Order{}, "", &TransitionError{
			OrderID: o.ID,
			Action:  cmd.Action,
			Current: o.Status,
			Reason:  fmt.Sprintf("action %q has no mutation", cmd.Action),
		}
	}

	next.Status = e.to
	next.UpdatedAt = ts
	return next, e.audit, nil
}

func authorize(o Order, cmd Command, role Role) error {
	a := cmd.Actor
	if a.Role != role {
		return &TransitionError{
			OrderID: o.ID,
			Action:  cmd.Action,
			Current: o.Status,
			Role:    a.Role,
			Reason:  fmt.Sprintf("requires role %s, caller has %q", role, a.Role),
		}
	}
	if a.UserID == "" {
		return &TransitionError{
			OrderID: o.ID,
			Action:  cmd.Action,
			Current: o.Status,
			Role:    a.Role,
			Reason:  "caller is not identified",
		}
	}

	switch role {
	case RoleVendor:
		if a.VendorID != o.VendorID {
			return &TransitionError{
				OrderID: o.ID,
				Action:  cmd.Action,
				Current: o.Status,
				Role:    a.Role,
				Reason:  "order is assigned to a different vendor",
			}
		}
	case RoleOwner, RoleManager:
		if a.BusinessID != o.BusinessID {
			return &TransitionError{
				OrderID: o.ID,
				Action:  cmd.Action,
				Current: o.Status,
				Role:    a.Role,
				Reason:  "order belongs to a different business",
			}
		}
	}
	return nil
}

func requireFields(cmd Command) error {
	switch cmd.Action {
	case ActionReject, ActionVendorReject:
		if strings.TrimSpace(cmd.Reason) == "" {
			return &ValidationError{Field: "rejectionReason", Reason: "is required"}
		}
	case ActionRequestDelay:
		if strings.TrimSpace(cmd.Reason) == "" {
			return &ValidationError{Field: "delayReason", Reason: "is required"}
		}
		if cmd.NewExpectedDate == nil || cmd.NewExpectedDate.IsZero() {
			return &ValidationError{Field: "newExpectedDate", Reason: "is required"}
		}
	}
	return nil
}

// ActionForVendorAction maps a vendor disposition to its lifecycle action.
func ActionForVendorAction(a VendorAction) (Action, error) {
	switch a {
	case VendorActionAccept:
		return ActionVendorAccept, nil
	case VendorActionReject:
		return ActionVendorReject, nil
	case VendorActionRequestDelay:
		return ActionRequestDelay, nil
	}
	return "", &ValidationError{Field: "action", Reason: fmt.Sprintf("unknown vendor action %q", a)}
}

// ActionForDeliveryStatus maps a requested delivery status to its lifecycle action.
func ActionForDeliveryStatus(s OrderStatus) (Action, error) {
	switch s {
	case OrderStatusInTransit:
		return ActionMarkInTransit, nil
	case OrderStatusDelivered:
		return ActionMarkDelivered, nil
	}
	return "", &ValidationError{Field: "status", Reason: fmt.Sprintf("%q is not a delivery status", s)}
}

func containsStatus(list []OrderStatus, s OrderStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func vendorActionPtr(a VendorAction) *VendorAction {
	return &a
}
