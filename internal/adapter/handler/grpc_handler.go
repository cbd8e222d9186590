package handler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"

	"github.com/rl1809/order-ledger/internal/core/domain"
	"github.com/rl1809/order-ledger/internal/core/service"
	"github.com/rl1809/order-ledger/pkg/logger"
)

const LifecycleServiceName = "lifecycle.v1.OrderLifecycle"

// jsonCodec lets clients speak JSON over gRPC with content-subtype "json".
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return "json" }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type OrderRef struct {
	OrderID string `json:"orderId" validate:"required"`
}

type RejectCall struct {
	OrderID string `json:"orderId" validate:"required"`
	Reason  string `json:"reason" validate:"required"`
}

type VendorActionCall struct {
	OrderID         string     `json:"orderId" validate:"required"`
	Action          string     `json:"action" validate:"required,oneof=ACCEPT REJECT REQUEST_DELAY"`
	Reason          string     `json:"reason" validate:"required_unless=Action ACCEPT"`
	NewExpectedDate *time.Time `json:"newExpectedDate" validate:"required_if=Action REQUEST_DELAY"`
}

type DeliveryStatusCall struct {
	OrderID string `json:"orderId" validate:"required"`
	Status  string `json:"status" validate:"required,oneof=IN_TRANSIT DELIVERED"`
}

// LifecycleServer is the server API for the OrderLifecycle service.
type LifecycleServer interface {
	Approve(ctx context.Context, req *OrderRef) (*TransitionResponse, error)
	Reject(ctx context.Context, req *RejectCall) (*TransitionResponse, error)
	VendorAction(ctx context.Context, req *VendorActionCall) (*TransitionResponse, error)
	Dispatch(ctx context.Context, req *OrderRef) (*TransitionResponse, error)
	UpdateDeliveryStatus(ctx context.Context, req *DeliveryStatusCall) (*TransitionResponse, error)
	VerifyChain(ctx context.Context, req *OrderRef) (*domain.ChainVerification, error)
}

var LifecycleServiceDesc = grpc.ServiceDesc{
	ServiceName: LifecycleServiceName,
	HandlerType: (*LifecycleServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Approve", LifecycleServer.Approve),
		unary("Reject", LifecycleServer.Reject),
		unary("VendorAction", LifecycleServer.VendorAction),
		unary("Dispatch", LifecycleServer.Dispatch),
		unary("UpdateDeliveryStatus", LifecycleServer.UpdateDeliveryStatus),
		unary("VerifyChain", LifecycleServer.VerifyChain),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "lifecycle/v1/lifecycle.proto",
}

func unary[Req, Resp any](name string, call func(LifecycleServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			req := new(Req)
			if err := dec(req); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(LifecycleServer), ctx, req)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + LifecycleServiceName + "/" + name}
			return interceptor(ctx, req, info, func(ctx context.Context, r any) (any, error) {
				return call(srv.(LifecycleServer), ctx, r.(*Req))
			})
		},
	}
}

func RegisterLifecycleServer(s grpc.ServiceRegistrar, srv LifecycleServer) {
	s.RegisterService(&LifecycleServiceDesc, srv)
}

type GRPCHandler struct {
	orders   OrderLifecycle
	validate *validator.Validate
	logger   *logger.Logger
}

func NewGRPCHandler(orders OrderLifecycle, log *logger.Logger) *GRPCHandler {
	return &GRPCHandler{
		orders:   orders,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   log.WithComponent("grpc_handler"),
	}
}

func (h *GRPCHandler) Approve(ctx context.Context, req *OrderRef) (*TransitionResponse, error) {
	return h.transition(ctx, req, func(actor domain.Actor) (*service.TransitionResult, error) {
		return h.orders.Approve(ctx, actor, req.OrderID)
	})
}

func (h *GRPCHandler) Reject(ctx context.Context, req *RejectCall) (*TransitionResponse, error) {
	return h.transition(ctx, req, func(actor domain.Actor) (*service.TransitionResult, error) {
		return h.orders.Reject(ctx, actor, req.OrderID, req.Reason)
	})
}

func (h *GRPCHandler) VendorAction(ctx context.Context, req *VendorActionCall) (*TransitionResponse, error) {
	return h.transition(ctx, req, func(actor domain.Actor) (*service.TransitionResult, error) {
		return h.orders.VendorAction(ctx, actor, req.OrderID, domain.VendorAction(req.Action), req.Reason, req.NewExpectedDate)
	})
}

func (h *GRPCHandler) Dispatch(ctx context.Context, req *OrderRef) (*TransitionResponse, error) {
	return h.transition(ctx, req, func(actor domain.Actor) (*service.TransitionResult, error) {
		return h.orders.Dispatch(ctx, actor, req.OrderID)
	})
}

func (h *GRPCHandler) UpdateDeliveryStatus(ctx context.Context, req *DeliveryStatusCall) (*TransitionResponse, error) {
	return h.transition(ctx, req, func(actor domain.Actor) (*service.TransitionResult, error) {
		return h.orders.UpdateDeliveryStatus(ctx, actor, req.OrderID, domain.OrderStatus(req.Status))
	})
}

func (h *GRPCHandler) VerifyChain(ctx context.Context, req *OrderRef) (*domain.ChainVerification, error) {
	if err := h.validate.Struct(req); err != nil {
		return nil, h.statusError(err)
	}
	result, err := h.orders.VerifyChain(ctx, req.OrderID)
	if err != nil {
		return nil, h.statusError(err)
	}
	return &result, nil
}

func (h *GRPCHandler) transition(ctx context.Context, req any, fn func(domain.Actor) (*service.TransitionResult, error)) (*TransitionResponse, error) {
	actor, err := actorFromMetadata(ctx, h.validate)
	if err != nil {
		return nil, h.statusError(err)
	}
	if err := h.validate.Struct(req); err != nil {
		return nil, h.statusError(err)
	}

	res, err := fn(actor)
	if err != nil {
		return nil, h.statusError(err)
	}
	resp := toTransitionResponse(res)
	return &resp, nil
}

func (h *GRPCHandler) statusError(err error) error {
	httpStatus, code, _ := classify(err)
	if code == codes.Internal {
		h.logger.Error("RPC failed", "error", err)
	}
	return status.Error(code, publicMessage(err, httpStatus))
}
