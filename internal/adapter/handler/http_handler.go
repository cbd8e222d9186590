package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/rl1809/order-ledger/internal/core/domain"
	"github.com/rl1809/order-ledger/internal/core/service"
	"github.com/rl1809/order-ledger/pkg/logger"
)

const retryAfterSeconds = 1

// OrderLifecycle is the order-facing use case surface the transports call into.
type OrderLifecycle interface {
	CreateOrder(ctx context.Context, actor domain.Actor, in service.CreateOrderInput) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	Approve(ctx context.Context, actor domain.Actor, orderID string) (*service.TransitionResult, error)
	Reject(ctx context.Context, actor domain.Actor, orderID, reason string) (*service.TransitionResult, error)
	VendorAction(ctx context.Context, actor domain.Actor, orderID string, action domain.VendorAction, reason string, newDate *time.Time) (*service.TransitionResult, error)
	Dispatch(ctx context.Context, actor domain.Actor, orderID string) (*service.TransitionResult, error)
	UpdateDeliveryStatus(ctx context.Context, actor domain.Actor, orderID string, status domain.OrderStatus) (*service.TransitionResult, error)
	VerifyChain(ctx context.Context, orderID string) (domain.ChainVerification, error)
	AuditTrail(ctx context.Context, orderID string) ([]domain.AuditEntryView, error)
	VerifyEntry(ctx context.Context, entryID string) (domain.EntryVerification, error)
}

type VendorScoring interface {
	GetVendor(ctx context.Context, vendorID string) (*domain.Vendor, error)
	ApplyScoreEvent(ctx context.Context, vendorID string, kind domain.ScoreEvent) (*service.ScoreResult, error)
	RecalculateReliabilityScore(ctx context.Context, vendorID, trigger string) (*service.ScoreResult, error)
}

type HTTPHandler struct {
	orders   OrderLifecycle
	vendors  VendorScoring
	validate *validator.Validate
	logger   *logger.Logger
}

func NewHTTPHandler(orders OrderLifecycle, vendors VendorScoring, log *logger.Logger) *HTTPHandler {
	return &HTTPHandler{
		orders:   orders,
		vendors:  vendors,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   log.WithComponent("http_handler"),
	}
}

func (h *HTTPHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(h.logger.HTTPMiddleware)

	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Post("/orders", h.CreateOrder)
		r.Route("/orders/{orderID}", func(r chi.Router) {
			r.Get("/", h.GetOrder)
			r.Post("/approve", h.Approve)
			r.Post("/reject", h.Reject)
			r.Post("/vendor-action", h.VendorAction)
			r.Post("/dispatch", h.Dispatch)
			r.Post("/delivery-status", h.UpdateDeliveryStatus)
			r.Get("/audit", h.AuditTrail)
			r.Get("/audit/verify", h.VerifyChain)
		})
		r.Get("/audit/{entryID}/verify", h.VerifyEntry)

		r.Route("/vendors/{vendorID}", func(r chi.Router) {
			r.Get("/", h.GetVendor)
			r.Post("/events", h.ApplyScoreEvent)
			r.Post("/recalculate", h.Recalculate)
		})
	})
	return r
}

func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r, h.validate)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req CreateOrderRequest
	if !h.decode(w, r, &req) {
		return
	}

	order, err := h.orders.CreateOrder(r.Context(), actor, service.CreateOrderInput{
		ProductID:            req.ProductID,
		VendorID:             req.VendorID,
		VendorCatalogItemID:  req.VendorCatalogItemID,
		Quantity:             req.Quantity,
		UnitPrice:            req.UnitPrice,
		ExpectedDeliveryDate: req.ExpectedDeliveryDate,
		Submit:               req.Submit,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, APIResponse{Success: true, Data: toOrderResponse(*order)})
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrder(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: toOrderResponse(*order)})
}

func (h *HTTPHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, nil, func(ctx context.Context, actor domain.Actor, orderID string) (*service.TransitionResult, error) {
		return h.orders.Approve(ctx, actor, orderID)
	})
}

func (h *HTTPHandler) Reject(w http.ResponseWriter, r *http.Request) {
	var req RejectRequest
	h.transition(w, r, &req, func(ctx context.Context, actor domain.Actor, orderID string) (*service.TransitionResult, error) {
		return h.orders.Reject(ctx, actor, orderID, req.Reason)
	})
}

func (h *HTTPHandler) VendorAction(w http.ResponseWriter, r *http.Request) {
	var req VendorActionRequest
	h.transition(w, r, &req, func(ctx context.Context, actor domain.Actor, orderID string) (*service.TransitionResult, error) {
		return h.orders.VendorAction(ctx, actor, orderID, domain.VendorAction(req.Action), req.Reason, req.NewExpectedDate)
	})
}

func (h *HTTPHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, nil, func(ctx context.Context, actor domain.Actor, orderID string) (*service.TransitionResult, error) {
		return h.orders.Dispatch(ctx, actor, orderID)
	})
}

func (h *HTTPHandler) UpdateDeliveryStatus(w http.ResponseWriter, r *http.Request) {
	var req DeliveryStatusRequest
	h.transition(w, r, &req, func(ctx context.Context, actor domain.Actor, orderID string) (*service.TransitionResult, error) {
		return h.orders.UpdateDeliveryStatus(ctx, actor, orderID, domain.OrderStatus(req.Status))
	})
}

func (h *HTTPHandler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	entries, err := h.orders.AuditTrail(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: entries})
}

func (h *HTTPHandler) VerifyChain(w http.ResponseWriter, r *http.Request) {
	result, err := h.orders.VerifyChain(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: result})
}

func (h *HTTPHandler) VerifyEntry(w http.ResponseWriter, r *http.Request) {
	result, err := h.orders.VerifyEntry(r.Context(), chi.URLParam(r, "entryID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: result})
}

func (h *HTTPHandler) GetVendor(w http.ResponseWriter, r *http.Request) {
	v, err := h.vendors.GetVendor(r.Context(), chi.URLParam(r, "vendorID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: toVendorResponse(*v)})
}

func (h *HTTPHandler) ApplyScoreEvent(w http.ResponseWriter, r *http.Request) {
	var req ScoreEventRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.vendors.ApplyScoreEvent(r.Context(), chi.URLParam(r, "vendorID"), domain.ScoreEvent(req.Kind))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: toScoreResponse(res)})
}

func (h *HTTPHandler) Recalculate(w http.ResponseWriter, r *http.Request) {
	res, err := h.vendors.RecalculateReliabilityScore(r.Context(), chi.URLParam(r, "vendorID"), "manual")
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: toScoreResponse(res)})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type transitionFunc func(ctx context.Context, actor domain.Actor, orderID string) (*service.TransitionResult, error)

// transition reads the actor and, when body is non-nil, decodes and validates it before calling fn.
func (h *HTTPHandler) transition(w http.ResponseWriter, r *http.Request, body any, fn transitionFunc) {
	actor, err := actorFromRequest(r, h.validate)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if body != nil && !h.decode(w, r, body) {
		return
	}

	res, err := fn(r.Context(), actor, chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: toTransitionResponse(res)})
}

func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, APIResponse{Success: false, Message: "invalid request body"})
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.writeError(w, err)
		return false
	}
	return true
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	status, _, retry := classify(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "error", err)
	}
	if retry && status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	writeJSON(w, status, APIResponse{Success: false, Message: publicMessage(err, status)})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
