package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"google.golang.org/grpc/metadata"

	"github.com/rl1809/order-ledger/internal/core/domain"
)

const (
	headerActorID    = "X-Actor-Id"
	headerActorRole  = "X-Actor-Role"
	headerBusinessID = "X-Business-Id"
	headerVendorID   = "X-Vendor-Id"
)

// actorHeaders carries the identity set by the upstream gateway.
type actorHeaders struct {
	UserID     string `validate:"required"`
	Role       string `validate:"required,oneof=OWNER MANAGER VENDOR"`
	BusinessID string `validate:"required_unless=Role VENDOR"`
	VendorID   string `validate:"required_if=Role VENDOR"`
}

func (a actorHeaders) actor(v *validator.Validate) (domain.Actor, error) {
	if err := v.Struct(a); err != nil {
		return domain.Actor{}, errMissingActor
	}
	return domain.Actor{
		UserID:     a.UserID,
		Role:       domain.Role(a.Role),
		BusinessID: a.BusinessID,
		VendorID:   a.VendorID,
	}, nil
}

func actorFromRequest(r *http.Request, v *validator.Validate) (domain.Actor, error) {
	return actorHeaders{
		UserID:     strings.TrimSpace(r.Header.Get(headerActorID)),
		Role:       strings.ToUpper(strings.TrimSpace(r.Header.Get(headerActorRole))),
		BusinessID: strings.TrimSpace(r.Header.Get(headerBusinessID)),
		VendorID:   strings.TrimSpace(r.Header.Get(headerVendorID)),
	}.actor(v)
}

func actorFromMetadata(ctx context.Context, v *validator.Validate) (domain.Actor, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	first := func(key string) string {
		if vals := md.Get(key); len(vals) > 0 {
			return strings.TrimSpace(vals[0])
		}
		return ""
	}
	return actorHeaders{
		UserID:     first(strings.ToLower(headerActorID)),
		Role:       strings.ToUpper(first(strings.ToLower(headerActorRole))),
		BusinessID: first(strings.ToLower(headerBusinessID)),
		VendorID:   first(strings.ToLower(headerVendorID)),
	}.actor(v)
}
