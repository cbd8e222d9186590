package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"google.golang.org/grpc/codes"

	"github.com/rl1809/order-ledger/internal/core/domain"
	"github.com/rl1809/order-ledger/internal/core/service"
	"github.com/rl1809/order-ledger/internal/port"
)

var errMissingActor = errors.New("missing or invalid actor headers")

// classify maps an error to its HTTP status and gRPC code. retry is true for transient failures.
func classify(err error) (httpStatus int, code codes.Code, retry bool) {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, errMissingActor):
		return http.StatusUnauthorized, codes.Unauthenticated, false
	case errors.Is(err, service.ErrActorNotAllowed):
		return http.StatusForbidden, codes.PermissionDenied, false
	case errors.Is(err, domain.ErrValidation), errors.As(err, &verrs):
		return http.StatusUnprocessableEntity, codes.InvalidArgument, false
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, codes.FailedPrecondition, false
	case errors.Is(err, service.ErrConcurrentModification):
		return http.StatusConflict, codes.Aborted, true
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrVendorNotFound),
		errors.Is(err, service.ErrEntryNotFound):
		return http.StatusNotFound, codes.NotFound, false
	case errors.Is(err, service.ErrChainIntegrity), errors.Is(err, port.ErrLockTimeout):
		return http.StatusServiceUnavailable, codes.Unavailable, true
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, codes.DeadlineExceeded, true
	}
	return http.StatusInternalServerError, codes.Internal, false
}

// publicMessage hides internal error details behind a generic message.
func publicMessage(err error, httpStatus int) string {
	if httpStatus == http.StatusInternalServerError {
		return "internal error"
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return formatValidation(verrs)
	}
	return err.Error()
}

func formatValidation(verrs validator.ValidationErrors) string {
	msg := ""
	for i, fe := range verrs {
		if i > 0 {
			msg += "; "
		}
		msg += fe.Field() + " failed " + fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
	}
	return msg
}
