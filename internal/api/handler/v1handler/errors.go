package v1handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"exposureshield/pkg/logger"
	"exposureshield/pkg/serrors"

	"go.uber.org/zap"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorStatus is an HTTP status with its body.
type ErrorStatus struct {
	StatusCode int
	Response   ErrorResponse
}

type kindStatus struct {
	status  int
	message string
}

//nolint: gochecknoglobals
var kindStatuses = map[serrors.Kind]kindStatus{
	serrors.ErrNotFound:      {http.StatusNotFound, "resource not found"},
	serrors.ErrBadRequest:    {http.StatusBadRequest, "bad request"},
	serrors.ErrForbidden:     {http.StatusForbidden, "forbidden"},
	serrors.ErrTimeout:       {http.StatusGatewayTimeout, "request timed out"},
	serrors.ErrUnavailable:   {http.StatusServiceUnavailable, "service temporarily unavailable"},
	serrors.ErrRateLimited:   {http.StatusTooManyRequests, "Too many requests, try again shortly."},
	serrors.ErrMisconfigured: {http.StatusServiceUnavailable, "service is not configured correctly"},
}

// NewError maps err to a status code and body using its semantic kind.
// Errors without a kind, and every 5xx, are logged; their causes never reach
// the client.
func (h *Handler) NewError(ctx context.Context, err error) *ErrorStatus {
	kind := kindOf(err)
	ks, ok := kindStatuses[kind]
	if !ok {
		logger.Error(ctx, "unhandled error", zap.Error(err))

		return &ErrorStatus{
			StatusCode: http.StatusInternalServerError,
			Response:   ErrorResponse{Code: serrors.ErrInternal.Error(), Message: "internal error"},
		}
	}

	if ks.status >= http.StatusInternalServerError {
		logger.Error(ctx, "request failed", zap.Error(err))
	} else {
		logger.Debug(ctx, "request rejected", zap.Error(err))
	}

	message := ks.message
	// misconfiguration details name secrets and upstreams; keep them in the logs
	if kind != serrors.ErrMisconfigured {
		message = serrors.MessageOf(err, ks.message)
	}

	return &ErrorStatus{
		StatusCode: ks.status,
		Response:   ErrorResponse{Code: kind.Error(), Message: message},
	}
}

func kindOf(err error) serrors.Kind {
	if k := serrors.KindOf(err); k != nil {
		return k
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return serrors.ErrTimeout
	}
	for k := range kindStatuses {
		if errors.Is(err, k) {
			return k
		}
	}

	return nil
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	res := h.NewError(ctx, err)
	writeJSON(w, res.StatusCode, res.Response)
}

// setRetryAfter sets the Retry-After header in whole seconds, rounding up.
func setRetryAfter(w http.ResponseWriter, d time.Duration) {
	if d <= 0 {
		return
	}

	secs := int64((d + time.Second - 1) / time.Second)
	w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
}
