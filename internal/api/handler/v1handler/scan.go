package v1handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"strings"
	"time"

	"exposureshield/internal/ratelimit"
	"exposureshield/pkg/controller"
	"exposureshield/pkg/domain"
	"exposureshield/pkg/logger"
	"exposureshield/pkg/serrors"

	"go.uber.org/zap"
)

// ScanRequest is the body of POST /scan, as JSON or as a form. The password
// is optional: without it only the email sources are asked.
type ScanRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"max=1024"`
}

func (req *ScanRequest) decodeForm(form url.Values) {
	req.Email = form.Get("email")
	req.Password = form.Get("password")
}

// ScanResponse is the verdict of POST /scan. Exposed is null when the
// verdict is inconclusive. RetryAfter is in seconds and only set on
// inconclusive verdicts.
type ScanResponse struct {
	Exposed      *bool                                 `json:"exposed"`
	Status       domain.VerdictStatus                  `json:"status"`
	PasswordHits uint                                  `json:"passwordHits"`
	EmailRecords []domain.EmailExposureRecord          `json:"emailRecords"`
	Advice       []string                              `json:"advice"`
	Sources      map[domain.Source]domain.SourceStatus `json:"sources"`
	RetryAfter   int64                                 `json:"retryAfter,omitempty"`
}

// DomainVerdictToResponse maps a verdict to its wire form.
func DomainVerdictToResponse(v domain.ExposureVerdict) ScanResponse {
	records := v.EmailRecords
	if records == nil {
		records = []domain.EmailExposureRecord{}
	}

	res := ScanResponse{
		Exposed:      v.Exposed,
		Status:       v.Status(),
		PasswordHits: v.PasswordHits,
		EmailRecords: records,
		Advice:       v.Advice,
		Sources:      v.Sources,
	}
	if res.Status == domain.VerdictInconclusive && v.RetryAfter > 0 {
		res.RetryAfter = int64((v.RetryAfter + time.Second - 1) / time.Second)
	}

	return res
}

// Scan evaluates an email/password pair.
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clientIP := controller.ClientIP(ctx)

	if !h.allow(ctx, w, clientIP, ratelimit.ActionScan) {
		return
	}

	var req ScanRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(ctx, w, err)

		return
	}

	verdict, err := h.deps.Exposure.Evaluate(ctx, domain.ExposureQuery{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.writeError(ctx, w, err)

		return
	}

	h.logScan(ctx, req.Email, verdict.Status(), clientIP)

	res := DomainVerdictToResponse(verdict)
	if res.RetryAfter > 0 {
		setRetryAfter(w, time.Duration(res.RetryAfter)*time.Second)
	}
	writeJSON(w, http.StatusOK, res)
}

// logScan stores a scan log row. Failures are logged and never affect the
// response.
func (h *Handler) logScan(ctx context.Context, email string, status domain.VerdictStatus, clientIP string) {
	if h.deps.ScanLogs == nil {
		return
	}

	err := h.deps.ScanLogs.StoreScanLog(context.WithoutCancel(ctx), domain.ScanLog{
		EmailHash: HashEmail(h.options.ScanLogSecret, email),
		Status:    status,
		ClientIP:  clientIP,
	})
	if err != nil {
		logger.Warn(ctx, "could not store scan log", zap.Error(err))
	}
}

// HashEmail returns the hex HMAC-SHA256 of the trimmed, lower-cased address.
func HashEmail(secret []byte, email string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(strings.ToLower(strings.TrimSpace(email))))

	return hex.EncodeToString(mac.Sum(nil))
}

// allow applies the rate limit of action and writes the 429 itself when the
// request is rejected.
func (h *Handler) allow(ctx context.Context, w http.ResponseWriter, clientID, action string) bool {
	if h.deps.Limiter == nil || h.deps.Limiter.AllowAction(ctx, clientID, action) {
		return true
	}

	if rule, ok := h.deps.Limiter.Rule(action); ok {
		setRetryAfter(w, rule.Window)
	}
	h.writeError(ctx, w, serrors.KindOnly(serrors.ErrRateLimited))

	return false
}
