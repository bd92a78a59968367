package v1handler

import (
	"fmt"
	"net/http"

	"exposureshield/internal/feedback"
	"exposureshield/internal/ratelimit"
	"exposureshield/pkg/controller"
	"exposureshield/pkg/domain"
)

// CaptchaResponse is a challenge to solve before submitting feedback.
type CaptchaResponse struct {
	OperandA  int    `json:"operandA"`
	OperandB  int    `json:"operandB"`
	IssuedAt  int64  `json:"issuedAt"`
	Signature string `json:"signature"`
	Options   []int  `json:"options"`
	Prompt    string `json:"prompt"`
}

// FeedbackRequest is the body of POST /feedback. It echoes the challenge
// fields next to the answer; TurnstileToken may replace them.
type FeedbackRequest struct {
	Email          string `json:"email"`
	Message        string `json:"message"`
	OperandA       int    `json:"operandA"`
	OperandB       int    `json:"operandB"`
	IssuedAt       int64  `json:"issuedAt"`
	Signature      string `json:"signature"`
	Answer         int    `json:"answer"`
	TurnstileToken string `json:"turnstileToken,omitempty"`
}

// FeedbackResponse acknowledges a stored message.
type FeedbackResponse struct {
	OK         bool                `json:"ok"`
	ID         domain.FeedbackID   `json:"id"`
	VerifiedBy domain.Verification `json:"verifiedBy"`
}

// Captcha issues a new challenge.
func (h *Handler) Captcha(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.allow(ctx, w, controller.ClientIP(ctx), ratelimit.ActionChallenge) {
		return
	}

	tok := h.deps.Feedback.Challenge()
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, CaptchaResponse{
		OperandA:  tok.OperandA,
		OperandB:  tok.OperandB,
		IssuedAt:  tok.IssuedAt,
		Signature: tok.Signature,
		Options:   tok.Options,
		Prompt:    fmt.Sprintf("%d + %d = ?", tok.OperandA, tok.OperandB),
	})
}

// SubmitFeedback stores a feedback message once its challenge is verified.
func (h *Handler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clientIP := controller.ClientIP(ctx)
	if !h.allow(ctx, w, clientIP, ratelimit.ActionFeedback) {
		return
	}

	// fields are validated by the feedback service
	var req FeedbackRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(ctx, w, err)

		return
	}

	stored, err := h.deps.Feedback.Submit(ctx, feedback.SubmitRequest{
		Email:    req.Email,
		Message:  req.Message,
		ClientIP: clientIP,
		Challenge: domain.ChallengeToken{
			OperandA:  req.OperandA,
			OperandB:  req.OperandB,
			IssuedAt:  req.IssuedAt,
			Signature: req.Signature,
		},
		Answer:         req.Answer,
		TurnstileToken: req.TurnstileToken,
	})
	if err != nil {
		h.writeError(ctx, w, err)

		return
	}

	writeJSON(w, http.StatusOK, FeedbackResponse{OK: true, ID: stored.ID, VerifiedBy: stored.VerifiedBy})
}
