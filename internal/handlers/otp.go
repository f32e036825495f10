package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gatehouse-hq/apiserver/internal/services"
	"github.com/gatehouse-hq/apiserver/types"
)

// OTPHandler serves the email-verification and password-reset code flows.
type OTPHandler struct {
	otps     *services.OTPService
	accounts *services.AccountService
}

func NewOTPHandler(otps *services.OTPService, accounts *services.AccountService) *OTPHandler {
	return &OTPHandler{otps: otps, accounts: accounts}
}

// OTPRouter mounts the code flows under /otp.
func OTPRouter(r chi.Router, handler *OTPHandler) {
	r.Post("/generate/email", handler.GenerateEmailVerification)
	r.Post("/verify/email", handler.VerifyEmail)
	r.Post("/generate/password-reset", handler.GeneratePasswordReset)
	r.Post("/verify/password-reset", handler.VerifyPasswordReset)
}

type otpRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

func decodeOTP(w http.ResponseWriter, r *http.Request) (otpRequest, bool) {
	var req otpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return req, false
	}
	if strings.TrimSpace(req.Email) == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return req, false
	}
	return req, true
}

// generate issues a code. A rate-limited request gets the same response
// as a fresh issue so callers cannot probe the window.
func (h *OTPHandler) generate(w http.ResponseWriter, r *http.Request, purpose types.OTPPurpose) {
	req, ok := decodeOTP(w, r)
	if !ok {
		return
	}

	if _, _, err := h.otps.Generate(r.Context(), req.Email, purpose); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "OTP sent"})
}

func (h *OTPHandler) GenerateEmailVerification(w http.ResponseWriter, r *http.Request) {
	h.generate(w, r, types.PurposeEmailVerification)
}

func (h *OTPHandler) GeneratePasswordReset(w http.ResponseWriter, r *http.Request) {
	h.generate(w, r, types.PurposePasswordReset)
}

// VerifyEmail consumes a verification code and flips the account's
// verified flag.
func (h *OTPHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeOTP(w, r)
	if !ok {
		return
	}

	account, err := h.otps.Verify(r.Context(), req.Email, types.PurposeEmailVerification, req.OTP)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if err := h.accounts.MarkEmailVerified(r.Context(), account.ID); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "email verified"})
}

// VerifyPasswordReset consumes a reset code and applies the new password.
func (h *OTPHandler) VerifyPasswordReset(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeOTP(w, r)
	if !ok {
		return
	}
	if req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "newPassword is required")
		return
	}

	account, err := h.otps.Verify(r.Context(), req.Email, types.PurposePasswordReset, req.OTP)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if err := h.accounts.ResetPassword(r.Context(), account.ID, req.NewPassword); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}
