package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/gatehouse-hq/apiserver/internal/apperr"
	"github.com/gatehouse-hq/apiserver/internal/mailer"
	"github.com/gatehouse-hq/apiserver/internal/mq"
	"github.com/gatehouse-hq/apiserver/internal/store"
	"github.com/gatehouse-hq/apiserver/types"
)

const (
	otpValidity   = 10 * time.Minute
	otpRateWindow = time.Minute
)

// MailJobPublisher hands rendered-mail requests off to the worker queue.
type MailJobPublisher interface {
	PublishMailJob(ctx context.Context, job mq.MailJob) (string, error)
}

// OTPService issues and verifies one-time codes. One live code per
// (account, purpose); issuing replaces any earlier code for the pair.
type OTPService struct {
	otps     OTPRepository
	accounts AccountRepository
	mail     MailJobPublisher
	logger   *slog.Logger
}

func NewOTPService(otps OTPRepository, accounts AccountRepository, mail MailJobPublisher, logger *slog.Logger) *OTPService {
	return &OTPService{otps: otps, accounts: accounts, mail: mail, logger: logger}
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("generating otp code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// Generate issues a fresh code for the account behind email and queues the
// delivery mail. The bool result reports whether the per-purpose rate
// window swallowed the request; callers respond identically either way so
// the endpoint does not leak issuance timing.
func (s *OTPService) Generate(ctx context.Context, email string, purpose types.OTPPurpose) (types.OTP, bool, error) {
	account, err := s.accounts.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.OTP{}, false, apperr.NotFound("account not found")
		}
		return types.OTP{}, false, err
	}

	if purpose == types.PurposeEmailVerification && account.IsEmailVerified {
		return types.OTP{}, false, apperr.Validation(fmt.Sprintf("%s is already verified", account.Email))
	}

	reserved, err := s.otps.TryReserve(ctx, account.ID, purpose, otpRateWindow)
	if err != nil {
		return types.OTP{}, false, err
	}
	if !reserved {
		return types.OTP{}, true, nil
	}

	code, err := generateCode()
	if err != nil {
		return types.OTP{}, false, err
	}

	now := time.Now()
	otp := types.OTP{
		Code:      code,
		AccountID: account.ID,
		Purpose:   purpose,
		ExpiresAt: now.Add(otpValidity),
		CreatedAt: now,
	}
	if err := s.otps.Put(ctx, otp); err != nil {
		return types.OTP{}, false, err
	}

	s.queueMail(ctx, account, otp)
	return otp, false, nil
}

// queueMail is best-effort: the code is already live, so a broker failure
// is logged rather than surfaced. The user can re-request after the rate
// window.
func (s *OTPService) queueMail(ctx context.Context, account types.Account, otp types.OTP) {
	if s.mail == nil {
		return
	}

	job := mq.MailJob{
		To:   account.Email,
		Name: account.FullName,
		Data: map[string]string{
			"name":            account.FullName,
			"otp":             otp.Code,
			"validityMinutes": fmt.Sprintf("%d", int(otpValidity.Minutes())),
		},
	}
	switch otp.Purpose {
	case types.PurposePasswordReset:
		job.Subject = "Reset your password"
		job.Template = mailer.TemplatePasswordResetOTP
	default:
		job.Subject = "Verify your email address"
		job.Template = mailer.TemplateVerifyEmailOTP
	}

	if _, err := s.mail.PublishMailJob(ctx, job); err != nil {
		s.logger.Error("queue otp mail", "sessionClientId", account.ID, "purpose", otp.Purpose, "error", err)
	}
}

// Verify consumes a live code. Wrong, missing, and already-used codes are
// indistinguishable to the caller; an expired code reports its expiry but
// stays unconsumed.
func (s *OTPService) Verify(ctx context.Context, email string, purpose types.OTPPurpose, code string) (types.Account, error) {
	invalid := apperr.NotFound("Invalid or used OTP")

	account, err := s.accounts.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Account{}, invalid
		}
		return types.Account{}, err
	}

	otp, err := s.otps.Get(ctx, account.ID, purpose)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Account{}, invalid
		}
		return types.Account{}, err
	}
	if otp.Used || otp.Code != strings.TrimSpace(code) {
		return types.Account{}, invalid
	}
	if time.Now().After(otp.ExpiresAt) {
		return types.Account{}, apperr.Validation("OTP expired")
	}

	if err := s.otps.MarkUsed(ctx, otp); err != nil {
		return types.Account{}, err
	}
	return account, nil
}
