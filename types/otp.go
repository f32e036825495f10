package types

import "time"

// OTPPurpose names the flow an OTP code belongs to.
type OTPPurpose string

const (
	PurposeEmailVerification OTPPurpose = "email_verification"
	PurposeTwoFactor         OTPPurpose = "2fa"
	PurposePasswordReset     OTPPurpose = "password_reset"
)

// ParseOTPPurpose validates a raw purpose string.
func ParseOTPPurpose(raw string) (OTPPurpose, bool) {
	switch OTPPurpose(raw) {
	case PurposeEmailVerification, PurposeTwoFactor, PurposePasswordReset:
		return OTPPurpose(raw), true
	default:
		return "", false
	}
}

// OTP is a single-use, time-boxed 6-digit code. Codes past ExpiresAt are
// inert regardless of the Used flag; the store's TTL eviction is a hygiene
// measure, not the correctness mechanism.
type OTP struct {
	Code      string     `json:"-"`
	AccountID string     `json:"sessionClientId"`
	Purpose   OTPPurpose `json:"purpose"`
	ExpiresAt time.Time  `json:"exp"`
	CreatedAt time.Time  `json:"createdAt"`
	Used      bool       `json:"-"`
}
