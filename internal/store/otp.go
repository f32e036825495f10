package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gatehouse-hq/apiserver/types"
	"github.com/redis/go-redis/v9"
)

// Redis eviction is a hygiene measure only; verification always compares
// ExpiresAt explicitly, so a code is inert the moment it logically expires
// even if the key is still around.
const otpHygieneTTL = 24 * time.Hour

// OTPRepository stores one-time codes in redis. Keying by
// (account, purpose) means creating a new code atomically supersedes any
// prior unused code for the same flow.
type OTPRepository struct {
	client *redis.Client
}

func NewOTPRepository(client *redis.Client) *OTPRepository {
	return &OTPRepository{client: client}
}

func otpKey(accountID string, purpose types.OTPPurpose) string {
	return fmt.Sprintf("otp:%s:%s", accountID, purpose)
}

func rateKey(accountID string, purpose types.OTPPurpose) string {
	return fmt.Sprintf("otp:rl:%s:%s", accountID, purpose)
}

type otpRow struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
	Used      bool      `json:"used"`
}

// TryReserve marks the rate-limit window for (account, purpose). It
// returns false without side effects when a reservation from the last
// window is still live.
func (r *OTPRepository) TryReserve(ctx context.Context, accountID string, purpose types.OTPPurpose, window time.Duration) (bool, error) {
	return r.client.SetNX(ctx, rateKey(accountID, purpose), time.Now().Unix(), window).Result()
}

// Put stores a fresh code, superseding any prior one for the same
// (account, purpose).
func (r *OTPRepository) Put(ctx context.Context, otp types.OTP) error {
	row := otpRow{
		Code:      otp.Code,
		ExpiresAt: otp.ExpiresAt,
		CreatedAt: otp.CreatedAt,
		Used:      otp.Used,
	}
	data, err := json.Marshal(row)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, otpKey(otp.AccountID, otp.Purpose), data, otpHygieneTTL).Err()
}

// Get fetches the current code for (account, purpose).
func (r *OTPRepository) Get(ctx context.Context, accountID string, purpose types.OTPPurpose) (types.OTP, error) {
	data, err := r.client.Get(ctx, otpKey(accountID, purpose)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return types.OTP{}, ErrNotFound
		}
		return types.OTP{}, err
	}
	var row otpRow
	if err := json.Unmarshal(data, &row); err != nil {
		return types.OTP{}, err
	}
	return types.OTP{
		Code:      row.Code,
		AccountID: accountID,
		Purpose:   purpose,
		ExpiresAt: row.ExpiresAt,
		CreatedAt: row.CreatedAt,
		Used:      row.Used,
	}, nil
}

// MarkUsed consumes a code. The row is kept (with its hygiene TTL) so a
// replayed code reads as used rather than fresh.
func (r *OTPRepository) MarkUsed(ctx context.Context, otp types.OTP) error {
	otp.Used = true
	return r.Put(ctx, otp)
}
