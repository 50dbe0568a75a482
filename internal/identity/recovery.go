package identity

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"emis/internal/auth"
	"emis/internal/mail"
	"emis/internal/metrics"
)

// CodeTTL is how long an issued recovery code stays redeemable.
const CodeTTL = 15 * time.Minute

// Recovery outcome messages.
const (
	MsgEnterEmail     = "Enter email"
	MsgEnterAllFields = "Enter all fields"
	MsgUserNotFound   = "User not found"
	MsgInvalidCode    = "Invalid OTP"
	MsgCodeExpired    = "OTP expired"
	MsgCodeSent       = "Reset OTP sent successfully"
	MsgPasswordReset  = "Password has been reset successfully"
)

const (
	resetSubject = "Password Reset OTP"
	resetText    = "OTP for resetting password for your account is "
)

// RecoveryResult is the soft outcome of a recovery step. Expected failures
// such as an unknown email or a wrong code are results, not errors.
type RecoveryResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func soft(msg string) RecoveryResult { return RecoveryResult{Message: msg} }

// Recovery issues and redeems one-time password reset codes for admins.
type Recovery struct {
	admins  AdminStore
	hasher  *auth.Hasher
	sender  mail.Sender
	from    string
	now     func() time.Time
	newCode func() (string, error)
	logger  *slog.Logger
}

// RecoveryOption customises a Recovery.
type RecoveryOption func(*Recovery)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) RecoveryOption {
	return func(r *Recovery) { r.now = now }
}

// WithCodeGenerator replaces the random 6-digit generator.
func WithCodeGenerator(gen func() (string, error)) RecoveryOption {
	return func(r *Recovery) { r.newCode = gen }
}

// WithRecoveryLogger sets the logger.
func WithRecoveryLogger(l *slog.Logger) RecoveryOption {
	return func(r *Recovery) { r.logger = l }
}

// NewRecovery wires the flow. from is the sender identity on reset emails.
func NewRecovery(admins AdminStore, hasher *auth.Hasher, sender mail.Sender, from string, opts ...RecoveryOption) *Recovery {
	r := &Recovery{
		admins:  admins,
		hasher:  hasher,
		sender:  sender,
		from:    from,
		now:     time.Now,
		newCode: SixDigitCode,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SixDigitCode returns a uniformly random code in [100000, 999999].
func SixDigitCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("identity: generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// RequestCode issues a fresh code for the admin registered under email,
// replacing any earlier one, and mails it.
func (r *Recovery) RequestCode(ctx context.Context, email string) (RecoveryResult, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return r.outcome("request", soft(MsgEnterEmail)), nil
	}
	admin, err := r.admins.AdminByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ErrNotFound) {
		return r.outcome("request", soft(MsgUserNotFound)), nil
	}
	if err != nil {
		return r.fail(ctx, "request", fmt.Errorf("identity: admin lookup: %w", err))
	}

	code, err := r.newCode()
	if err != nil {
		return r.fail(ctx, "request", err)
	}
	if err := r.admins.SetRecoveryCode(ctx, admin.ID, code, r.now().Add(CodeTTL)); err != nil {
		return r.fail(ctx, "request", fmt.Errorf("identity: store code: %w", err))
	}

	msg := mail.Message{From: r.from, To: admin.Email, Subject: resetSubject, Text: resetText + code}
	if err := r.sender.Send(ctx, msg); err != nil {
		return r.fail(ctx, "request", fmt.Errorf("identity: send code: %w", err))
	}
	r.logger.InfoContext(ctx, "recovery code issued", "admin_id", admin.ID)
	return r.outcome("request", RecoveryResult{Success: true, Message: MsgCodeSent}), nil
}

// Redeem replaces the admin's password if code matches the stored code and
// has not expired. A redeemed code is cleared and cannot be used again.
func (r *Recovery) Redeem(ctx context.Context, email, code, newPassword string) (RecoveryResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || code == "" || newPassword == "" {
		return r.outcome("redeem", soft(MsgEnterAllFields)), nil
	}
	admin, err := r.admins.AdminByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ErrNotFound) {
		return r.outcome("redeem", soft(MsgUserNotFound)), nil
	}
	if err != nil {
		return r.fail(ctx, "redeem", fmt.Errorf("identity: admin lookup: %w", err))
	}

	if admin.RecoveryCode == "" || admin.RecoveryCode != code {
		return r.outcome("redeem", soft(MsgInvalidCode)), nil
	}
	if r.now().After(admin.RecoveryCodeExpiry) {
		return r.outcome("redeem", soft(MsgCodeExpired)), nil
	}

	hash, err := r.hasher.Hash(newPassword)
	if err != nil {
		return r.fail(ctx, "redeem", err)
	}
	err = r.admins.RedeemRecoveryCode(ctx, admin.ID, code, hash)
	if errors.Is(err, ErrCodeMismatch) {
		// lost a race with another redemption or a newer code
		return r.outcome("redeem", soft(MsgInvalidCode)), nil
	}
	if err != nil {
		return r.fail(ctx, "redeem", fmt.Errorf("identity: store password: %w", err))
	}
	r.logger.InfoContext(ctx, "password reset", "admin_id", admin.ID)
	return r.outcome("redeem", RecoveryResult{Success: true, Message: MsgPasswordReset}), nil
}

func (r *Recovery) outcome(step string, res RecoveryResult) RecoveryResult {
	label := "success"
	if !res.Success {
		label = outcomeLabel(res.Message)
	}
	metrics.Recovery.WithLabelValues(step, label).Inc()
	return res
}

func (r *Recovery) fail(ctx context.Context, step string, err error) (RecoveryResult, error) {
	metrics.Recovery.WithLabelValues(step, "error").Inc()
	r.logger.ErrorContext(ctx, "recovery failed", "step", step, "error", err)
	return RecoveryResult{Message: err.Error()}, err
}

func outcomeLabel(msg string) string {
	switch msg {
	case MsgUserNotFound:
		return "unknown_email"
	case MsgInvalidCode:
		return "invalid_code"
	case MsgCodeExpired:
		return "expired"
	default:
		return "incomplete"
	}
}
