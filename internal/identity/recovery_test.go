package identity_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"emis/internal/identity"
	"emis/internal/mail"
	"emis/internal/mocks"
)

const adminEmail = "root@emis.test"

type recoveryFixture struct {
	*fixture
	sender   *mocks.MockSender
	recovery *identity.Recovery
	codes    []string
}

func newRecoveryFixture(t *testing.T) *recoveryFixture {
	t.Helper()
	f := newFixture(t)
	f.seed(t)
	ctrl := gomock.NewController(t)
	rf := &recoveryFixture{fixture: f, sender: mocks.NewMockSender(ctrl)}
	next := 111111
	rf.recovery = identity.NewRecovery(f.stores.Admins, f.hasher, rf.sender, "noreply@emis.test",
		identity.WithClock(f.clock.Now),
		identity.WithCodeGenerator(func() (string, error) {
			code := strings.Repeat(string(rune('0'+next%10)), 6)
			next++
			rf.codes = append(rf.codes, code)
			return code, nil
		}),
	)
	return rf
}

func (rf *recoveryFixture) request(t *testing.T) string {
	t.Helper()
	var sent mail.Message
	rf.sender.EXPECT().Send(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, m mail.Message) error {
			sent = m
			return nil
		})
	res, err := rf.recovery.RequestCode(rf.ctx, adminEmail)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, identity.MsgCodeSent, res.Message)

	code := rf.codes[len(rf.codes)-1]
	assert.Equal(t, "noreply@emis.test", sent.From)
	assert.Equal(t, adminEmail, sent.To)
	assert.Equal(t, "Password Reset OTP", sent.Subject)
	assert.Equal(t, "OTP for resetting password for your account is "+code, sent.Text)
	return code
}

func (rf *recoveryFixture) passwordWorks(pw string) bool {
	_, err := rf.dispatcher.Login(rf.ctx, identity.AdminCredentials{Username: "root", Password: pw})
	return err == nil
}

func TestRecoveryRedeemOnce(t *testing.T) {
	rf := newRecoveryFixture(t)
	code := rf.request(t)

	res, err := rf.recovery.Redeem(rf.ctx, adminEmail, code, "pw2")
	require.NoError(t, err)
	assert.Equal(t, identity.RecoveryResult{Success: true, Message: identity.MsgPasswordReset}, res)
	assert.True(t, rf.passwordWorks("pw2"))
	assert.False(t, rf.passwordWorks("pw1"))

	res, err = rf.recovery.Redeem(rf.ctx, adminEmail, code, "pw3")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, identity.MsgInvalidCode, res.Message)
	assert.True(t, rf.passwordWorks("pw2"))

	a, err := rf.stores.Admins.AdminByEmail(rf.ctx, adminEmail)
	require.NoError(t, err)
	assert.Empty(t, a.RecoveryCode)
	assert.True(t, a.RecoveryCodeExpiry.IsZero())
}

func TestRecoveryNewCodeInvalidatesOld(t *testing.T) {
	rf := newRecoveryFixture(t)
	first := rf.request(t)
	second := rf.request(t)
	require.NotEqual(t, first, second)

	res, err := rf.recovery.Redeem(rf.ctx, adminEmail, first, "pw2")
	require.NoError(t, err)
	assert.Equal(t, identity.MsgInvalidCode, res.Message)
	assert.True(t, rf.passwordWorks("pw1"))

	res, err = rf.recovery.Redeem(rf.ctx, adminEmail, second, "pw2")
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestRecoveryExpiryBoundary(t *testing.T) {
	issued := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	cases := []struct {
		name    string
		offset  time.Duration
		success bool
		message string
	}{
		{"just before expiry", identity.CodeTTL - time.Millisecond, true, identity.MsgPasswordReset},
		{"at expiry", identity.CodeTTL, true, identity.MsgPasswordReset},
		{"just after expiry", identity.CodeTTL + time.Millisecond, false, identity.MsgCodeExpired},
		{"long after", 2 * time.Hour, false, identity.MsgCodeExpired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rf := newRecoveryFixture(t)
			rf.clock.t = issued
			code := rf.request(t)

			rf.clock.t = issued.Add(tc.offset)
			res, err := rf.recovery.Redeem(rf.ctx, adminEmail, code, "pw2")
			require.NoError(t, err)
			assert.Equal(t, tc.success, res.Success)
			assert.Equal(t, tc.message, res.Message)
			assert.Equal(t, tc.success, rf.passwordWorks("pw2"))
		})
	}
}

func TestRecoveryWrongCodeKeepsPassword(t *testing.T) {
	rf := newRecoveryFixture(t)
	code := rf.request(t)

	wrong := "000000"
	require.NotEqual(t, code, wrong)
	res, err := rf.recovery.Redeem(rf.ctx, adminEmail, wrong, "pw2")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, identity.MsgInvalidCode, res.Message)
	assert.True(t, rf.passwordWorks("pw1"))
	assert.False(t, rf.passwordWorks("pw2"))
}

func TestRecoverySoftFailures(t *testing.T) {
	rf := newRecoveryFixture(t)

	res, err := rf.recovery.RequestCode(rf.ctx, "  ")
	require.NoError(t, err)
	assert.Equal(t, identity.RecoveryResult{Message: identity.MsgEnterEmail}, res)

	res, err = rf.recovery.RequestCode(rf.ctx, "ghost@emis.test")
	require.NoError(t, err)
	assert.Equal(t, identity.RecoveryResult{Message: identity.MsgUserNotFound}, res)

	res, err = rf.recovery.Redeem(rf.ctx, adminEmail, "", "pw2")
	require.NoError(t, err)
	assert.Equal(t, identity.MsgEnterAllFields, res.Message)

	res, err = rf.recovery.Redeem(rf.ctx, "ghost@emis.test", "123456", "pw2")
	require.NoError(t, err)
	assert.Equal(t, identity.MsgUserNotFound, res.Message)

	// no code issued yet
	res, err = rf.recovery.Redeem(rf.ctx, adminEmail, "123456", "pw2")
	require.NoError(t, err)
	assert.Equal(t, identity.MsgInvalidCode, res.Message)
}

func TestRecoverySendFailure(t *testing.T) {
	rf := newRecoveryFixture(t)
	rf.sender.EXPECT().Send(gomock.Any(), gomock.Any()).Return(errors.New("relay down"))

	res, err := rf.recovery.RequestCode(rf.ctx, adminEmail)
	require.Error(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "relay down")
}

func TestSixDigitCode(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := identity.SixDigitCode()
		require.NoError(t, err)
		require.Len(t, code, 6)
		assert.NotEqual(t, byte('0'), code[0])
	}
}
