package mail_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"emis/internal/mail"
	"emis/internal/mocks"
	"emis/internal/queue"
)

var quiet = slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

func TestQueueSenderFeedsDeliver(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockSender(ctrl)

	q := queue.NewInMemory(4)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	want := mail.Message{From: "noreply@emis.test", To: "root@emis.test", Subject: "Password Reset OTP", Text: "code"}
	delivered := make(chan struct{})
	gomock.InOrder(
		sink.EXPECT().Send(gomock.Any(), mail.Message{To: "first@emis.test"}).Return(errors.New("mailbox full")),
		sink.EXPECT().Send(gomock.Any(), want).DoAndReturn(func(context.Context, mail.Message) error {
			close(delivered)
			return nil
		}),
	)

	done := make(chan error, 1)
	go func() { done <- mail.Deliver(ctx, q, sink, quiet) }()

	sender := mail.NewQueueSender(q)
	require.NoError(t, sender.Send(ctx, mail.Message{To: "first@emis.test"}))
	require.NoError(t, q.Publish(ctx, queue.Job{Kind: "other"}))
	require.NoError(t, sender.Send(ctx, want))

	select {
	case <-delivered:
	case <-ctx.Done():
		t.Fatal("message not delivered")
	}
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestSendersRequireRecipient(t *testing.T) {
	ctx := context.Background()
	assert.ErrorIs(t, mail.NewQueueSender(queue.NewInMemory(1)).Send(ctx, mail.Message{}), mail.ErrNoRecipient)
	assert.ErrorIs(t, mail.NewLogSender(quiet).Send(ctx, mail.Message{}), mail.ErrNoRecipient)

	smtp, err := mail.NewSMTPSender(mail.SMTPConfig{Host: "localhost", Port: 2525})
	require.NoError(t, err)
	assert.ErrorIs(t, smtp.Send(ctx, mail.Message{From: "a@b.test"}), mail.ErrNoRecipient)
}

func TestLogSenderWritesMessage(t *testing.T) {
	var buf bytes.Buffer
	s := mail.NewLogSender(slog.New(slog.NewJSONHandler(&buf, nil)))
	require.NoError(t, s.Send(context.Background(), mail.Message{To: "root@emis.test", Subject: "Password Reset OTP", Text: "OTP 123456"}))
	assert.Contains(t, buf.String(), "root@emis.test")
	assert.Contains(t, buf.String(), "OTP 123456")
}

func TestSMTPSenderRejectsBadAddress(t *testing.T) {
	smtp, err := mail.NewSMTPSender(mail.SMTPConfig{Host: "localhost", Port: 2525, Username: "u", Password: "p"})
	require.NoError(t, err)
	err = smtp.Send(context.Background(), mail.Message{From: "not an address", To: "root@emis.test"})
	assert.Error(t, err)
}
