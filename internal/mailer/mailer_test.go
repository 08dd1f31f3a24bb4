package mailer

import (
	"context"
	"net"
	"net/textproto"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yakoovad/hackathon-registration/internal/config"
	"go.uber.org/zap"
)

func TestMailer_Unconfigured(t *testing.T) {
	m := New(config.Config{})

	assert.False(t, m.Configured())

	err := m.SendOTP(context.Background(), "a@x.io", "424242")
	assert.ErrorIs(t, err, ErrUnconfigured)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "recipient refused",
			err:  &textproto.Error{Code: 550, Msg: "no such user"},
			want: ErrRejected,
		},
		{
			name: "auth failed",
			err:  &textproto.Error{Code: 535, Msg: "authentication credentials invalid"},
			want: ErrRejected,
		},
		{
			name: "transient smtp",
			err:  &textproto.Error{Code: 421, Msg: "service not available"},
			want: ErrTransport,
		},
		{
			name: "dial timeout",
			err:  &net.DNSError{Err: "timeout", IsTimeout: true},
			want: ErrTransport,
		},
		{
			name: "plain dial failure",
			err:  errors.New("dial tcp: connection refused"),
			want: ErrTransport,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, classify(tt.err), tt.want)
		})
	}
}

func TestDispatcher_FirstAttemptResult(t *testing.T) {
	d := NewDispatcher(zap.NewNop())
	defer d.Close()

	first := d.Dispatch("test", func(ctx context.Context) error {
		return nil
	})

	select {
	case err := <-first:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("no first-attempt result")
	}
}

func TestDispatcher_RetriesTransportFailures(t *testing.T) {
	d := NewDispatcher(zap.NewNop())
	d.backoff = time.Millisecond

	var calls atomic.Int32
	d.Dispatch("test", func(ctx context.Context) error {
		if calls.Add(1) < 3 {
			return errors.Wrap(ErrTransport, "connection refused")
		}
		return nil
	})

	require.Eventually(t, func() bool { return calls.Load() == 3 },
		time.Second, 5*time.Millisecond)
	d.Close()
}

func TestDispatcher_DoesNotRetryRejections(t *testing.T) {
	d := NewDispatcher(zap.NewNop())
	d.backoff = time.Millisecond

	var calls atomic.Int32
	first := d.Dispatch("test", func(ctx context.Context) error {
		calls.Add(1)
		return errors.Wrap(ErrRejected, "no such user")
	})

	err := <-first
	require.Error(t, err)

	d.Close()
	assert.Equal(t, int32(1), calls.Load())
}

func TestDispatcher_GivesUpAfterBudget(t *testing.T) {
	d := NewDispatcher(zap.NewNop())
	d.backoff = time.Millisecond

	var calls atomic.Int32
	d.Dispatch("test", func(ctx context.Context) error {
		calls.Add(1)
		return errors.Wrap(ErrTransport, "connection refused")
	})

	require.Eventually(t, func() bool { return calls.Load() == maxAttempts },
		time.Second, 5*time.Millisecond)
	d.Close()
	assert.Equal(t, int32(maxAttempts), calls.Load())
}
