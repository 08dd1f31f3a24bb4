package mailer

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	maxAttempts = 3
	baseBackoff = 5 * time.Second
)

// Dispatcher owns the only background work in the system: retrying mail
// sends that the HTTP path could not wait for. Transport failures are
// retried with backoff; rejections are final.
type Dispatcher struct {
	logger  *zap.Logger
	backoff time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewDispatcher(logger *zap.Logger) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		logger:  logger,
		backoff: baseBackoff,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Dispatch starts the send in the background and returns a channel carrying
// the first attempt's result, so callers can wait briefly for a fast
// success and fall back to provisional success when delivery is slow.
func (d *Dispatcher) Dispatch(label string, send func(ctx context.Context) error) <-chan error {
	first := make(chan error, 1)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		for attempt := 1; attempt <= maxAttempts; attempt++ {
			err := send(d.ctx)
			if attempt == 1 {
				first <- err
			}
			if err == nil {
				if attempt > 1 {
					d.logger.Info("mail delivered after retry",
						zap.String("mail", label),
						zap.Int("attempt", attempt))
				}
				return
			}
			if !errors.Is(err, ErrTransport) {
				d.logger.Error("mail delivery failed permanently",
					zap.String("mail", label),
					zap.Error(err))
				return
			}

			d.logger.Warn("mail transport failed",
				zap.String("mail", label),
				zap.Int("attempt", attempt),
				zap.Error(err))

			if attempt == maxAttempts {
				return
			}
			select {
			case <-d.ctx.Done():
				return
			case <-time.After(d.backoff * time.Duration(attempt)):
			}
		}
	}()

	return first
}

// Close stops retries and waits for in-flight sends to finish.
func (d *Dispatcher) Close() {
	d.cancel()
	d.wg.Wait()
}
