package models

import (
	"context"
	"time"

	"github.com/mediflow/cabinet_backend/config"
	"github.com/mediflow/cabinet_backend/utils"
	"github.com/sirupsen/logrus"
)

// retryPolicy bounds retries of link-store writes that hit a transient
// store conflict, typically a just-created parent row not yet visible
// to a downstream check. Delays grow linearly: attempt x baseDelay.
// Non-transient errors abort on the spot; exhaustion surfaces the last
// conflict error.
type retryPolicy struct {
	attempts     int
	baseDelay    time.Duration
	initialDelay time.Duration
}

// defaultRetryPolicy matches the store's observed settle behavior:
// 1s, 2s, 3s between attempts, and a 500ms settle pause before the
// first attempt when the parent entity was created in this request.
var defaultRetryPolicy = retryPolicy{
	attempts:     3,
	baseDelay:    time.Second,
	initialDelay: 500 * time.Millisecond,
}

// run executes fn under the policy. parentJustCreated inserts the
// initial settle delay. Once started, a retry sequence runs to
// completion or exhaustion; ctx is passed through to fn for store
// calls but does not cancel the delays.
func (p retryPolicy) run(ctx context.Context, op string, parentJustCreated bool, fn func(ctx context.Context) error) error {
	logger := config.GetLogger()

	if parentJustCreated && p.initialDelay > 0 {
		time.Sleep(p.initialDelay)
	}

	var lastErr error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !utils.IsTransientConflict(lastErr) {
			return lastErr
		}

		logger.WithFields(logrus.Fields{
			"op":      op,
			"attempt": attempt,
			"of":      p.attempts,
		}).Warn("transient conflict: " + lastErr.Error())

		if attempt < p.attempts {
			time.Sleep(time.Duration(attempt) * p.baseDelay)
		}
	}
	return lastErr
}
