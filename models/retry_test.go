package models

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mediflow/cabinet_backend/utils"
)

func testPolicy() retryPolicy {
	return retryPolicy{attempts: 3, baseDelay: time.Millisecond, initialDelay: 0}
}

func TestRetryRun_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := testPolicy().run(context.Background(), "test", false, func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call; got %d", calls)
	}
}

func TestRetryRun_SucceedsOnThirdAttempt(t *testing.T) {
	calls := 0
	err := testPolicy().run(context.Background(), "test", false, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return utils.NewTransientConflictError("test", errors.New("deadlock"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success on third attempt: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls; got %d", calls)
	}
}

func TestRetryRun_NonTransientAbortsImmediately(t *testing.T) {
	calls := 0
	wantErr := utils.NewValidationError("act_id", "is required")
	err := testPolicy().run(context.Background(), "test", false, func(ctx context.Context) error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) && err != wantErr {
		t.Fatalf("expected the validation error back; got %v", err)
	}
	if calls != 1 {
		t.Fatalf("non-transient error must not retry; got %d calls", calls)
	}
}

func TestRetryRun_ExhaustionReturnsLastError(t *testing.T) {
	calls := 0
	err := testPolicy().run(context.Background(), "test", false, func(ctx context.Context) error {
		calls++
		return utils.NewTransientConflictError("test", errors.New("lock wait timeout"))
	})
	if err == nil {
		t.Fatal("expected error after exhaustion")
	}
	if !utils.IsTransientConflict(err) {
		t.Fatalf("expected transient conflict error; got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts; got %d", calls)
	}
}

func TestRetryRun_SettleDelayOnlyForFreshParents(t *testing.T) {
	policy := retryPolicy{attempts: 1, baseDelay: 0, initialDelay: 30 * time.Millisecond}

	start := time.Now()
	_ = policy.run(context.Background(), "test", true, func(ctx context.Context) error { return nil })
	if elapsed := time.Since(start); elapsed < policy.initialDelay {
		t.Fatalf("expected settle delay before first attempt; elapsed %s", elapsed)
	}

	start = time.Now()
	_ = policy.run(context.Background(), "test", false, func(ctx context.Context) error { return nil })
	if elapsed := time.Since(start); elapsed >= policy.initialDelay {
		t.Fatalf("no settle delay expected without a fresh parent; elapsed %s", elapsed)
	}
}
