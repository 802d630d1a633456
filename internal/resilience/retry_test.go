package resilience

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/scribeflow/platform/internal/errors"
)

func TestDoValueSucceedsFirst(t *testing.T) {
	calls := 0
	v, err := DoValue(context.Background(), DefaultPolicy(), func(context.Context) (string, error) {
		calls++
		return "ok", nil
	})

	if err != nil {
		t.Errorf("DoValue() error = %v, want nil", err)
	}
	if v != "ok" {
		t.Errorf("DoValue() = %q, want %q", v, "ok")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoValueSucceedsOnFinalAttempt(t *testing.T) {
	p := Policy{MaxAttempts: 3, BackoffBase: time.Millisecond}
	calls := 0
	v, err := DoValue(context.Background(), p, func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New(errors.CodeTransport, "transient")
		}
		return 42, nil
	})

	if err != nil {
		t.Errorf("DoValue() error = %v, want nil", err)
	}
	if v != 42 {
		t.Errorf("DoValue() = %d, want 42", v)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want exactly 3", calls)
	}
}

func TestDoValueExhaustsAttempts(t *testing.T) {
	p := Policy{MaxAttempts: 3, BackoffBase: time.Millisecond}
	calls := 0

	_, err := DoValue(context.Background(), p, func(context.Context) (int, error) {
		calls++
		return 0, errors.New(errors.CodeRateLimit, "throttled")
	})

	if err == nil {
		t.Fatal("DoValue() error = nil, want error after exhaustion")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if errors.CodeOf(err) != errors.CodeRateLimit {
		t.Errorf("code = %v, want CodeRateLimit preserved", errors.CodeOf(err))
	}

	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		t.Fatal("terminal error should be an AppError")
	}
	if appErr.Metadata["attempts"] != "3" {
		t.Errorf("attempts metadata = %q, want 3", appErr.Metadata["attempts"])
	}
}

func TestDoValueSingleAttempt(t *testing.T) {
	p := Policy{MaxAttempts: 1, BackoffBase: time.Hour} // backoff must never apply
	calls := 0
	start := time.Now()

	_, err := DoValue(context.Background(), p, func(context.Context) (int, error) {
		calls++
		return 0, errors.New(errors.CodeTransport, "down")
	})

	if err == nil {
		t.Error("DoValue() error = nil, want error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if time.Since(start) > time.Second {
		t.Error("no backoff should be applied after the final attempt")
	}
}

func TestDoValueLinearBackoff(t *testing.T) {
	p := Policy{MaxAttempts: 3, BackoffBase: 20 * time.Millisecond}
	start := time.Now()

	_, _ = DoValue(context.Background(), p, func(context.Context) (int, error) {
		return 0, errors.New(errors.CodeTransport, "down")
	})

	// Waits are base*1 then base*2 = 60ms total.
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("elapsed = %v, want >= 60ms of linear backoff", elapsed)
	}
}

func TestDoValueContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 5, BackoffBase: 100 * time.Millisecond}

	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	_, err := DoValue(ctx, p, func(context.Context) (int, error) {
		return 0, errors.New(errors.CodeTransport, "down")
	})

	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("DoValue() error = %v, want context.Canceled", err)
	}
}

func TestDoWrapsVoidTask(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{MaxAttempts: 2, BackoffBase: time.Millisecond}, func(context.Context) error {
		calls++
		if calls == 1 {
			return errors.New(errors.CodeFormat, "bad shape")
		}
		return nil
	})

	if err != nil {
		t.Errorf("Do() error = %v, want nil", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestPolicyClamped(t *testing.T) {
	p := Policy{MaxAttempts: 99, BackoffBase: time.Millisecond}.withDefaults()
	if p.MaxAttempts != MaxAttempts {
		t.Errorf("MaxAttempts = %d, want clamped to %d", p.MaxAttempts, MaxAttempts)
	}

	p = Policy{MaxAttempts: 0}.withDefaults()
	if p.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("MaxAttempts = %d, want default %d", p.MaxAttempts, DefaultMaxAttempts)
	}
}
