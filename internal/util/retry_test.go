package util

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  4,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	}
}

func TestRetryFirstTrySucceeds(t *testing.T) {
	calls := 0
	result, err := Retry(context.Background(), fastRetryConfig(), func() (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if result != "ok" {
		t.Errorf("result = %q, want %q", result, "ok")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryClearsAfterContention(t *testing.T) {
	calls := 0
	result, err := Retry(context.Background(), fastRetryConfig(), func() (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("database is locked")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if result != "ok" {
		t.Errorf("result = %q, want %q", result, "ok")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	cfg := fastRetryConfig()
	cfg.MaxAttempts = 2

	_, err := Retry(context.Background(), cfg, func() (string, error) {
		calls++
		return "", errors.New("database is locked")
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), fastRetryConfig(), func() (string, error) {
		calls++
		return "", errors.New("no such table: records")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (permanent errors do not retry)", calls)
	}
}

func TestRetryHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := Retry(ctx, fastRetryConfig(), func() (string, error) {
		calls++
		return "ok", nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls != 0 {
		t.Errorf("calls = %d, want 0", calls)
	}
}

func TestIsBusy(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"sqlite write lock", errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{"flock holder", errors.New("registry locked by another process"), true},
		{"eagain", errors.New("resource temporarily unavailable"), true},
		{"fd pressure", errors.New("open /tmp/x: too many open files"), true},
		{"case insensitive", errors.New("DATABASE IS LOCKED"), true},
		{"missing file", errors.New("open capsule.db: no such file or directory"), false},
		{"schema error", errors.New("no such table: records"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBusy(tt.err); got != tt.want {
				t.Errorf("IsBusy(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRetryWithContext(t *testing.T) {
	result, err := RetryWithContext(context.Background(), func() (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("RetryWithContext: %v", err)
	}
	if result != 42 {
		t.Errorf("result = %d, want 42", result)
	}
}
