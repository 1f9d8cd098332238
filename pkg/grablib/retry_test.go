package grablib

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

func TestBackoffBounds(t *testing.T) {
	p := DefaultRetryPolicy()
	for attempt := 1; attempt <= 8; attempt++ {
		for i := 0; i < 20; i++ {
			d := p.Backoff(attempt)
			exp := time.Duration(int64(1)<<uint(attempt)) * p.BaseDelay
			lo := time.Duration(float64(exp) * 0.8)
			hi := time.Duration(float64(exp) * 1.2)
			if hi > p.MaxDelay {
				hi = p.MaxDelay
			}
			if lo > p.MaxDelay {
				lo = p.MaxDelay
			}
			if d < lo || d > hi {
				t.Fatalf("Backoff(%d) = %v, want within [%v, %v]", attempt, d, lo, hi)
			}
		}
	}
}

func TestBackoffCapped(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 10, BaseDelay: time.Second, MaxDelay: 60 * time.Second}
	for i := 0; i < 50; i++ {
		if d := p.Backoff(10); d > p.MaxDelay {
			t.Fatalf("Backoff(10) = %v exceeds cap %v", d, p.MaxDelay)
		}
	}
}

func TestRunRetriesTransient(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}
	calls := 0
	err := p.Run(context.Background(), func() error {
		calls++
		if calls < 3 {
			return &NetworkError{Op: "fetch", Code: 500}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run returned %v, want nil", err)
	}
	if calls != 3 {
		t.Errorf("op called %d times, want 3", calls)
	}
}

func TestRunExhaustsBudget(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}
	calls := 0
	wantErr := &NetworkError{Op: "fetch", Code: 503}
	err := p.Run(context.Background(), func() error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Run returned %v, want %v", err, wantErr)
	}
	if calls != 3 {
		t.Errorf("op called %d times, want 3", calls)
	}
}

func TestRunTerminalErrorStops(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}
	calls := 0
	err := p.Run(context.Background(), func() error {
		calls++
		return ErrNotFound
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Run returned %v, want ErrNotFound", err)
	}
	if calls != 1 {
		t.Errorf("op called %d times, want 1", calls)
	}
}

func TestRunContextCancelled(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: time.Second}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Run(ctx, func() error {
		return &NetworkError{Op: "fetch", Code: 500}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"context canceled", context.Canceled, false},
		{"not found", ErrNotFound, false},
		{"forbidden", ErrForbidden, false},
		{"network error", &NetworkError{Op: "fetch", Code: 502}, true},
		{"eof", io.EOF, true},
		{"unexpected eof", io.ErrUnexpectedEOF, true},
		{"connection reset", errors.New("read tcp: connection reset by peer"), true},
		{"unrelated", errors.New("invalid argument"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
