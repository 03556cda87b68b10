package supervisor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	logx "github.com/Mantene/tdf-alerts/pkg/logx"
)

func TestWaitReturnsFirstError(t *testing.T) {
	t.Parallel()

	s := New(context.Background())
	boom := errors.New("boom")
	s.Go("worker", func(ctx context.Context) error { return boom })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := s.Wait(ctx)
	if !errors.Is(err, boom) {
		t.Fatalf("Wait() = %v, want wrapped %v", err, boom)
	}
	if !strings.Contains(err.Error(), "worker") {
		t.Errorf("error should carry goroutine name, got %v", err)
	}
}

func TestPanicIsRecovered(t *testing.T) {
	t.Parallel()

	s := New(context.Background(), WithLogger(logx.Nop()))
	s.Go("bad", func(ctx context.Context) error { panic("kaput") })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := s.Wait(ctx)
	if err == nil {
		t.Fatal("expected panic to surface as error")
	}
	if !strings.Contains(err.Error(), "kaput") {
		t.Errorf("error should carry panic value, got %v", err)
	}
}

func TestCancelOnError(t *testing.T) {
	t.Parallel()

	s := New(context.Background(), WithCancelOnError(true))
	s.Go("failing", func(ctx context.Context) error { return errors.New("dead") })
	s.Go("blocked", func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err == nil {
		t.Fatal("expected first error to be recorded")
	}
}

func TestCanceledIsCleanExit(t *testing.T) {
	t.Parallel()

	s := New(context.Background())
	s.Go0("sleeper", func(ctx context.Context) { <-ctx.Done() })
	s.Cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("Wait() after clean cancel = %v, want nil", err)
	}
}

func TestStopWaits(t *testing.T) {
	t.Parallel()

	s := New(context.Background())
	done := make(chan struct{})
	s.Go("worker", func(ctx context.Context) error {
		<-ctx.Done()
		close(done)
		return ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop() = %v", err)
	}
	select {
	case <-done:
	default:
		t.Error("Stop returned before goroutine exited")
	}
}
