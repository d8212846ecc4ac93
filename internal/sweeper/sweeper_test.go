package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/eidcore/authsteps/internal/test"
)

func TestSweeper_RunSweepsOnInterval(t *testing.T) {
	swept := make(chan struct{}, 10)
	tokens := &test.TokenService{
		CheckExpirationFn: func() (int64, error) {
			swept <- struct{}{}
			return 3, nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New(tokens, WithInterval(time.Millisecond*10))
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx)
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-swept:
		case <-time.After(time.Second):
			t.Fatal("sweep did not run")
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Error("incorrect shutdown error:", err)
		}
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on cancellation")
	}
}

func TestSweeper_RunSurvivesSweepFailure(t *testing.T) {
	swept := make(chan struct{}, 10)
	tokens := &test.TokenService{
		CheckExpirationFn: func() (int64, error) {
			swept <- struct{}{}
			return 0, errors.New("store unavailable")
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New(tokens, WithInterval(time.Millisecond*10))
	go func() {
		_ = s.Run(ctx)
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-swept:
		case <-time.After(time.Second):
			t.Fatal("sweeper stopped after a failed sweep")
		}
	}
}
