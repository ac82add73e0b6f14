package nest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	nestapi "github.com/nerrad567/gray-logic-nest/internal/nest"
)

func TestSessionHolder_ReconnectCollapses(t *testing.T) {
	fresh := newFakeSession()
	var dials atomic.Int32
	release := make(chan struct{})

	holder := NewSessionHolder(newFakeSession(), func(context.Context) (RemoteSession, error) {
		dials.Add(1)
		<-release
		return fresh, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := holder.Reconnect(context.Background()); err != nil {
				t.Errorf("Reconnect() error = %v", err)
			}
		}()
	}

	// Let the callers pile up behind the first dial.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := dials.Load(); n != 1 {
		t.Errorf("dials = %d, want 1", n)
	}
	if holder.Current() != fresh {
		t.Error("Current() should return the new session")
	}
	if holder.Reconnects() != 1 {
		t.Errorf("Reconnects() = %d, want 1", holder.Reconnects())
	}
}

func TestSessionHolder_ReconnectErrors(t *testing.T) {
	initial := newFakeSession()

	holder := NewSessionHolder(initial, nil)
	if _, err := holder.Reconnect(context.Background()); err == nil {
		t.Error("Reconnect() without dialer should fail")
	}

	holder = NewSessionHolder(initial, func(context.Context) (RemoteSession, error) {
		return nil, errors.New("token expired")
	})
	if _, err := holder.Reconnect(context.Background()); err == nil {
		t.Error("Reconnect() should return the dial error")
	}
	if holder.Current() != initial || holder.Reconnects() != 0 {
		t.Error("failed reconnect must keep the old session")
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{fmt.Errorf("get: %w", nestapi.ErrTransient), true},
		{fmt.Errorf("decode: %w", nestapi.ErrMalformedResponse), true},
		{&nestapi.StatusError{Code: 500}, true},
		{nestapi.ErrNotFound, false},
		{nestapi.ErrAuthorizationRequired, false},
		{errors.New("other"), false},
	}

	for _, tt := range tests {
		if got := isTransient(tt.err); got != tt.want {
			t.Errorf("isTransient(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
