package nest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	nestapi "github.com/nerrad567/gray-logic-nest/internal/nest"
)

// RemoteSession is the view of the Nest account used by the bridge.
// *nestapi.Session satisfies it.
type RemoteSession interface {
	Structures(ctx context.Context) ([]nestapi.Structure, error)
	Structure(ctx context.Context, id string) (nestapi.Structure, error)
	StructureThermostats(ctx context.Context, structureID string) ([]nestapi.Thermostat, error)
	Thermostat(ctx context.Context, deviceID string) (nestapi.Thermostat, error)

	SetAway(ctx context.Context, structureID string, away bool) error
	SetMode(ctx context.Context, deviceID, mode string) error
	SetFan(ctx context.Context, deviceID string, on bool) error
	SetTarget(ctx context.Context, deviceID string, value float64) error
	SetTargetRange(ctx context.Context, deviceID string, low, high float64) error
}

// Dialer builds a fresh session from the configured credentials and token cache.
type Dialer func(ctx context.Context) (RemoteSession, error)

// SessionHolder owns the session shared by every unit and replaces it on
// reconnect. Concurrent reconnects collapse into one dial.
type SessionHolder struct {
	mu      sync.RWMutex
	current RemoteSession
	dial    Dialer

	group      singleflight.Group
	reconnects atomic.Uint64
}

// NewSessionHolder wraps an initial session. dial may be nil, in which case
// Reconnect fails.
func NewSessionHolder(initial RemoteSession, dial Dialer) *SessionHolder {
	return &SessionHolder{current: initial, dial: dial}
}

// Current returns the session in use. Fetch it at the start of each remote
// call; do not hold it across the connectivity guard.
func (h *SessionHolder) Current() RemoteSession {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Reconnect dials a new session and installs it for every unit.
func (h *SessionHolder) Reconnect(ctx context.Context) (RemoteSession, error) {
	v, err, _ := h.group.Do("reconnect", func() (any, error) {
		if h.dial == nil {
			return nil, errors.New("no session dialer configured")
		}
		s, err := h.dial(ctx)
		if err != nil {
			return nil, fmt.Errorf("re-establishing session: %w", err)
		}
		h.mu.Lock()
		h.current = s
		h.mu.Unlock()
		h.reconnects.Add(1)
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	s, _ := v.(RemoteSession)
	return s, nil
}

// Reconnects returns how many sessions have been re-established.
func (h *SessionHolder) Reconnects() uint64 {
	return h.reconnects.Load()
}

// isTransient reports failures the guard absorbs.
func isTransient(err error) bool {
	return errors.Is(err, nestapi.ErrTransient) || errors.Is(err, nestapi.ErrMalformedResponse)
}
