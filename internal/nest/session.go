package nest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/nerrad567/gray-logic-nest/internal/infrastructure/config"
)

const (
	defaultCacheTTL       = 25 * time.Second
	defaultRequestTimeout = 10 * time.Second
	maxRedirects          = 10
	maxErrorBody          = 512
)

// Config holds what a Session needs to reach the API.
type Config struct {
	ClientID       string
	ClientSecret   string
	TokenCacheFile string
	CacheTTL       time.Duration
	APIURL         string
	AuthorizeURL   string
	TokenURL       string
	Timeout        time.Duration
}

// ConfigFrom builds a session Config from the application config.
func ConfigFrom(cfg config.NestConfig) Config {
	return Config{
		ClientID:       cfg.ClientID,
		ClientSecret:   cfg.ClientSecret,
		TokenCacheFile: cfg.TokenCacheFile,
		CacheTTL:       time.Duration(cfg.CacheTTL) * time.Second,
		APIURL:         cfg.APIURL,
		AuthorizeURL:   cfg.AuthorizeURL,
		TokenURL:       cfg.TokenURL,
		Timeout:        time.Duration(cfg.RequestTimeout) * time.Second,
	}
}

// Session is an authenticated view of one Nest account.
//
// Reads are served from a snapshot of the root document that is reused for
// CacheTTL; every mutation invalidates it so the next read sees the change.
//
// Thread Safety: all methods are safe for concurrent use.
type Session struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	oauth      *oauth2.Config

	tokenMu sync.RWMutex
	token   *oauth2.Token

	cacheMu   sync.Mutex
	cached    *snapshot
	fetchedAt time.Time

	now func() time.Time
}

// NewSession creates a session and loads any cached token.
// A session without a token is valid; AuthorizationRequired reports it.
func NewSession(cfg Config) (*Session, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: client_id and client_secret are required", ErrInvalidConfig)
	}
	if cfg.APIURL == "" {
		return nil, fmt.Errorf("%w: api_url is required", ErrInvalidConfig)
	}
	if cfg.CacheTTL < 0 {
		cfg.CacheTTL = 0
	} else if cfg.CacheTTL == 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRequestTimeout
	}

	tok, err := loadToken(cfg.TokenCacheFile)
	if err != nil {
		return nil, err
	}

	s := &Session{
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.APIURL, "/"),
		oauth:   oauthConfig(cfg),
		token:   tok,
		now:     time.Now,
	}
	s.httpClient = &http.Client{
		Timeout:       cfg.Timeout,
		CheckRedirect: s.keepAuthorization,
	}
	return s, nil
}

// keepAuthorization re-applies the bearer token on redirects; the API
// answers 307 with a per-account host and net/http drops the header
// when the host changes.
func (s *Session) keepAuthorization(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	if auth := via[0].Header.Get("Authorization"); auth != "" {
		req.Header.Set("Authorization", auth)
	}
	return nil
}

// Structures returns every structure on the account ordered by ID.
func (s *Session) Structures(ctx context.Context) ([]Structure, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.sortedStructures(), nil
}

// Structure returns one structure by ID.
func (s *Session) Structure(ctx context.Context, id string) (Structure, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return Structure{}, err
	}
	st, ok := snap.structures[id]
	if !ok {
		return Structure{}, fmt.Errorf("%w: structure %s", ErrNotFound, id)
	}
	return st, nil
}

// StructureThermostats returns the thermostats of one structure.
func (s *Session) StructureThermostats(ctx context.Context, structureID string) ([]Thermostat, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := snap.structures[structureID]; !ok {
		return nil, fmt.Errorf("%w: structure %s", ErrNotFound, structureID)
	}
	return snap.thermostatsIn(structureID), nil
}

// Thermostat returns one thermostat by device ID.
func (s *Session) Thermostat(ctx context.Context, deviceID string) (Thermostat, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return Thermostat{}, err
	}
	t, ok := snap.thermostats[deviceID]
	if !ok {
		return Thermostat{}, fmt.Errorf("%w: thermostat %s", ErrNotFound, deviceID)
	}
	return t, nil
}

// SetAway sets the structure's away state.
func (s *Session) SetAway(ctx context.Context, structureID string, away bool) error {
	value := AwayHome
	if away {
		value = AwayAway
	}
	return s.put(ctx, "/structures/"+url.PathEscape(structureID), map[string]any{"away": value})
}

// SetMode sets the thermostat's HVAC mode.
func (s *Session) SetMode(ctx context.Context, deviceID, mode string) error {
	return s.put(ctx, thermostatPath(deviceID), map[string]any{"hvac_mode": mode})
}

// SetFan turns the fan timer on or off.
func (s *Session) SetFan(ctx context.Context, deviceID string, on bool) error {
	return s.put(ctx, thermostatPath(deviceID), map[string]any{"fan_timer_active": on})
}

// SetTarget sets the single target temperature in the thermostat's own scale.
func (s *Session) SetTarget(ctx context.Context, deviceID string, value float64) error {
	scale, err := s.scaleSuffix(ctx, deviceID)
	if err != nil {
		return err
	}
	return s.put(ctx, thermostatPath(deviceID), map[string]any{"target_temperature_" + scale: value})
}

// SetTargetRange sets the heat-cool low/high pair in the thermostat's own scale.
func (s *Session) SetTargetRange(ctx context.Context, deviceID string, low, high float64) error {
	scale, err := s.scaleSuffix(ctx, deviceID)
	if err != nil {
		return err
	}
	return s.put(ctx, thermostatPath(deviceID), map[string]any{
		"target_temperature_low_" + scale:  low,
		"target_temperature_high_" + scale: high,
	})
}

// Invalidate drops the cached snapshot.
func (s *Session) Invalidate() {
	s.cacheMu.Lock()
	s.cached = nil
	s.cacheMu.Unlock()
}

func thermostatPath(deviceID string) string {
	return "/devices/thermostats/" + url.PathEscape(deviceID)
}

func (s *Session) scaleSuffix(ctx context.Context, deviceID string) (string, error) {
	t, err := s.Thermostat(ctx, deviceID)
	if err != nil {
		return "", err
	}
	if t.Celsius() {
		return "c", nil
	}
	return "f", nil
}

// snapshot returns the cached root document, fetching it when stale.
func (s *Session) snapshot(ctx context.Context) (*snapshot, error) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	if s.cached != nil && s.now().Sub(s.fetchedAt) < s.cfg.CacheTTL {
		return s.cached, nil
	}

	body, err := s.do(ctx, http.MethodGet, "/", nil)
	if err != nil {
		return nil, err
	}
	snap, err := decodeSnapshot(body)
	if err != nil {
		return nil, err
	}
	s.cached = snap
	s.fetchedAt = s.now()
	return snap, nil
}

func (s *Session) put(ctx context.Context, path string, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s payload: %w", path, err)
	}
	_, err = s.do(ctx, http.MethodPut, path, data)
	s.Invalidate()
	return err
}

// do performs one authenticated request and classifies failures.
func (s *Session) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	token, err := s.accessToken()
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("building %s %s: %w", method, path, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(data))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return nil, &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: msg}
	}
	return data, nil
}

// classifyTransportError marks connection failures and timeouts transient.
// Caller cancellation is passed through unclassified.
func classifyTransportError(method, path string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.Canceled) && !errors.As(err, &netErr) {
		return fmt.Errorf("nest: %s %s: %w", method, path, err)
	}
	return fmt.Errorf("%w: %s %s: %w", ErrTransient, method, path, err)
}
