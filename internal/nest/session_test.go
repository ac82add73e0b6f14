package nest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

const rootDocument = `{
  "devices": {
    "thermostats": {
      "09AA01AC4316003F": {
        "device_id": "09AA01AC4316003F",
        "name": "Hallway",
        "structure_id": "s-home",
        "hvac_mode": "heat-cool",
        "temperature_scale": "F",
        "ambient_temperature_f": 70.4,
        "ambient_temperature_c": 21.5,
        "target_temperature_f": 70,
        "target_temperature_c": 21,
        "target_temperature_low_f": 68,
        "target_temperature_low_c": 20,
        "target_temperature_high_f": 72,
        "target_temperature_high_c": 22,
        "fan_timer_active": false,
        "humidity": 45,
        "hvac_state": "heating",
        "is_online": true
      },
      "09AA01AC4316004B": {
        "device_id": "09AA01AC4316004B",
        "name": "Loft",
        "structure_id": "s-home",
        "hvac_mode": "cool",
        "temperature_scale": "C",
        "ambient_temperature_f": 75,
        "ambient_temperature_c": 23.5,
        "target_temperature_f": 73,
        "target_temperature_c": 22.5,
        "fan_timer_active": true,
        "humidity": 50,
        "hvac_state": "cooling",
        "is_online": false
      }
    }
  },
  "structures": {
    "s-home": {
      "structure_id": "s-home",
      "name": "Home",
      "away": "away",
      "thermostats": ["09AA01AC4316003F", "09AA01AC4316004B"]
    },
    "s-cabin": {
      "structure_id": "s-cabin",
      "name": "Cabin",
      "away": "home"
    }
  }
}`

// fakeAPI is a minimal Nest API: GET / returns the root document, PUTs are recorded.
type fakeAPI struct {
	mu      sync.Mutex
	gets    int
	puts    []recordedPut
	status  int
	body    string
	authHdr []string
	server  *httptest.Server
}

type recordedPut struct {
	Path string
	Body map[string]any
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{status: http.StatusOK, body: rootDocument}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.authHdr = append(f.authHdr, r.Header.Get("Authorization"))

	switch r.Method {
	case http.MethodGet:
		f.gets++
		w.WriteHeader(f.status)
		_, _ = io.WriteString(w, f.body)
	case http.MethodPut:
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.puts = append(f.puts, recordedPut{Path: r.URL.Path, Body: body})
		w.WriteHeader(f.status)
		_, _ = io.WriteString(w, "{}")
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeAPI) getCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets
}

func (f *fakeAPI) authHeaders() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.authHdr...)
}

func (f *fakeAPI) lastPut(t *testing.T) recordedPut {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.puts) == 0 {
		t.Fatal("no PUT recorded")
	}
	return f.puts[len(f.puts)-1]
}

// writeTokenCache writes a cached token and returns its path.
func writeTokenCache(t *testing.T, access string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".nest_auth")
	data, err := json.Marshal(&oauth2.Token{AccessToken: access})
	if err != nil {
		t.Fatalf("marshal token: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write token cache: %v", err)
	}
	return path
}

func newTestSession(t *testing.T, apiURL string) *Session {
	t.Helper()
	s, err := NewSession(Config{
		ClientID:       "client",
		ClientSecret:   "secret",
		TokenCacheFile: writeTokenCache(t, "c.token"),
		CacheTTL:       25 * time.Second,
		APIURL:         apiURL,
		Timeout:        2 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	return s
}

func TestNewSession_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing client id", Config{ClientSecret: "s", APIURL: "http://x"}},
		{"missing secret", Config{ClientID: "c", APIURL: "http://x"}},
		{"missing api url", Config{ClientID: "c", ClientSecret: "s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSession(tt.cfg); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("NewSession() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestNewSession_CorruptTokenCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".nest_auth")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := NewSession(Config{ClientID: "c", ClientSecret: "s", APIURL: "http://x", TokenCacheFile: path})
	if err == nil {
		t.Fatal("NewSession() expected error for corrupt token cache")
	}
}

func TestSession_AuthorizationRequired(t *testing.T) {
	s, err := NewSession(Config{
		ClientID:       "client",
		ClientSecret:   "secret",
		TokenCacheFile: filepath.Join(t.TempDir(), "missing"),
		APIURL:         "http://127.0.0.1:1",
		AuthorizeURL:   "https://home.nest.com/login/oauth2",
	})
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	if !s.AuthorizationRequired() {
		t.Error("AuthorizationRequired() = false with empty cache")
	}
	if _, err := s.Structures(context.Background()); !errors.Is(err, ErrAuthorizationRequired) {
		t.Errorf("Structures() = %v, want ErrAuthorizationRequired", err)
	}

	u := s.AuthorizeURL()
	if !strings.HasPrefix(u, "https://home.nest.com/login/oauth2?") || !strings.Contains(u, "client_id=client") {
		t.Errorf("AuthorizeURL() = %q", u)
	}
}

func TestSession_RequestToken(t *testing.T) {
	var gotForm map[string]string
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		gotForm = map[string]string{
			"code":          r.PostForm.Get("code"),
			"grant_type":    r.PostForm.Get("grant_type"),
			"client_id":     r.PostForm.Get("client_id"),
			"client_secret": r.PostForm.Get("client_secret"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"c.fresh","expires_in":315360000}`)
	}))
	defer tokenServer.Close()

	cache := filepath.Join(t.TempDir(), "sub", ".nest_auth")
	cfg := Config{
		ClientID:       "client",
		ClientSecret:   "secret",
		TokenCacheFile: cache,
		APIURL:         "http://127.0.0.1:1",
		TokenURL:       tokenServer.URL,
	}
	s, err := NewSession(cfg)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}

	if err := s.RequestToken(context.Background(), ""); !errors.Is(err, ErrAuthorizationRequired) {
		t.Errorf("RequestToken(\"\") = %v, want ErrAuthorizationRequired", err)
	}
	if err := s.RequestToken(context.Background(), "PIN1234"); err != nil {
		t.Fatalf("RequestToken() error = %v", err)
	}
	if s.AuthorizationRequired() {
		t.Error("AuthorizationRequired() = true after RequestToken")
	}

	want := map[string]string{"code": "PIN1234", "grant_type": "authorization_code", "client_id": "client", "client_secret": "secret"}
	for k, v := range want {
		if gotForm[k] != v {
			t.Errorf("form[%s] = %q, want %q", k, gotForm[k], v)
		}
	}

	info, err := os.Stat(cache)
	if err != nil {
		t.Fatalf("token cache not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("token cache mode = %o, want 600", perm)
	}

	reloaded, err := NewSession(cfg)
	if err != nil {
		t.Fatalf("NewSession() reload error = %v", err)
	}
	if reloaded.AuthorizationRequired() {
		t.Error("reloaded session still requires authorization")
	}
}

func TestSession_Reads(t *testing.T) {
	api := newFakeAPI(t)
	s := newTestSession(t, api.server.URL)
	ctx := context.Background()

	structures, err := s.Structures(ctx)
	if err != nil {
		t.Fatalf("Structures() error = %v", err)
	}
	if len(structures) != 2 || structures[0].ID != "s-cabin" || structures[1].ID != "s-home" {
		t.Fatalf("Structures() = %+v, want [s-cabin s-home]", structures)
	}
	if !structures[1].IsAway() || structures[0].IsAway() {
		t.Error("IsAway() mismatch")
	}

	thermostats, err := s.StructureThermostats(ctx, "s-home")
	if err != nil {
		t.Fatalf("StructureThermostats() error = %v", err)
	}
	if len(thermostats) != 2 {
		t.Fatalf("StructureThermostats() len = %d, want 2", len(thermostats))
	}
	if empty, _ := s.StructureThermostats(ctx, "s-cabin"); len(empty) != 0 {
		t.Errorf("StructureThermostats(s-cabin) = %+v, want none", empty)
	}

	hall, err := s.Thermostat(ctx, "09AA01AC4316003F")
	if err != nil {
		t.Fatalf("Thermostat() error = %v", err)
	}
	if !hall.IsHeatCool() || hall.TargetLow != 68 || hall.TargetHigh != 72 || hall.Ambient != 70.4 {
		t.Errorf("Hallway = %+v", hall)
	}
	if hall.Humidity != 45 || hall.HVACState != HVACStateHeating || !hall.Online {
		t.Errorf("Hallway = %+v", hall)
	}

	loft, err := s.Thermostat(ctx, "09AA01AC4316004B")
	if err != nil {
		t.Fatalf("Thermostat() error = %v", err)
	}
	if loft.Target != 22.5 || loft.Ambient != 23.5 || !loft.FanTimerActive || loft.Online {
		t.Errorf("Loft (celsius) = %+v", loft)
	}

	if _, err := s.Thermostat(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Thermostat(nope) = %v, want ErrNotFound", err)
	}
	if _, err := s.Structure(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Structure(nope) = %v, want ErrNotFound", err)
	}

	if got := api.getCount(); got != 1 {
		t.Errorf("GET count = %d, want 1 (cached)", got)
	}
	if hdr := api.authHeaders(); hdr[0] != "Bearer c.token" {
		t.Errorf("Authorization = %q", hdr[0])
	}
}

func TestSession_CacheExpiryAndInvalidation(t *testing.T) {
	api := newFakeAPI(t)
	s := newTestSession(t, api.server.URL)
	ctx := context.Background()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	if _, err := s.Structures(ctx); err != nil {
		t.Fatal(err)
	}
	now = now.Add(24 * time.Second)
	if _, err := s.Structures(ctx); err != nil {
		t.Fatal(err)
	}
	if got := api.getCount(); got != 1 {
		t.Fatalf("GET count within TTL = %d, want 1", got)
	}

	now = now.Add(2 * time.Second)
	if _, err := s.Structures(ctx); err != nil {
		t.Fatal(err)
	}
	if got := api.getCount(); got != 2 {
		t.Fatalf("GET count after TTL = %d, want 2", got)
	}

	if err := s.SetMode(ctx, "09AA01AC4316003F", ModeHeat); err != nil {
		t.Fatalf("SetMode() error = %v", err)
	}
	if _, err := s.Structures(ctx); err != nil {
		t.Fatal(err)
	}
	if got := api.getCount(); got != 3 {
		t.Errorf("GET count after mutation = %d, want 3", got)
	}
}

func TestSession_Mutations(t *testing.T) {
	api := newFakeAPI(t)
	s := newTestSession(t, api.server.URL)
	ctx := context.Background()

	tests := []struct {
		name     string
		call     func() error
		wantPath string
		wantBody map[string]any
	}{
		{
			name:     "away",
			call:     func() error { return s.SetAway(ctx, "s-home", true) },
			wantPath: "/structures/s-home",
			wantBody: map[string]any{"away": "away"},
		},
		{
			name:     "home",
			call:     func() error { return s.SetAway(ctx, "s-home", false) },
			wantPath: "/structures/s-home",
			wantBody: map[string]any{"away": "home"},
		},
		{
			name:     "mode",
			call:     func() error { return s.SetMode(ctx, "09AA01AC4316003F", ModeCool) },
			wantPath: "/devices/thermostats/09AA01AC4316003F",
			wantBody: map[string]any{"hvac_mode": "cool"},
		},
		{
			name:     "fan",
			call:     func() error { return s.SetFan(ctx, "09AA01AC4316003F", true) },
			wantPath: "/devices/thermostats/09AA01AC4316003F",
			wantBody: map[string]any{"fan_timer_active": true},
		},
		{
			name:     "target fahrenheit",
			call:     func() error { return s.SetTarget(ctx, "09AA01AC4316003F", 71) },
			wantPath: "/devices/thermostats/09AA01AC4316003F",
			wantBody: map[string]any{"target_temperature_f": float64(71)},
		},
		{
			name:     "target celsius",
			call:     func() error { return s.SetTarget(ctx, "09AA01AC4316004B", 21) },
			wantPath: "/devices/thermostats/09AA01AC4316004B",
			wantBody: map[string]any{"target_temperature_c": float64(21)},
		},
		{
			name:     "range",
			call:     func() error { return s.SetTargetRange(ctx, "09AA01AC4316003F", 67, 73) },
			wantPath: "/devices/thermostats/09AA01AC4316003F",
			wantBody: map[string]any{"target_temperature_low_f": float64(67), "target_temperature_high_f": float64(73)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); err != nil {
				t.Fatalf("mutation error = %v", err)
			}
			put := api.lastPut(t)
			if put.Path != tt.wantPath {
				t.Errorf("path = %q, want %q", put.Path, tt.wantPath)
			}
			if len(put.Body) != len(tt.wantBody) {
				t.Errorf("body = %v, want %v", put.Body, tt.wantBody)
			}
			for k, v := range tt.wantBody {
				if put.Body[k] != v {
					t.Errorf("body[%s] = %v, want %v", k, put.Body[k], v)
				}
			}
		})
	}

	if err := s.SetTarget(ctx, "missing", 70); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetTarget(missing) = %v, want ErrNotFound", err)
	}
}

func TestSession_RedirectKeepsAuthorization(t *testing.T) {
	api := newFakeAPI(t)
	front := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, api.server.URL+r.URL.Path, http.StatusTemporaryRedirect)
	}))
	defer front.Close()

	s := newTestSession(t, front.URL)
	if err := s.SetFan(context.Background(), "09AA01AC4316003F", false); err != nil {
		t.Fatalf("SetFan() through redirect error = %v", err)
	}
	put := api.lastPut(t)
	if put.Body["fan_timer_active"] != false {
		t.Errorf("redirected body = %v", put.Body)
	}
	for _, h := range api.authHeaders() {
		if h != "Bearer c.token" {
			t.Errorf("redirected Authorization = %q, want bearer token", h)
		}
	}
}

func TestSession_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantIs    []error
		wantNotIs []error
	}{
		{"server error", http.StatusInternalServerError, "boom", []error{ErrTransient}, []error{ErrMalformedResponse, ErrAuthorizationRequired}},
		{"unauthorized", http.StatusUnauthorized, `{"error":"unauthorized"}`, []error{ErrTransient, ErrAuthorizationRequired}, nil},
		{"rate limited", http.StatusTooManyRequests, "", []error{ErrTransient}, nil},
		{"malformed", http.StatusOK, `{"devices": {"thermostats": {"x": {"is_online": "yes"}}}}`, []error{ErrMalformedResponse}, []error{ErrTransient}},
		{"not json", http.StatusOK, `<html>`, []error{ErrMalformedResponse}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI(t)
			api.status = tt.status
			api.body = tt.body
			s := newTestSession(t, api.server.URL)

			_, err := s.Structures(context.Background())
			if err == nil {
				t.Fatal("Structures() expected error")
			}
			for _, target := range tt.wantIs {
				if !errors.Is(err, target) {
					t.Errorf("error %v is not %v", err, target)
				}
			}
			for _, target := range tt.wantNotIs {
				if errors.Is(err, target) {
					t.Errorf("error %v unexpectedly is %v", err, target)
				}
			}
		})
	}
}

func TestSession_ConnectionRefusedIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	s := newTestSession(t, url)
	_, err := s.Thermostat(context.Background(), "09AA01AC4316003F")
	if !errors.Is(err, ErrTransient) {
		t.Errorf("Thermostat() on closed server = %v, want ErrTransient", err)
	}
}

func TestStatusError_Message(t *testing.T) {
	err := &StatusError{Method: http.MethodGet, Path: "/", Code: http.StatusBadGateway}
	if got := err.Error(); got != "nest: GET /: 502 Bad Gateway" {
		t.Errorf("Error() = %q", got)
	}
}
