package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/KevinKickass/OpenProfinetDevice/internal/api/websocket"
	"github.com/KevinKickass/OpenProfinetDevice/internal/auth"
	"github.com/KevinKickass/OpenProfinetDevice/internal/config"
	"github.com/KevinKickass/OpenProfinetDevice/internal/interfaces"
	"github.com/KevinKickass/OpenProfinetDevice/internal/profinet"
	"github.com/KevinKickass/OpenProfinetDevice/internal/storage"
	"go.uber.org/zap"
)

type fakeDevice struct{ snap profinet.Snapshot }

func (f *fakeDevice) Snapshot() *profinet.Snapshot {
	s := f.snap
	return &s
}

type fakeImage map[string]any

func (f fakeImage) Snapshot() map[string]any { return f }
func (f fakeImage) Updates() uint64          { return 12 }

type fakeJournal struct {
	events []storage.ConnectionEvent
	err    error
	limit  int
}

func (f *fakeJournal) Recent(_ context.Context, limit int) ([]storage.ConnectionEvent, error) {
	f.limit = limit
	return f.events, f.err
}

type fakeLifecycle struct {
	cfg      *config.Config
	device   *fakeDevice
	journal  *fakeJournal
	shutdown chan struct{}
}

func (f *fakeLifecycle) Config() *config.Config                { return f.cfg }
func (f *fakeLifecycle) Device() interfaces.DeviceRuntime      { return f.device }
func (f *fakeLifecycle) ProcessImage() interfaces.ProcessImage { return fakeImage{"echo.gain": uint32(2)} }

func (f *fakeLifecycle) GetCurrentStatus() interfaces.SystemStatus {
	return interfaces.SystemStatus{State: "RUNNING", DeviceState: f.device.snap.State}
}

func (f *fakeLifecycle) Journal() interfaces.JournalReader {
	if f.journal == nil {
		return nil
	}
	return f.journal
}

func (f *fakeLifecycle) Shutdown(context.Context) error {
	close(f.shutdown)
	return nil
}

func newTestServer(t *testing.T, authCfg config.AuthConfig) (*Server, *fakeLifecycle) {
	t.Helper()
	lm := &fakeLifecycle{
		cfg: &config.Config{Server: config.ServerConfig{HTTPPort: 0}, Auth: authCfg},
		device: &fakeDevice{snap: profinet.Snapshot{
			State:       profinet.StateConnected,
			AREP:        1,
			Cycles:      100,
			StationName: "echo-device",
			Slots: []profinet.SlotSnapshot{
				{Slot: 1, ModuleID: 0x40, Subslots: []profinet.SubslotSnapshot{{Subslot: 1, SubmoduleID: 0x140, InputLength: 8}}},
			},
		}},
		shutdown: make(chan struct{}),
	}
	authService := auth.NewAuthService(authCfg, zap.NewNop())
	hub := websocket.NewHub(zap.NewNop(), authService, lm.device)
	return NewServer(lm, zap.NewNop(), hub, authService), lm
}

func do(t *testing.T, s *Server, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, config.AuthConfig{})
	w := do(t, s, http.MethodGet, "/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]any
	decode(t, w, &body)
	if body["status"] != "ok" || body["device_state"] != string(profinet.StateConnected) {
		t.Fatalf("body = %v", body)
	}
}

func TestDeviceEndpoints(t *testing.T) {
	s, _ := newTestServer(t, config.AuthConfig{})

	w := do(t, s, http.MethodGet, "/api/v1/device/status", "", "")
	var status map[string]any
	decode(t, w, &status)
	if w.Code != http.StatusOK || status["connected"] != true || status["cycles"] != float64(100) {
		t.Fatalf("status = %d %v", w.Code, status)
	}

	w = do(t, s, http.MethodGet, "/api/v1/device/slots", "", "")
	var slots struct {
		Slots []profinet.SlotSnapshot `json:"slots"`
	}
	decode(t, w, &slots)
	if len(slots.Slots) != 1 || slots.Slots[0].Subslots[0].SubmoduleID != 0x140 {
		t.Fatalf("slots = %+v", slots)
	}

	w = do(t, s, http.MethodGet, "/api/v1/device/image", "", "")
	var image struct {
		Values  map[string]any `json:"values"`
		Updates uint64         `json:"updates"`
	}
	decode(t, w, &image)
	if image.Values["echo.gain"] != float64(2) || image.Updates != 12 {
		t.Fatalf("image = %+v", image)
	}

	w = do(t, s, http.MethodGet, "/api/v1/system/status", "", "")
	var sys interfaces.SystemStatus
	decode(t, w, &sys)
	if sys.State != "RUNNING" || sys.DeviceState != profinet.StateConnected {
		t.Fatalf("system = %+v", sys)
	}
}

func TestJournal(t *testing.T) {
	s, lm := newTestServer(t, config.AuthConfig{})

	if w := do(t, s, http.MethodGet, "/api/v1/device/journal", "", ""); w.Code != http.StatusNotFound {
		t.Fatalf("disabled journal: %d", w.Code)
	}

	lm.journal = &fakeJournal{events: []storage.ConnectionEvent{{Kind: storage.EventAbort, AREP: 1}}}
	w := do(t, s, http.MethodGet, "/api/v1/device/journal?limit=5", "", "")
	var body struct {
		Events []storage.ConnectionEvent `json:"events"`
	}
	decode(t, w, &body)
	if w.Code != http.StatusOK || len(body.Events) != 1 || lm.journal.limit != 5 {
		t.Fatalf("journal = %d %+v limit %d", w.Code, body, lm.journal.limit)
	}

	for _, bad := range []string{"0", "x", "501"} {
		if w := do(t, s, http.MethodGet, "/api/v1/device/journal?limit="+bad, "", ""); w.Code != http.StatusBadRequest {
			t.Errorf("limit %s: %d", bad, w.Code)
		}
	}

	lm.journal.err = errors.New("connection refused")
	if w := do(t, s, http.MethodGet, "/api/v1/device/journal", "", ""); w.Code != http.StatusInternalServerError {
		t.Fatalf("failing journal: %d", w.Code)
	}
}

func TestTokenFlow(t *testing.T) {
	t.Setenv("OPD_REST_TEST_SECRET", "0123456789abcdef0123456789abcdef")
	hash, err := auth.NewKeyHasher().HashKey("plc-key")
	if err != nil {
		t.Fatal(err)
	}
	s, _ := newTestServer(t, config.AuthConfig{
		Enabled:        true,
		JWTSecretEnv:   "OPD_REST_TEST_SECRET",
		APIKeyHash:     hash,
		AccessTokenTTL: time.Minute,
	})

	if w := do(t, s, http.MethodGet, "/api/v1/device/status", "", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("without token: %d", w.Code)
	}
	if w := do(t, s, http.MethodPost, "/api/v1/auth/token", `{"api_key":"wrong"}`, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong key: %d", w.Code)
	}
	if w := do(t, s, http.MethodPost, "/api/v1/auth/token", `{}`, ""); w.Code != http.StatusBadRequest {
		t.Fatalf("missing key: %d", w.Code)
	}

	w := do(t, s, http.MethodPost, "/api/v1/auth/token", `{"api_key":"plc-key","client":"hmi"}`, "")
	var token TokenResponse
	decode(t, w, &token)
	if w.Code != http.StatusOK || token.TokenType != "Bearer" || token.AccessToken == "" {
		t.Fatalf("token = %d %+v", w.Code, token)
	}

	if w := do(t, s, http.MethodGet, "/api/v1/device/image", "", token.AccessToken); w.Code != http.StatusOK {
		t.Fatalf("with token: %d %s", w.Code, w.Body.String())
	}

	if w := do(t, s, http.MethodPost, "/api/v1/auth/token", `{"api_key":"plc-key","role":"admin"}`, ""); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown role: %d", w.Code)
	}

	w = do(t, s, http.MethodPost, "/api/v1/auth/token", `{"api_key":"plc-key","role":"monitor"}`, "")
	var monitor TokenResponse
	decode(t, w, &monitor)
	if w := do(t, s, http.MethodGet, "/api/v1/device/status", "", monitor.AccessToken); w.Code != http.StatusOK {
		t.Fatalf("monitor status: %d", w.Code)
	}
	if w := do(t, s, http.MethodGet, "/api/v1/device/image", "", monitor.AccessToken); w.Code != http.StatusForbidden {
		t.Fatalf("monitor image: %d", w.Code)
	}
}

func TestTokenWithoutConfiguredKey(t *testing.T) {
	s, _ := newTestServer(t, config.AuthConfig{Enabled: true, AccessTokenTTL: time.Minute})
	if w := do(t, s, http.MethodPost, "/api/v1/auth/token", `{"api_key":"x"}`, ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestShutdown(t *testing.T) {
	s, lm := newTestServer(t, config.AuthConfig{})
	if w := do(t, s, http.MethodPost, "/api/v1/system/shutdown", "", ""); w.Code != http.StatusAccepted {
		t.Fatalf("status = %d", w.Code)
	}
	select {
	case <-lm.shutdown:
	case <-time.After(time.Second):
		t.Fatal("shutdown not triggered")
	}
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t, config.AuthConfig{})
	w := do(t, s, http.MethodOptions, "/api/v1/device/status", "", "")
	if w.Code != http.StatusNoContent || w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("preflight = %d %v", w.Code, w.Header())
	}
}
