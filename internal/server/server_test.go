package server

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/streampi/streampi/internal/config"
	"github.com/streampi/streampi/internal/process"
)

type mockController struct {
	info        process.Info
	lastCommand string
	restarts    int
}

func (m *mockController) Info() process.Info { return m.info }
func (m *mockController) Command() string    { return m.lastCommand }
func (m *mockController) RequestRestart(cmd string) {
	m.lastCommand = cmd
	m.restarts++
}

func testSettings() (config.StreamSettings, error) {
	return config.StreamSettings{
		Device:      "/dev/video0",
		VideoSize:   "1280x720",
		InputFormat: "mjpeg",
		Delivery:    "dash",
		Codec:       "h264_v4l2m2m",
	}, nil
}

func newTestServer(ctrl *mockController) *Server {
	return NewServer(&Options{
		AuthUsername: "pi",
		AuthPassword: "secret",
		LoadSettings: testSettings,
		Controller:   ctrl,
	})
}

func doRequest(t *testing.T, s *Server, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		creds := base64.StdEncoding.EncodeToString([]byte("pi:secret"))
		req.Header.Set("Authorization", "Basic "+creds)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthNoAuthRequired(t *testing.T) {
	s := newTestServer(&mockController{})

	rec := doRequest(t, s, http.MethodGet, "/api/health", "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/health = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("health body = %s", rec.Body.String())
	}
}

func TestVersionEndpoint(t *testing.T) {
	s := newTestServer(&mockController{})

	rec := doRequest(t, s, http.MethodGet, "/api/version", "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/version = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"version"`) {
		t.Errorf("version body = %s", rec.Body.String())
	}
}

func TestStreamStatusRequiresAuth(t *testing.T) {
	s := newTestServer(&mockController{})

	if rec := doRequest(t, s, http.MethodGet, "/api/stream", "", false); rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated GET /api/stream = %d, want 401", rec.Code)
	}
	if rec := doRequest(t, s, http.MethodGet, "/api/stream", "", true); rec.Code != http.StatusOK {
		t.Errorf("authenticated GET /api/stream = %d, want 200", rec.Code)
	}
}

func TestStreamStatusReportsProcess(t *testing.T) {
	ctrl := &mockController{info: process.Info{State: process.StateRunning, PID: 4321, RestartCount: 2}}
	s := newTestServer(ctrl)

	rec := doRequest(t, s, http.MethodGet, "/api/stream", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/stream = %d: %s", rec.Code, rec.Body.String())
	}

	var status StreamStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if status.State != "running" || status.PID != 4321 || status.RestartCount != 2 {
		t.Errorf("status = %+v", status)
	}
	if !strings.Contains(status.Command, "-i /dev/video0") {
		t.Errorf("command = %q, want composed from settings", status.Command)
	}
	if status.Deployment != "manifest" {
		t.Errorf("deployment = %q, want manifest", status.Deployment)
	}
}

func TestComposePreview(t *testing.T) {
	s := newTestServer(&mockController{})

	body := `{"device":"/dev/video0","video_size":"1280x720","input_format":"mjpeg","delivery":"dash","codec":"h264_v4l2m2m"}`
	rec := doRequest(t, s, http.MethodPost, "/api/stream/compose", body, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /api/stream/compose = %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "-c:v h264_v4l2m2m") {
		t.Errorf("compose body = %s", rec.Body.String())
	}
}

func TestComposePreviewInvalidConfig(t *testing.T) {
	s := newTestServer(&mockController{})

	body := `{"device":"","video_size":"1280x720","codec":"copy"}`
	rec := doRequest(t, s, http.MethodPost, "/api/stream/compose", body, true)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("POST invalid compose = %d, want 422: %s", rec.Code, rec.Body.String())
	}
}

func TestUpdateSettingsPersists(t *testing.T) {
	var saved config.StreamSettings
	s := NewServer(&Options{
		AuthUsername: "pi",
		AuthPassword: "secret",
		LoadSettings: testSettings,
		SaveSettings: func(settings config.StreamSettings) error {
			saved = settings
			return nil
		},
	})

	body := `{"device":"/dev/video2","video_size":"1920x1080","codec":"copy","delivery":"rtsp"}`
	rec := doRequest(t, s, http.MethodPut, "/api/stream", body, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT /api/stream = %d: %s", rec.Code, rec.Body.String())
	}
	if saved.Device != "/dev/video2" || saved.Codec != "copy" || saved.Delivery != "rtsp" {
		t.Errorf("saved settings = %+v", saved)
	}
	if !strings.Contains(rec.Body.String(), "-c:v copy") {
		t.Errorf("update body = %s", rec.Body.String())
	}
}

func TestUpdateSettingsRejectsInvalid(t *testing.T) {
	saves := 0
	s := NewServer(&Options{
		AuthUsername: "pi",
		AuthPassword: "secret",
		LoadSettings: testSettings,
		SaveSettings: func(config.StreamSettings) error {
			saves++
			return nil
		},
	})

	body := `{"device":"/dev/video0","video_size":"not-a-size","codec":"copy"}`
	rec := doRequest(t, s, http.MethodPut, "/api/stream", body, true)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("PUT invalid settings = %d, want 422: %s", rec.Code, rec.Body.String())
	}
	if saves != 0 {
		t.Errorf("invalid settings were saved %d times", saves)
	}
}

func TestUpdateSettingsNotRegisteredWithoutSaver(t *testing.T) {
	s := newTestServer(&mockController{})

	body := `{"device":"/dev/video0","video_size":"1280x720","codec":"copy"}`
	rec := doRequest(t, s, http.MethodPut, "/api/stream", body, true)
	if rec.Code != http.StatusMethodNotAllowed && rec.Code != http.StatusNotFound {
		t.Errorf("PUT without SaveSettings = %d, want 404 or 405", rec.Code)
	}
}

func TestRestartViaSupervisor(t *testing.T) {
	ctrl := &mockController{}
	s := newTestServer(ctrl)

	rec := doRequest(t, s, http.MethodPost, "/api/stream/restart", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /api/stream/restart = %d: %s", rec.Code, rec.Body.String())
	}
	if ctrl.restarts != 1 {
		t.Errorf("controller restarts = %d, want 1", ctrl.restarts)
	}
	if !strings.Contains(ctrl.lastCommand, "ffmpeg") {
		t.Errorf("restart command = %q, want recomposed ffmpeg command", ctrl.lastCommand)
	}
	if !strings.Contains(rec.Body.String(), `"via":"supervisor"`) {
		t.Errorf("restart body = %s", rec.Body.String())
	}
}

func TestRestartWithoutMechanism(t *testing.T) {
	s := NewServer(&Options{
		AuthUsername: "pi",
		AuthPassword: "secret",
		LoadSettings: testSettings,
	})

	rec := doRequest(t, s, http.MethodPost, "/api/stream/restart", "", true)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("restart without controller = %d, want 503", rec.Code)
	}
}

func TestMetricsEndpointMounted(t *testing.T) {
	s := NewServer(&Options{
		LoadSettings: testSettings,
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	})

	rec := doRequest(t, s, http.MethodGet, "/metrics", "", false)
	if rec.Code != http.StatusOK {
		t.Errorf("GET /metrics = %d, want 200", rec.Code)
	}
}
