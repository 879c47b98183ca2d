package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-kinect/pkg/camera"
	"github.com/teslashibe/go-kinect/pkg/driver/fake"
	"github.com/teslashibe/go-kinect/pkg/kinect"
	"github.com/teslashibe/go-kinect/pkg/render"
)

type testServer struct {
	*Server
	reg  *kinect.Registry
	loop *render.Loop
}

func newTestServer(t *testing.T, drv *fake.Driver) *testServer {
	t.Helper()
	cfg := camera.PreviewConfig()
	cfg.EventTimeoutMs = 50
	m, err := camera.NewManagerWithConfig(cfg)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	reg := kinect.NewRegistry(drv, kinect.WithConfig(m))
	t.Cleanup(func() { reg.Close() })
	loop := render.New(reg)
	return &testServer{Server: NewServer(Config{}, reg, loop), reg: reg, loop: loop}
}

// call sends a JSON request and decodes the response into out.
func (ts *testServer) call(t *testing.T, method, path string, body, out any) int {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := ts.App().Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (ts *testServer) create(t *testing.T) string {
	t.Helper()
	var st kinect.Status
	if code := ts.call(t, "POST", "/api/sessions", nil, &st); code != http.StatusCreated {
		t.Fatalf("create session: HTTP %d", code)
	}
	return st.ID
}

type apiError struct {
	Error string `json:"error"`
}

func TestStatus(t *testing.T) {
	ts := newTestServer(t, fake.New(2))

	var st StatusResponse
	if code := ts.call(t, "GET", "/api/status", nil, &st); code != http.StatusOK {
		t.Fatalf("HTTP %d", code)
	}
	if st.Driver != "fake" || st.Devices != 0 || st.Open != 0 || st.Capture.State != "stopped" {
		t.Errorf("Unexpected status %+v", st)
	}

	found := false
	for _, name := range st.Drivers {
		found = found || name == "fake"
	}
	if !found {
		t.Errorf("fake driver not listed in %v", st.Drivers)
	}
}

func TestSessionLifecycle(t *testing.T) {
	ts := newTestServer(t, fake.New(1))
	id := ts.create(t)

	var st kinect.Status
	if code := ts.call(t, "POST", "/api/sessions/"+id+"/open", nil, &st); code != http.StatusOK {
		t.Fatalf("open: HTTP %d", code)
	}
	if !st.Open || st.Index != 1 {
		t.Fatalf("Unexpected status after open %+v", st)
	}

	var tilt map[string]float64
	if code := ts.call(t, "PUT", "/api/sessions/"+id+"/tilt", TiltRequest{Degrees: 45}, &tilt); code != http.StatusOK || tilt["tilt"] != 30 {
		t.Errorf("tilt: HTTP %d, %v", code, tilt)
	}

	var unique map[string]bool
	if code := ts.call(t, "PUT", "/api/sessions/"+id+"/unique", UniqueRequest{Unique: false}, &unique); code != http.StatusOK || unique["unique"] {
		t.Errorf("unique: HTTP %d, %v", code, unique)
	}

	var list []kinect.Status
	if code := ts.call(t, "GET", "/api/sessions", nil, &list); code != http.StatusOK || len(list) != 1 || list[0].Tilt != 30 {
		t.Errorf("list: HTTP %d, %+v", code, list)
	}

	if code := ts.call(t, "POST", "/api/sessions/"+id+"/close", nil, &st); code != http.StatusOK || st.Open {
		t.Errorf("close: HTTP %d, %+v", code, st)
	}
	if code := ts.call(t, "DELETE", "/api/sessions/"+id, nil, nil); code != http.StatusNoContent {
		t.Errorf("delete: HTTP %d", code)
	}

	var e apiError
	if code := ts.call(t, "GET", "/api/sessions/"+id, nil, &e); code != http.StatusNotFound || e.Error == "" {
		t.Errorf("get deleted: HTTP %d, %+v", code, e)
	}
}

func TestOpen_ErrorStatus(t *testing.T) {
	ts := newTestServer(t, fake.New(2))
	first := ts.create(t)
	second := ts.create(t)

	if code := ts.call(t, "POST", "/api/sessions/"+first+"/open", OpenRequest{Index: 1}, nil); code != http.StatusOK {
		t.Fatalf("open first: HTTP %d", code)
	}

	tests := []struct {
		name  string
		id    string
		index int
		want  int
	}{
		{"already open", first, 0, http.StatusConflict},
		{"index conflict", second, 1, http.StatusConflict},
		{"out of range", second, 5, http.StatusBadRequest},
		{"unknown session", "nope", 0, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e apiError
			code := ts.call(t, "POST", "/api/sessions/"+tt.id+"/open", OpenRequest{Index: tt.index}, &e)
			if code != tt.want || e.Error == "" {
				t.Errorf("HTTP %d (%q), want %d", code, e.Error, tt.want)
			}
		})
	}

	var st kinect.Status
	if code := ts.call(t, "POST", "/api/sessions/"+second+"/open", nil, &st); code != http.StatusOK || st.Index != 2 {
		t.Fatalf("open second: HTTP %d, %+v", code, st)
	}
	third := ts.create(t)
	if code := ts.call(t, "POST", "/api/sessions/"+third+"/open", nil, nil); code != http.StatusServiceUnavailable {
		t.Errorf("all busy: HTTP %d", code)
	}
}

func TestOpen_NoDevices(t *testing.T) {
	ts := newTestServer(t, fake.New(0))
	id := ts.create(t)
	if code := ts.call(t, "POST", "/api/sessions/"+id+"/open", nil, nil); code != http.StatusServiceUnavailable {
		t.Errorf("HTTP %d", code)
	}
}

func TestFrame(t *testing.T) {
	ts := newTestServer(t, fake.New(1, fake.WithFrameInterval(time.Millisecond)))
	id := ts.create(t)

	if code := ts.call(t, "GET", "/api/sessions/"+id+"/frame.jpg", nil, nil); code != http.StatusNotFound {
		t.Errorf("frame before render: HTTP %d", code)
	}

	ts.call(t, "POST", "/api/sessions/"+id+"/open", nil, nil)
	waitRendered(t, ts)

	resp, err := ts.App().Test(httptest.NewRequest("GET", "/api/sessions/"+id+"/frame.jpg", nil), -1)
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/jpeg" || resp.Header.Get("X-Frame-Seq") != "1" {
		t.Errorf("frame: HTTP %d, headers %v", resp.StatusCode, resp.Header)
	}
	data, _ := io.ReadAll(resp.Body)
	if len(data) < 2 || data[0] != 0xff || data[1] != 0xd8 {
		t.Error("body is not a JPEG")
	}
}

func waitRendered(t *testing.T, ts *testServer) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for ts.loop.Tick() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no frame rendered")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestConfig(t *testing.T) {
	ts := newTestServer(t, fake.New(1))

	var cfg camera.Config
	if code := ts.call(t, "GET", "/api/config", nil, &cfg); code != http.StatusOK || cfg.Resolution != "medium" {
		t.Fatalf("get: HTTP %d, %+v", code, cfg)
	}

	if code := ts.call(t, "PUT", "/api/config", map[string]any{"preset": "quiet", "render_fps": 5}, &cfg); code != http.StatusOK {
		t.Fatalf("put: HTTP %d", code)
	}
	if cfg.OpenLED != "off" || cfg.RenderFPS != 5 {
		t.Errorf("Unexpected config %+v", cfg)
	}

	var e apiError
	if code := ts.call(t, "PUT", "/api/config", map[string]any{"render_fps": 0}, &e); code != http.StatusBadRequest || e.Error == "" {
		t.Errorf("invalid put: HTTP %d, %+v", code, e)
	}
	if ts.reg.Config().GetConfig().RenderFPS != 5 {
		t.Error("invalid update applied")
	}
}

func TestStatusFor(t *testing.T) {
	wrapped := &kinect.OpenError{Session: "s", Requested: 2, Err: kinect.ErrInitTimeout}
	tests := []struct {
		err  error
		want int
	}{
		{wrapped, http.StatusGatewayTimeout},
		{kinect.ErrOpenFailed, http.StatusBadGateway},
		{kinect.ErrSessionDestroyed, http.StatusGone},
		{ErrUnknownCommand, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func serve(t *testing.T, ts *testServer) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ts.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return "ws://" + ln.Addr().String()
}

func TestFramesWebsocket(t *testing.T) {
	ts := newTestServer(t, fake.New(1, fake.WithFrameInterval(time.Millisecond)))
	base := serve(t, ts)
	id := ts.create(t)

	ws, _, err := websocket.DefaultDialer.Dial(base+"/ws/frames/"+id, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	deadline := time.Now().Add(2 * time.Second)
	for ts.Frames().ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(time.Millisecond)
	}

	ts.call(t, "POST", "/api/sessions/"+id+"/open", nil, nil)
	waitRendered(t, ts)

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	mt, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if mt != websocket.BinaryMessage || len(data) < 2 || data[0] != 0xff || data[1] != 0xd8 {
		t.Errorf("Expected a binary JPEG, got type %d len %d", mt, len(data))
	}
}

func TestFramesWebsocket_UnknownSession(t *testing.T) {
	ts := newTestServer(t, fake.New(1))
	base := serve(t, ts)

	_, resp, err := websocket.DefaultDialer.Dial(base+"/ws/frames/nope", nil)
	if err == nil {
		t.Fatal("dial succeeded for unknown session")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %v", resp)
	}
}

func TestControlWebsocket(t *testing.T) {
	ts := newTestServer(t, fake.New(1))
	base := serve(t, ts)
	id := ts.create(t)

	ws, _, err := websocket.DefaultDialer.Dial(base+"/ws/control/"+id, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	send := func(line string) ControlReply {
		t.Helper()
		if err := ws.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
			t.Fatalf("write: %v", err)
		}
		ws.SetReadDeadline(time.Now().Add(5 * time.Second))
		var reply ControlReply
		if err := ws.ReadJSON(&reply); err != nil {
			t.Fatalf("read: %v", err)
		}
		return reply
	}

	if r := send("open 1"); !r.OK || r.Status == nil || !r.Status.Open || r.Status.Index != 1 {
		t.Fatalf("open: %+v", r)
	}
	if r := send("open"); r.OK || r.Code != http.StatusConflict {
		t.Errorf("second open: %+v", r)
	}
	if r := send("tilt -40"); !r.OK || r.Status.Tilt != -30 {
		t.Errorf("tilt: %+v", r)
	}
	if r := send("dance"); r.OK || r.Code != http.StatusBadRequest {
		t.Errorf("unknown command: %+v", r)
	}
	if r := send("close"); !r.OK || r.Status.Open {
		t.Errorf("close: %+v", r)
	}
	if ts.reg.OpenCount() != 0 {
		t.Errorf("OpenCount = %d", ts.reg.OpenCount())
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line    string
		want    command
		wantErr error
	}{
		{"open", command{name: "open"}, nil},
		{"OPEN 2", command{name: "open", index: 2}, nil},
		{"open x", command{name: "open"}, ErrBadArgument},
		{"open 1 2", command{name: "open"}, ErrBadArgument},
		{"tilt 12.5", command{name: "tilt", degrees: 12.5}, nil},
		{"tilt", command{name: "tilt"}, ErrBadArgument},
		{"unique on", command{name: "unique", unique: true}, nil},
		{"unique off", command{name: "unique"}, nil},
		{"unique maybe", command{name: "unique"}, ErrBadArgument},
		{"close", command{name: "close"}, nil},
		{"status now", command{name: "status"}, ErrBadArgument},
		{"", command{}, ErrUnknownCommand},
		{"reset", command{name: "reset"}, ErrUnknownCommand},
	}
	for _, tt := range tests {
		got, err := parseCommand(tt.line)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("parseCommand(%q) error = %v, want %v", tt.line, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("parseCommand(%q) = %+v, want %+v", tt.line, got, tt.want)
		}
	}
}
