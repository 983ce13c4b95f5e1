package stream

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/san-kum/gassim/internal/config"
	"github.com/san-kum/gassim/internal/physics"
)

func newTestServer(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewServer(cfg, nil).WithInterval(0).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func TestStreamFrames(t *testing.T) {
	cfg := config.GetPreset("tutorial")
	cfg.Steps = 25
	srv := newTestServer(t, cfg)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws?seed=3"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var frames []Frame
	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				t.Fatalf("stream ended with %v", err)
			}
			break
		}
		frames = append(frames, f)
	}

	if len(frames) != 25 {
		t.Fatalf("got %d frames, want 25", len(frames))
	}
	for k, f := range frames {
		if f.Step != k || len(f.Positions) != 4 || len(f.Speeds) != 4 {
			t.Fatalf("frame %d malformed: %+v", k, f)
		}
	}
	if math.Abs(frames[24].Time-0.24) > 1e-12 {
		t.Errorf("last frame time = %v", frames[24].Time)
	}

	grid := physics.GridPositions(4, cfg.Radius, cfg.BoxSize)
	for i, p := range frames[0].Positions {
		if p[0] != grid[i].X || p[1] != grid[i].Y {
			t.Errorf("first frame particle %d at %v, want %v", i, p, grid[i])
		}
	}
	for _, v := range frames[0].Speeds {
		if math.Abs(v-cfg.InitialSpeed) > 1e-12 {
			t.Errorf("initial speed %v, want %v", v, cfg.InitialSpeed)
		}
	}
}

func TestStreamSeedsAreIndependent(t *testing.T) {
	cfg := config.GetPreset("tutorial")
	cfg.Steps = 5
	srv := newTestServer(t, cfg)

	second := func(seed string) Frame {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws?seed="+seed), nil)
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		defer conn.Close()
		var f Frame
		for i := 0; i < 2; i++ {
			if err := conn.ReadJSON(&f); err != nil {
				t.Fatalf("read: %v", err)
			}
		}
		return f
	}

	a, b, c := second("1"), second("1"), second("2")
	if a.Positions[0] != b.Positions[0] {
		t.Error("same seed gave different frames")
	}
	if a.Positions[0] == c.Positions[0] {
		t.Error("different seeds gave identical frames")
	}
}

func TestStreamRejectsBadRequests(t *testing.T) {
	srv := newTestServer(t, config.GetPreset("tutorial"))

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws?seed=abc"), nil)
	if err == nil || resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad seed: err %v resp %v", err, resp)
	}

	bad := config.GetPreset("tutorial")
	bad.Radius = 10
	badSrv := newTestServer(t, bad)
	_, resp, err = websocket.DefaultDialer.Dial(wsURL(badSrv, "/ws"), nil)
	if !errors.Is(err, websocket.ErrBadHandshake) || resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid config: err %v resp %v", err, resp)
	}
}

func TestMeta(t *testing.T) {
	srv := newTestServer(t, config.GetPreset("tutorial"))

	resp, err := http.Get(srv.URL + "/meta?seed=9")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type %q", ct)
	}
	var meta Meta
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if meta.Count != 4 || meta.Seed != 9 || meta.Dt != 0.01 || meta.Steps != 100 || meta.Rule != "elastic" {
		t.Errorf("unexpected meta: %+v", meta)
	}
	if want := math.Sqrt(math.Pi/2) * 2 / math.Sqrt2; math.Abs(meta.MeanSpeed-want) > 1e-12 {
		t.Errorf("theory mean speed %v, want %v", meta.MeanSpeed, want)
	}

	bad, err := http.Get(srv.URL + "/meta?seed=x")
	if err != nil {
		t.Fatal(err)
	}
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Errorf("bad seed status %d", bad.StatusCode)
	}
}
