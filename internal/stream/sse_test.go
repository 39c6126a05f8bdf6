package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/star/dopplertrack/internal/propagation"
	"github.com/star/dopplertrack/internal/rangerate"
	"github.com/star/dopplertrack/internal/transform"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func testHandler(prop propagation.Propagator, cfg Config) *Handler {
	st := transform.NewStation("equator", 0, 0, 0, 10)
	h := NewHandler(rangerate.New(st, prop), 437.5e6, 10*time.Second, cfg, remoteIP, testLogger())
	h.now = func() time.Time { return t0 }
	return h
}

// overhead keeps a satellite near the zenith of the equator station at t0.
func overhead() propagation.Circular {
	return propagation.Circular{RadiusKm: 6778, PhaseRad: transform.GMST(t0), Epoch: t0}
}

// serve runs one stream request until timeout and returns the recorder.
func serve(h *Handler, query string, timeout time.Duration) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", "/api/v1/stream/doppler"+query, nil)
	req.RemoteAddr = "127.0.0.1:12345"
	ctx, cancel := context.WithTimeout(req.Context(), timeout)
	defer cancel()
	w := httptest.NewRecorder()
	h.HandleDoppler(w, req.WithContext(ctx))
	return w
}

func messages(t *testing.T, body string) []map[string]any {
	t.Helper()
	var out []map[string]any
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		jsonStr, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var msg map[string]any
		if err := json.Unmarshal([]byte(jsonStr), &msg); err != nil {
			t.Errorf("invalid JSON in SSE data line: %v", err)
			continue
		}
		out = append(out, msg)
	}
	return out
}

func TestSSEMessageFormat(t *testing.T) {
	w := serve(testHandler(overhead(), Config{}), "?step=1", 100*time.Millisecond)
	resp := w.Result()

	if resp.Header.Get("Content-Type") != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", resp.Header.Get("Content-Type"))
	}
	if resp.Header.Get("Cache-Control") != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", resp.Header.Get("Cache-Control"))
	}

	body := w.Body.String()
	msgs := messages(t, body)
	if len(msgs) < 2 {
		t.Fatalf("got %d messages, want metadata and a sample", len(msgs))
	}

	meta := msgs[0]
	if meta["type"] != "metadata" {
		t.Fatalf("first message type = %v, want metadata", meta["type"])
	}
	if meta["station"] != "equator" {
		t.Errorf("station = %v, want equator", meta["station"])
	}
	if meta["carrier_hz"].(float64) != 437.5e6 {
		t.Errorf("carrier_hz = %v, want 437.5e6", meta["carrier_hz"])
	}
	if meta["strategy"] != "analytic" {
		t.Errorf("strategy = %v, want analytic", meta["strategy"])
	}

	s := msgs[1]
	if s["type"] != "sample" {
		t.Fatalf("second message type = %v, want sample", s["type"])
	}
	if s["t"] != "2024-03-01T12:00:00Z" {
		t.Errorf("t = %v, want 2024-03-01T12:00:00Z", s["t"])
	}
	if el := s["el_deg"].(float64); el < 85 {
		t.Errorf("el_deg = %v, want near zenith", el)
	}
	if s["visible"] != true {
		t.Error("overhead sample should be visible")
	}
	sub, ok := s["sub_satellite"].(map[string]any)
	if !ok {
		t.Fatalf("sub_satellite = %v, want an object", s["sub_satellite"])
	}
	if lat, lon := sub["lat_deg"].(float64), sub["lon_deg"].(float64); lat*lat+lon*lon > 1 {
		t.Errorf("sub-satellite point (%.3f, %.3f), want near the station", lat, lon)
	}
	if alt := sub["alt_m"].(float64); alt < 380e3 || alt > 420e3 {
		t.Errorf("alt_m = %v, want about 400 km", alt)
	}
	// At zenith the range-rate is near zero, so the receiver sits near the carrier.
	if rx := s["rx_hz"].(float64); rx < 437.49e6 || rx > 437.51e6 {
		t.Errorf("rx_hz = %v, want close to carrier", rx)
	}

	// Lines are "data: ...", "retry: ..." or ":" (keepalive).
	for _, line := range strings.Split(body, "\n") {
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "data: ") && !strings.HasPrefix(line, "retry: ") && line != ":" {
			t.Errorf("unexpected SSE line: %q", line)
		}
	}
}

func TestStreamStrategyParam(t *testing.T) {
	w := serve(testHandler(overhead(), Config{}), "?strategy=fd&dt=5", 100*time.Millisecond)
	msgs := messages(t, w.Body.String())
	if len(msgs) == 0 {
		t.Fatal("no messages")
	}
	if got := msgs[0]["strategy"]; got != "finite-difference(5s)" {
		t.Errorf("strategy = %v, want finite-difference(5s)", got)
	}
}

func TestStreamUnavailable(t *testing.T) {
	failing := propagation.Func(func(at time.Time) (propagation.State, error) {
		return propagation.State{}, fmt.Errorf("%w: element set expired", propagation.ErrUnavailable)
	})
	w := serve(testHandler(failing, Config{}), "", 100*time.Millisecond)

	msgs := messages(t, w.Body.String())
	if len(msgs) < 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[1]["type"] != "unavailable" {
		t.Errorf("type = %v, want unavailable", msgs[1]["type"])
	}
	if !strings.Contains(msgs[1]["error"].(string), "expired") {
		t.Errorf("error = %v", msgs[1]["error"])
	}
}

func TestSlotsPerClient(t *testing.T) {
	s := newSlots(3, 1000)

	var releases []func()
	for i := 0; i < 3; i++ {
		release, err := s.take("10.0.0.1")
		if err != nil {
			t.Fatalf("take %d: %v", i+1, err)
		}
		releases = append(releases, release)
	}
	if _, err := s.take("10.0.0.1"); !errors.Is(err, errClientLimit) {
		t.Errorf("take beyond client limit: err = %v, want errClientLimit", err)
	}
	if _, err := s.take("10.0.0.2"); err != nil {
		t.Errorf("other address refused: %v", err)
	}

	// Releasing twice frees one slot only.
	releases[0]()
	releases[0]()
	if held, total := s.usage("10.0.0.1"); held != 2 || total != 3 {
		t.Errorf("usage = (%d, %d), want (2, 3)", held, total)
	}
	if _, err := s.take("10.0.0.1"); err != nil {
		t.Errorf("take after release: %v", err)
	}
	if held, _ := s.usage("10.0.0.2"); held != 1 {
		t.Errorf("held by 10.0.0.2 = %d, want 1", held)
	}
}

func TestSlotsServerCap(t *testing.T) {
	s := newSlots(10, 2)
	for _, addr := range []string{"a", "b"} {
		if _, err := s.take(addr); err != nil {
			t.Fatalf("take %s: %v", addr, err)
		}
	}
	if _, err := s.take("c"); !errors.Is(err, errServerLimit) {
		t.Errorf("take beyond server cap: err = %v, want errServerLimit", err)
	}
}

func TestSlotsConcurrent(t *testing.T) {
	s := newSlots(100, 1000)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if release, err := s.take("10.0.0.1"); err == nil {
				defer release()
				time.Sleep(10 * time.Millisecond)
			}
		}()
	}
	wg.Wait()

	if held, total := s.usage("10.0.0.1"); held != 0 || total != 0 {
		t.Errorf("usage after all released = (%d, %d), want (0, 0)", held, total)
	}
}

func TestRateLimitHTTPResponse(t *testing.T) {
	h := testHandler(overhead(), Config{MaxConcurrentPerIP: 1})

	// Hold the first connection open.
	ready := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		req := httptest.NewRequest("GET", "/api/v1/stream/doppler", nil)
		req.RemoteAddr = "10.0.0.1:12345"
		ctx, cancel := context.WithCancel(req.Context())
		req = req.WithContext(ctx)

		go func() {
			time.Sleep(50 * time.Millisecond)
			close(ready)
			time.Sleep(200 * time.Millisecond)
			cancel()
		}()

		h.HandleDoppler(httptest.NewRecorder(), req)
	}()

	<-ready

	req := httptest.NewRequest("GET", "/api/v1/stream/doppler", nil)
	req.RemoteAddr = "10.0.0.1:54321"
	w := httptest.NewRecorder()
	h.HandleDoppler(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}

	<-done
	if held, _ := h.slots.usage("10.0.0.1"); held != 0 {
		t.Errorf("slots held after disconnect = %d, want 0", held)
	}
}

func TestInvalidQueryParams(t *testing.T) {
	h := testHandler(overhead(), Config{})

	tests := []struct {
		name  string
		query string
	}{
		{"bad step", "?step=0"},
		{"step too large", "?step=100"},
		{"step non-numeric", "?step=abc"},
		{"bad dt", "?strategy=fd&dt=0"},
		{"dt non-numeric", "?dt=xyz"},
		{"unknown strategy", "?strategy=kalman"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/stream/doppler"+tt.query, nil)
			req.RemoteAddr = "127.0.0.1:12345"
			w := httptest.NewRecorder()
			h.HandleDoppler(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
		})
	}
}
