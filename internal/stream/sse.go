// Package stream serves a live Server-Sent Events feed of antenna pointing
// and Doppler-corrected tuning for one station/satellite pair. Clients
// connect via GET /api/v1/stream/doppler and receive one sample per step.
//
// SSE message format:
//
//	data: {"type":"sample","t":"2024-03-01T12:00:00Z","az_deg":182.4,"el_deg":41.7,...}\n\n
//
// First message is always metadata:
//
//	data: {"type":"metadata","station":"Buenos Aires","carrier_hz":145800000,"strategy":"analytic","step_seconds":1}\n\n
//
// Instants the propagator cannot serve produce an "unavailable" message
// instead of a sample. Keep-alive comments (:\n\n) are sent every
// KeepaliveInterval of silence.
package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/star/dopplertrack/internal/doppler"
	"github.com/star/dopplertrack/internal/metrics"
	"github.com/star/dopplertrack/internal/propagation"
	"github.com/star/dopplertrack/internal/rangerate"
	"github.com/star/dopplertrack/internal/transform"
)

// Config holds streaming limits.
type Config struct {
	MaxConcurrentPerIP int           // default 10
	MaxTotal           int           // default 1000
	KeepaliveInterval  time.Duration // default 30s
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrentPerIP <= 0 {
		c.MaxConcurrentPerIP = 10
	}
	if c.MaxTotal <= 0 {
		c.MaxTotal = 1000
	}
	if c.KeepaliveInterval <= 0 {
		c.KeepaliveInterval = 30 * time.Second
	}
	return c
}

// Handler manages SSE streaming connections.
type Handler struct {
	est       *rangerate.Estimator
	carrierHz float64
	defaultDT time.Duration
	config    Config
	slots     *slots
	clientIP  func(*http.Request) string
	logger    *slog.Logger
	now       func() time.Time
}

// NewHandler creates a streaming handler. clientIP resolves the address used
// for per-IP limits.
func NewHandler(est *rangerate.Estimator, carrierHz float64, defaultDT time.Duration, config Config, clientIP func(*http.Request) string, logger *slog.Logger) *Handler {
	config = config.withDefaults()
	return &Handler{
		est:       est,
		carrierHz: carrierHz,
		defaultDT: defaultDT,
		config:    config,
		slots:     newSlots(config.MaxConcurrentPerIP, config.MaxTotal),
		clientIP:  clientIP,
		logger:    logger,
		now:       time.Now,
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// HandleDoppler serves the live stream.
// GET /api/v1/stream/doppler?step=1&strategy=fd&dt=10
func (h *Handler) HandleDoppler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	step := 1
	if v := q.Get("step"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 60 {
			badRequest(w, "invalid step parameter, must be 1-60")
			return
		}
		step = n
	}

	dt := h.defaultDT
	if v := q.Get("dt"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 300 {
			badRequest(w, "invalid dt parameter, must be 1-300 seconds")
			return
		}
		dt = time.Duration(n) * time.Second
	}
	strategy, err := rangerate.ParseStrategy(q.Get("strategy"), dt)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	ip := h.clientIP(r)
	release, err := h.slots.take(ip)
	if err != nil {
		reason := "client_limit"
		if errors.Is(err, errServerLimit) {
			reason = "server_limit"
		}
		metrics.IncStreamErrors(reason)
		held, total := h.slots.usage(ip)
		h.logger.Warn("stream refused",
			"remote_ip", ip,
			"reason", reason,
			"client_streams", held,
			"total_streams", total,
		)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	c := &client{ip: ip, logger: h.logger}
	metrics.IncStreamsActive()
	startTime := time.Now()
	h.logger.Info("stream connected",
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
		"step", step,
		"strategy", strategy.String(),
	)

	defer func() {
		release()
		metrics.DecStreamsActive()
		h.logger.Info("stream disconnected",
			"remote_ip", ip,
			"duration_seconds", int(time.Since(startTime).Seconds()),
			"messages", c.messages,
		)
	}()

	flusher, ok := w.(http.Flusher)
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Clear the server's WriteTimeout for this long-lived connection.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	c.w, c.flusher, c.rc = w, flusher, rc

	// Jittered retry interval (3-7s) spreads reconnects after a restart.
	fmt.Fprintf(w, "retry: %d\n\n", 3000+rand.Intn(4000))
	flusher.Flush()

	meta := metadataMessage{
		Type:        "metadata",
		Station:     h.est.Station().Name,
		CarrierHz:   h.carrierHz,
		Strategy:    strategy.String(),
		StepSeconds: step,
	}
	if err := c.sendJSON(meta); err != nil {
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error (metadata)", "remote_ip", ip, "error", err)
		return
	}

	ticker := time.NewTicker(time.Duration(step) * time.Second)
	defer ticker.Stop()
	keepaliveTicker := time.NewTicker(h.config.KeepaliveInterval)
	defer keepaliveTicker.Stop()

	// The first sample goes out immediately.
	if err := h.emit(c, h.now(), strategy); err != nil {
		return
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			if err := h.emit(c, h.now(), strategy); err != nil {
				return
			}
			keepaliveTicker.Reset(h.config.KeepaliveInterval)

		case <-keepaliveTicker.C:
			if err := c.sendKeepalive(); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}

// emit sends the sample at t, or an unavailable notice. Only write errors
// are returned.
func (h *Handler) emit(c *client, t time.Time, strategy rangerate.Strategy) error {
	t = t.UTC().Truncate(time.Second)
	var msg any
	obs, err := h.est.Estimate(t, strategy)
	switch {
	case err == nil:
		metrics.RecordSample(strategy.Label(), metrics.OutcomeOK)
		msg = h.buildSample(obs)
	case errors.Is(err, propagation.ErrUnavailable):
		metrics.RecordSample(strategy.Label(), metrics.OutcomeUnavailable)
		metrics.IncStreamErrors("unavailable")
		msg = unavailableMessage{Type: "unavailable", T: t.Format(time.RFC3339), Error: err.Error()}
	default:
		metrics.RecordSample(strategy.Label(), metrics.OutcomeError)
		metrics.IncStreamErrors("estimate_error")
		h.logger.Warn("stream estimate error", "remote_ip", c.ip, "time", t, "error", err)
		msg = unavailableMessage{Type: "unavailable", T: t.Format(time.RFC3339), Error: err.Error()}
	}

	if err := c.sendJSON(msg); err != nil {
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error", "remote_ip", c.ip, "error", err)
		return err
	}
	return nil
}

func (h *Handler) buildSample(obs rangerate.Observation) sampleMessage {
	d := doppler.Compute(h.carrierHz, obs.RangeRateMS)
	if !doppler.Plausible(h.carrierHz, d.ShiftHz) {
		metrics.RecordImplausible()
	}
	return sampleMessage{
		Type:         "sample",
		T:            obs.Time.UTC().Format(time.RFC3339),
		AzimuthDeg:   obs.AzimuthDeg(),
		ElevationDeg: obs.ElevationDeg(),
		RangeM:       obs.RangeM,
		RangeRateMS:  obs.RangeRateMS,
		ShiftHz:      d.ShiftHz,
		RxHz:         d.ShiftedHz,
		Visible:      obs.ElevationRad > h.est.Station().MinElevationRad,
		SubSatellite: obs.SubSatellite(),
	}
}

// SSE message payload types.

type metadataMessage struct {
	Type        string  `json:"type"`
	Station     string  `json:"station"`
	CarrierHz   float64 `json:"carrier_hz"`
	Strategy    string  `json:"strategy"`
	StepSeconds int     `json:"step_seconds"`
}

type sampleMessage struct {
	Type         string                  `json:"type"`
	T            string                  `json:"t"`
	AzimuthDeg   float64                 `json:"az_deg"`
	ElevationDeg float64                 `json:"el_deg"`
	RangeM       float64                 `json:"range_m"`
	RangeRateMS  float64                 `json:"range_rate_m_s"`
	ShiftHz      float64                 `json:"shift_hz"`
	RxHz         float64                 `json:"rx_hz"`
	Visible      bool                    `json:"visible"`
	SubSatellite transform.GeodeticPoint `json:"sub_satellite"`
}

type unavailableMessage struct {
	Type  string `json:"type"`
	T     string `json:"t"`
	Error string `json:"error"`
}
