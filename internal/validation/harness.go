// Package validation sweeps a time span, computes range-rate by both
// strategies at every sample, compares them and exports the trace as CSV for
// checking against an independent reference.
package validation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"time"

	"github.com/star/dopplertrack/internal/doppler"
	"github.com/star/dopplertrack/internal/metrics"
	"github.com/star/dopplertrack/internal/propagation"
	"github.com/star/dopplertrack/internal/rangerate"
)

// Defaults match a single LEO revolution at one-minute cadence.
const (
	DefaultSpan = 90 * time.Minute
	DefaultStep = time.Minute
	DefaultDT   = 10 * time.Second
)

// Config controls a validation sweep.
type Config struct {
	Start     time.Time
	Span      time.Duration
	Step      time.Duration
	DT        time.Duration // finite-difference step
	CarrierHz float64
	Workers   int // <= 0 uses GOMAXPROCS
}

func (c Config) validate() error {
	switch {
	case c.Step <= 0:
		return fmt.Errorf("sample step %s must be positive", c.Step)
	case c.Step%propagation.Resolution != 0:
		return fmt.Errorf("sample step %s must be a whole number of seconds", c.Step)
	case c.Span < 0:
		return fmt.Errorf("span %s must not be negative", c.Span)
	case c.DT <= 0 || c.DT%propagation.Resolution != 0:
		return fmt.Errorf("finite difference step %s: %w", c.DT, rangerate.ErrInvalidStep)
	case c.CarrierHz <= 0 || math.IsNaN(c.CarrierHz) || math.IsInf(c.CarrierHz, 0):
		return fmt.Errorf("carrier %v Hz must be positive", c.CarrierHz)
	}
	return nil
}

// Row is one sampled instant. Invalid rows carry Err and no geometry.
type Row struct {
	Time             time.Time
	Valid            bool
	Err              error
	RangeM           float64
	ElevationDeg     float64
	AzimuthDeg       float64
	AnalyticRateMS   float64
	HasAnalytic      bool
	FiniteDiffRateMS float64
}

// RangeRate returns the row's range-rate under kind, and whether it is available.
func (r Row) RangeRate(kind rangerate.Kind) (float64, bool) {
	if !r.Valid {
		return 0, false
	}
	if kind == rangerate.Analytic {
		return r.AnalyticRateMS, r.HasAnalytic
	}
	return r.FiniteDiffRateMS, true
}

// Result is the outcome of a sweep.
type Result struct {
	Config  Config
	Rows    []Row // ordered by time, including invalid rows
	Valid   int
	Invalid int
	Summary Summary
}

// Harness runs validation sweeps for one station/satellite pair.
type Harness struct {
	est    *rangerate.Estimator
	logger *slog.Logger
}

// New creates a Harness.
func New(est *rangerate.Estimator, logger *slog.Logger) *Harness {
	if logger == nil {
		logger = slog.Default()
	}
	return &Harness{est: est, logger: logger}
}

// Run samples [Start, Start+Span] every Step, with Start truncated to whole
// seconds. Per-sample propagation failures only reduce the number of valid rows.
func (h *Harness) Run(ctx context.Context, cfg Config) (Result, error) {
	if err := cfg.validate(); err != nil {
		return Result{}, err
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	cfg.Start = cfg.Start.Truncate(propagation.Resolution)
	var times []time.Time
	for t := cfg.Start; !t.After(cfg.Start.Add(cfg.Span)); t = t.Add(cfg.Step) {
		times = append(times, t)
	}

	start := time.Now()
	rows, err := newWorkerPool(workers, h.est, cfg.DT, h.logger).run(ctx, times)
	if err != nil {
		return Result{}, err
	}
	metrics.ObserveSweep("validate", time.Since(start))

	res := Result{Config: cfg, Rows: rows}
	for _, r := range rows {
		if r.Valid {
			res.Valid++
		} else {
			res.Invalid++
		}
	}
	res.Summary = Summarize(rows, cfg.CarrierHz)

	if res.Summary.Compared > 0 {
		metrics.SetDisagreement(res.Summary.MaxAbsDiffMS)
	}
	if res.Summary.Implausible > 0 {
		h.logger.Warn("doppler shift beyond LEO bound; check units and frames",
			"count", res.Summary.Implausible,
			"bound_hz", doppler.MaxShift(cfg.CarrierHz),
		)
	}

	h.logger.Info("validation sweep complete",
		"samples", len(rows),
		"valid", res.Valid,
		"invalid", res.Invalid,
		"dt", cfg.DT.String(),
		"mean_diff_m_s", res.Summary.MeanDiffMS,
		"max_abs_diff_m_s", res.Summary.MaxAbsDiffMS,
		"duration", time.Since(start).String(),
	)
	return res, nil
}
