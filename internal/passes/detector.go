// Package passes finds visibility windows (AOS to LOS) of a satellite over a
// ground station by a forward sweep at a fixed cadence.
package passes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/star/dopplertrack/internal/propagation"
	"github.com/star/dopplertrack/internal/rangerate"
	"github.com/star/dopplertrack/internal/transform"
)

// ErrNoPass is returned when the horizon holds no complete pass.
var ErrNoPass = errors.New("no pass found")

// State is the sweep state.
type State int

const (
	// Unknown holds until the first sample at or below the minimum elevation.
	// A pass already in progress at the start of the window is never reported.
	Unknown State = iota
	BelowHorizon
	InPass
)

func (s State) String() string {
	switch s {
	case Unknown:
		return "unknown"
	case BelowHorizon:
		return "below_horizon"
	case InPass:
		return "in_pass"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

const (
	DefaultStep    = time.Minute
	DefaultHorizon = 24 * time.Hour
)

// Config controls the sweep.
type Config struct {
	Step    time.Duration // sampling stride
	Horizon time.Duration // search window length
	// Precision, when positive, refines each boundary by bisection until it is
	// known to within Precision. Zero keeps sample-exact boundaries. Values
	// finer than propagation.Resolution are raised to it.
	Precision time.Duration
}

// Pass is one visibility window. AOS is the first instant above the minimum
// elevation and LOS the first instant back at or below it, so AOS < LOS.
type Pass struct {
	AOS              time.Time `json:"aos"`
	LOS              time.Time `json:"los"`
	DurationSeconds  float64   `json:"duration_seconds"`
	MaxElevationTime time.Time `json:"max_elevation_time"`
	MaxElevationDeg  float64   `json:"max_elevation_deg"`
	AOSAzimuthDeg    float64   `json:"aos_azimuth_deg"`
	LOSAzimuthDeg    float64   `json:"los_azimuth_deg"`
	MaxAzimuthDeg    float64   `json:"max_azimuth_deg"`
	// Skipped counts samples between AOS and LOS the propagator could not
	// produce.
	Skipped int `json:"skipped_samples"`
}

// Duration returns LOS − AOS.
func (p Pass) Duration() time.Duration { return p.LOS.Sub(p.AOS) }

// Contains reports whether t lies in [AOS, LOS].
func (p Pass) Contains(t time.Time) bool {
	return !t.Before(p.AOS) && !t.After(p.LOS)
}

// Detector sweeps one station/satellite pair.
type Detector struct {
	est    *rangerate.Estimator
	cfg    Config
	logger *slog.Logger
}

// NewDetector validates cfg and returns a Detector.
func NewDetector(est *rangerate.Estimator, cfg Config, logger *slog.Logger) (*Detector, error) {
	if cfg.Step <= 0 {
		return nil, fmt.Errorf("pass search step %s must be positive", cfg.Step)
	}
	if cfg.Horizon < cfg.Step {
		return nil, fmt.Errorf("pass search horizon %s shorter than step %s", cfg.Horizon, cfg.Step)
	}
	if cfg.Step%propagation.Resolution != 0 {
		return nil, fmt.Errorf("pass search step %s is not a multiple of %s", cfg.Step, propagation.Resolution)
	}
	if cfg.Precision < 0 {
		return nil, fmt.Errorf("boundary precision %s must not be negative", cfg.Precision)
	}
	if cfg.Precision > 0 && cfg.Precision < propagation.Resolution {
		cfg.Precision = propagation.Resolution
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{est: est, cfg: cfg, logger: logger}, nil
}

// Next returns the first complete pass whose AOS lies in [from, from+Horizon].
// A pass still open when the horizon ends is dropped. from is truncated to
// propagation.Resolution so every sample lands on the propagator's grid.
func (d *Detector) Next(ctx context.Context, from time.Time) (Pass, error) {
	from = from.Truncate(propagation.Resolution)
	return d.sweep(ctx, from, from.Add(d.cfg.Horizon))
}

// All returns up to max successive passes within [from, from+Horizon].
// max <= 0 means no limit.
func (d *Detector) All(ctx context.Context, from time.Time, max int) ([]Pass, error) {
	from = from.Truncate(propagation.Resolution)
	end := from.Add(d.cfg.Horizon)
	var out []Pass
	cursor := from
	for max <= 0 || len(out) < max {
		p, err := d.sweep(ctx, cursor, end)
		if errors.Is(err, ErrNoPass) {
			break
		}
		if err != nil {
			return out, err
		}
		out = append(out, p)
		// LOS is at or below the minimum, so the next sweep starts BelowHorizon.
		cursor = p.LOS
	}
	return out, nil
}

type sample struct {
	t     time.Time
	la    transform.LookAngles
	above bool
}

func (d *Detector) sweep(ctx context.Context, from, end time.Time) (Pass, error) {
	minEl := d.est.Station().MinElevationRad
	state := Unknown

	var (
		pass    Pass
		maxEl   = math.Inf(-1)
		last    sample
		haveOne bool
		skipped int
	)

	for t := from; !t.After(end); t = t.Add(d.cfg.Step) {
		if err := ctx.Err(); err != nil {
			return Pass{}, err
		}

		la, err := d.est.LookAngles(t)
		if err != nil {
			skipped++
			d.logger.Debug("pass sweep sample skipped", "time", t, "error", err)
			continue
		}
		cur := sample{t: t, la: la, above: la.ElevationRad > minEl}

		switch state {
		case Unknown:
			if !cur.above {
				state = BelowHorizon
			}
		case BelowHorizon:
			if cur.above {
				aos := d.boundary(last, cur, minEl)
				pass = Pass{AOS: aos.t, AOSAzimuthDeg: aos.la.AzimuthDeg()}
				maxEl = math.Inf(-1)
				skipped = 0
				state = InPass
			}
		case InPass:
			if !cur.above {
				los := d.boundary(last, cur, minEl)
				pass.LOS = los.t
				pass.LOSAzimuthDeg = los.la.AzimuthDeg()
				pass.DurationSeconds = pass.LOS.Sub(pass.AOS).Seconds()
				pass.Skipped = skipped
				d.logger.Info("pass found",
					"aos", pass.AOS,
					"los", pass.LOS,
					"max_elevation_deg", pass.MaxElevationDeg,
					"skipped", pass.Skipped,
				)
				return pass, nil
			}
		}

		if state == InPass && cur.la.ElevationRad > maxEl {
			maxEl = cur.la.ElevationRad
			pass.MaxElevationDeg = cur.la.ElevationDeg()
			pass.MaxElevationTime = cur.t
			pass.MaxAzimuthDeg = cur.la.AzimuthDeg()
		}

		last, haveOne = cur, true
	}

	if state == InPass {
		d.logger.Debug("pass open at end of horizon dropped", "aos", pass.AOS, "horizon_end", end)
	}
	if !haveOne {
		d.logger.Warn("pass sweep produced no samples", "from", from, "to", end, "skipped", skipped)
	}
	return Pass{}, ErrNoPass
}

// boundary returns the first instant in (prev.t, cur.t] on cur's side of the
// threshold, to within the configured precision. Without refinement it is cur.
// Midpoints stay on the propagation.Resolution grid.
func (d *Detector) boundary(prev, cur sample, minEl float64) sample {
	if d.cfg.Precision <= 0 {
		return cur
	}
	lo, hi := prev, cur
	for hi.t.Sub(lo.t) > d.cfg.Precision {
		half := (hi.t.Sub(lo.t) / 2).Truncate(propagation.Resolution)
		if half <= 0 {
			break
		}
		mid := lo.t.Add(half)
		la, err := d.est.LookAngles(mid)
		if err != nil {
			break
		}
		s := sample{t: mid, la: la, above: la.ElevationRad > minEl}
		if s.above == hi.above {
			hi = s
		} else {
			lo = s
		}
	}
	return hi
}
