// Package report builds and prints the per-pass tracking table: antenna
// pointing and receiver tuning at a fixed cadence from AOS to LOS.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/star/dopplertrack/internal/doppler"
	"github.com/star/dopplertrack/internal/passes"
	"github.com/star/dopplertrack/internal/rangerate"
)

// DefaultStep is the tracking cadence.
const DefaultStep = 5 * time.Second

// Options controls Track.
type Options struct {
	Step       time.Duration
	Strategy   rangerate.Strategy
	DownlinkHz float64
	UplinkHz   float64 // zero disables the TX column
}

// Row is one line of the tracking table.
type Row struct {
	Time         time.Time `json:"time"`
	ElevationDeg float64   `json:"elevation_deg"`
	AzimuthDeg   float64   `json:"azimuth_deg"`
	RangeM       float64   `json:"range_m"`
	RangeRateMS  float64   `json:"range_rate_m_s"`
	ShiftHz      float64   `json:"shift_hz"`
	RxHz         float64   `json:"rx_hz"`
	TxHz         float64   `json:"tx_hz,omitempty"`
	// BelowHorizon marks samples at or under the minimum elevation, which the
	// table prints without tuning data.
	BelowHorizon bool `json:"below_horizon,omitempty"`
}

// Track samples p from AOS to LOS inclusive. Samples whose propagation fails
// are left out.
func Track(ctx context.Context, est *rangerate.Estimator, p passes.Pass, opts Options, logger *slog.Logger) ([]Row, error) {
	if opts.Step <= 0 {
		return nil, fmt.Errorf("tracking step %s must be positive", opts.Step)
	}
	if opts.DownlinkHz <= 0 {
		return nil, fmt.Errorf("downlink %v Hz must be positive", opts.DownlinkHz)
	}
	minEl := est.Station().MinElevationRad

	var rows []Row
	for t := p.AOS; !t.After(p.LOS); t = t.Add(opts.Step) {
		if err := ctx.Err(); err != nil {
			return rows, err
		}
		obs, err := est.Estimate(t, opts.Strategy)
		if err != nil {
			logger.Debug("tracking sample skipped", "time", t, "error", err)
			continue
		}

		row := Row{
			Time:         t,
			ElevationDeg: obs.ElevationDeg(),
			AzimuthDeg:   obs.AzimuthDeg(),
			RangeM:       obs.RangeM,
			RangeRateMS:  obs.RangeRateMS,
			BelowHorizon: obs.ElevationRad <= minEl,
		}
		if !row.BelowHorizon {
			d := doppler.Compute(opts.DownlinkHz, obs.RangeRateMS)
			row.ShiftHz = d.ShiftHz
			row.RxHz = d.ShiftedHz
			if opts.UplinkHz > 0 {
				row.TxHz = doppler.Uplink(opts.UplinkHz, obs.RangeRateMS)
			}
			if !doppler.Plausible(opts.DownlinkHz, d.ShiftHz) {
				logger.Warn("doppler shift beyond LEO bound", "time", t, "shift_hz", d.ShiftHz)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
