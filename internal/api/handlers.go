package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/star/dopplertrack/internal/catalog"
	"github.com/star/dopplertrack/internal/doppler"
	"github.com/star/dopplertrack/internal/frequency"
	"github.com/star/dopplertrack/internal/metrics"
	"github.com/star/dopplertrack/internal/passes"
	"github.com/star/dopplertrack/internal/propagation"
	"github.com/star/dopplertrack/internal/rangerate"
	"github.com/star/dopplertrack/internal/transform"
)

type observationResponse struct {
	Satellite    Satellite               `json:"satellite"`
	Time         time.Time               `json:"time"`
	Strategy     string                  `json:"strategy"`
	AzimuthDeg   float64                 `json:"azimuth_deg"`
	ElevationDeg float64                 `json:"elevation_deg"`
	RangeM       float64                 `json:"range_m"`
	RangeRateMS  float64                 `json:"range_rate_m_s"`
	Visible      bool                    `json:"visible"`
	SubSatellite transform.GeodeticPoint `json:"sub_satellite"`
	CarrierHz    float64                 `json:"carrier_hz"`
	ShiftHz      float64                 `json:"shift_hz"`
	RxHz         float64                 `json:"rx_hz"`
}

type dopplerResponse struct {
	Time        time.Time `json:"time"`
	Strategy    string    `json:"strategy"`
	RangeRateMS float64   `json:"range_rate_m_s"`
	TransmitHz  float64   `json:"transmit_hz"`
	ShiftedHz   float64   `json:"shifted_hz"`
	ShiftHz     float64   `json:"shift_hz"`
	UplinkHz    float64   `json:"uplink_hz"`
	Plausible   bool      `json:"plausible"`
}

type passResponse struct {
	Satellite Satellite   `json:"satellite"`
	Pass      passes.Pass `json:"pass"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseTime reads an RFC 3339 query value, defaulting to now, truncated to
// whole seconds.
func parseTime(r *http.Request, key string, now time.Time) (time.Time, error) {
	t := now
	if v := r.URL.Query().Get(key); v != "" {
		var err error
		if t, err = time.Parse(time.RFC3339, v); err != nil {
			return time.Time{}, fmt.Errorf("invalid %s: want RFC 3339", key)
		}
	}
	return t.Truncate(propagation.Resolution), nil
}

// parseDuration accepts Go durations ("90m") or plain seconds ("5400").
func parseDuration(v string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(v)
}

func parseStrategy(r *http.Request, defaultDT time.Duration) (rangerate.Strategy, error) {
	dt := defaultDT
	if v := r.URL.Query().Get("dt"); v != "" {
		d, err := parseDuration(v)
		if err != nil || d%time.Second != 0 {
			return rangerate.Strategy{}, fmt.Errorf("invalid dt: want whole seconds")
		}
		dt = d
	}
	return rangerate.ParseStrategy(r.URL.Query().Get("strategy"), dt)
}

// estimateStatus maps estimator errors to HTTP status codes.
func estimateStatus(err error) int {
	switch {
	case errors.Is(err, propagation.ErrUnavailable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, rangerate.ErrNoVelocity), errors.Is(err, rangerate.ErrInvalidStep):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func observationHandler(logger *slog.Logger, svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		at, err := parseTime(r, "at", svc.now())
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		strategy, err := parseStrategy(r, svc.DefaultDT)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		obs, err := svc.Estimator.Estimate(at, strategy)
		if err != nil {
			logger.Warn("observation failed", "norad_id", svc.Satellite.NORADID, "time", at, "error", err)
			writeError(w, estimateStatus(err), err.Error())
			return
		}

		d := doppler.Compute(svc.CarrierHz, obs.RangeRateMS)
		if !doppler.Plausible(svc.CarrierHz, d.ShiftHz) {
			metrics.RecordImplausible()
		}
		writeJSON(w, http.StatusOK, observationResponse{
			Satellite:    svc.Satellite,
			Time:         obs.Time,
			Strategy:     strategy.String(),
			AzimuthDeg:   obs.AzimuthDeg(),
			ElevationDeg: obs.ElevationDeg(),
			RangeM:       obs.RangeM,
			RangeRateMS:  obs.RangeRateMS,
			Visible:      obs.ElevationRad > svc.Estimator.Station().MinElevationRad,
			SubSatellite: obs.SubSatellite(),
			CarrierHz:    svc.CarrierHz,
			ShiftHz:      d.ShiftHz,
			RxHz:         d.ShiftedHz,
		})
	}
}

func dopplerHandler(logger *slog.Logger, svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		at, err := parseTime(r, "at", svc.now())
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		freq := svc.CarrierHz
		if v := r.URL.Query().Get("freq"); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil || f <= 0 {
				writeError(w, http.StatusBadRequest, "invalid freq: want Hz")
				return
			}
			freq = f
		}
		strategy, err := parseStrategy(r, svc.DefaultDT)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		obs, err := svc.Estimator.Estimate(at, strategy)
		if err != nil {
			logger.Warn("doppler failed", "norad_id", svc.Satellite.NORADID, "time", at, "error", err)
			writeError(w, estimateStatus(err), err.Error())
			return
		}
		d := doppler.Compute(freq, obs.RangeRateMS)
		writeJSON(w, http.StatusOK, dopplerResponse{
			Time:        at,
			Strategy:    strategy.String(),
			RangeRateMS: obs.RangeRateMS,
			TransmitHz:  d.TransmitHz,
			ShiftedHz:   d.ShiftedHz,
			ShiftHz:     d.ShiftHz,
			UplinkHz:    doppler.Uplink(freq, obs.RangeRateMS),
			Plausible:   doppler.Plausible(freq, d.ShiftHz),
		})
	}
}

func nextPassHandler(logger *slog.Logger, svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, err := parseTime(r, "from", svc.now())
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		var horizon time.Duration
		if v := r.URL.Query().Get("horizon"); v != "" {
			if horizon, err = parseDuration(v); err != nil || horizon <= 0 {
				writeError(w, http.StatusBadRequest, "invalid horizon")
				return
			}
		}

		det, err := svc.detector(horizon)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":              err.Error(),
				"max_horizon":        maxHorizon.String(),
				"max_search_samples": maxSearchSamples,
			})
			return
		}

		start := time.Now()
		p, err := det.Next(r.Context(), from)
		metrics.ObserveSweep("passes", time.Since(start))
		switch {
		case errors.Is(err, passes.ErrNoPass):
			writeError(w, http.StatusNotFound, err.Error())
			return
		case err != nil:
			logger.Warn("pass search failed", "norad_id", svc.Satellite.NORADID, "error", err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		metrics.RecordPasses(1)
		writeJSON(w, http.StatusOK, passResponse{Satellite: svc.Satellite, Pass: p})
	}
}

func satellitesHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Catalog.All())
	}
}

func satelliteHandler(logger *slog.Logger, svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, err := svc.Resolver.Lookup(r.Context(), r.PathValue("id"))
		switch {
		case errors.Is(err, catalog.ErrUnknownSatellite), errors.Is(err, frequency.ErrNoDownlink):
			writeError(w, http.StatusNotFound, err.Error())
			return
		case err != nil:
			logger.Warn("frequency lookup failed", "id", r.PathValue("id"), "error", err)
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}
