package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/star/dopplertrack/internal/auth"
	"github.com/star/dopplertrack/internal/passes"
	"github.com/star/dopplertrack/internal/propagation"
	"github.com/star/dopplertrack/internal/rangerate"
	"github.com/star/dopplertrack/internal/report"
	"github.com/star/dopplertrack/internal/transform"
	"github.com/star/dopplertrack/internal/validation"
)

// defaultCarrierHz is used when no downlink can be resolved for the satellite.
const defaultCarrierHz = 437.5e6

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")

	v.SetDefault("station.name", "Buenos Aires")
	v.SetDefault("station.lat", -34.6037)
	v.SetDefault("station.lon", -58.3816)
	v.SetDefault("station.alt", 25.0)
	v.SetDefault("station.min_elevation", 10.0)

	v.SetDefault("satellite", "ISS")

	v.SetDefault("tle.file", "")
	v.SetDefault("tle.url", "")
	v.SetDefault("tle.fetch", true)
	v.SetDefault("tle.cache_dir", "/tmp/dopplertrack/tle")
	v.SetDefault("tle.cache_max_files", 5)
	v.SetDefault("tle.validity", propagation.DefaultValidity)

	v.SetDefault("frequency.carrier_hz", 0.0)
	v.SetDefault("frequency.uplink_hz", 0.0)
	v.SetDefault("frequency.lookup", true)
	v.SetDefault("frequency.satnogs_url", "")

	v.SetDefault("rangerate.strategy", "analytic")
	v.SetDefault("rangerate.dt", validation.DefaultDT)

	v.SetDefault("passes.step", passes.DefaultStep)
	v.SetDefault("passes.horizon", passes.DefaultHorizon)
	v.SetDefault("passes.precision", time.Second)
	v.SetDefault("passes.max", 5)

	v.SetDefault("track.step", report.DefaultStep)

	v.SetDefault("validate.start", "")
	v.SetDefault("validate.span", validation.DefaultSpan)
	v.SetDefault("validate.step", validation.DefaultStep)
	v.SetDefault("validate.output", "doppler_output.csv")
	v.SetDefault("validate.elevation", true)
	v.SetDefault("validate.workers", 0)

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.trust_proxy", false)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.token", "")
}

// configure wires DOPPLER_* env vars and the optional dopplertrack.toml into v.
// An explicit configFile must exist.
func configure(v *viper.Viper, configFile string) error {
	v.SetEnvPrefix("DOPPLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("dopplertrack")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/dopplertrack")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	return nil
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func loadStation(v *viper.Viper, logger *slog.Logger) (transform.Station, error) {
	lat, lon := v.GetFloat64("station.lat"), v.GetFloat64("station.lon")
	alt, minEl := v.GetFloat64("station.alt"), v.GetFloat64("station.min_elevation")

	if lat < -90 || lat > 90 {
		return transform.Station{}, fmt.Errorf("station latitude %v outside [-90, 90]", lat)
	}
	if lon < -180 || lon > 180 {
		return transform.Station{}, fmt.Errorf("station longitude %v outside [-180, 180]", lon)
	}
	if minEl < -90 || minEl >= 90 {
		return transform.Station{}, fmt.Errorf("minimum elevation %v outside [-90, 90)", minEl)
	}

	st := transform.NewStation(v.GetString("station.name"), lat, lon, alt, minEl)
	logger.Info("station config",
		"name", st.Name,
		"lat_deg", lat,
		"lon_deg", lon,
		"alt_m", alt,
		"min_elevation_deg", minEl,
	)
	return st, nil
}

type tleConfig struct {
	File          string
	URL           string
	Fetch         bool
	CacheDir      string
	CacheMaxFiles int
	Validity      time.Duration
}

func loadTLEConfig(v *viper.Viper, logger *slog.Logger) tleConfig {
	cfg := tleConfig{
		File:          v.GetString("tle.file"),
		URL:           v.GetString("tle.url"),
		Fetch:         v.GetBool("tle.fetch"),
		CacheDir:      v.GetString("tle.cache_dir"),
		CacheMaxFiles: v.GetInt("tle.cache_max_files"),
		Validity:      v.GetDuration("tle.validity"),
	}
	if cfg.CacheMaxFiles < 1 {
		logger.Warn("invalid tle.cache_max_files, using default", "value", cfg.CacheMaxFiles, "default", 5)
		cfg.CacheMaxFiles = 5
	}

	logger.Info("TLE config",
		"file", cfg.File,
		"fetch", cfg.Fetch,
		"cache_dir", cfg.CacheDir,
		"validity", cfg.Validity.String(),
	)
	return cfg
}

// loadStrategy reads the range-rate strategy. SGP4 resolves time to whole
// seconds, so a finite-difference step must be a whole number of seconds.
func loadStrategy(v *viper.Viper, logger *slog.Logger) (rangerate.Strategy, error) {
	dt := v.GetDuration("rangerate.dt")
	if dt < time.Second || dt%time.Second != 0 {
		return rangerate.Strategy{}, fmt.Errorf("rangerate.dt %s must be a whole number of seconds >= 1s", dt)
	}
	s, err := rangerate.ParseStrategy(v.GetString("rangerate.strategy"), dt)
	if err != nil {
		return rangerate.Strategy{}, err
	}
	logger.Info("range-rate config", "strategy", s.String(), "dt", dt.String())
	return s, nil
}

func loadPassConfig(v *viper.Viper, logger *slog.Logger) passes.Config {
	cfg := passes.Config{
		Step:      v.GetDuration("passes.step"),
		Horizon:   v.GetDuration("passes.horizon"),
		Precision: v.GetDuration("passes.precision"),
	}
	if cfg.Step <= 0 {
		logger.Warn("invalid passes.step, using default", "value", cfg.Step.String(), "default", passes.DefaultStep.String())
		cfg.Step = passes.DefaultStep
	}
	if cfg.Horizon < cfg.Step {
		logger.Warn("invalid passes.horizon, using default", "value", cfg.Horizon.String(), "default", passes.DefaultHorizon.String())
		cfg.Horizon = passes.DefaultHorizon
	}

	logger.Info("pass search config",
		"step_seconds", cfg.Step.Seconds(),
		"horizon_seconds", cfg.Horizon.Seconds(),
		"precision_seconds", cfg.Precision.Seconds(),
	)
	return cfg
}

func loadValidationConfig(v *viper.Viper, logger *slog.Logger, now time.Time, dt time.Duration) (validation.Config, error) {
	cfg := validation.Config{
		Start:   now,
		Span:    v.GetDuration("validate.span"),
		Step:    v.GetDuration("validate.step"),
		DT:      dt,
		Workers: v.GetInt("validate.workers"),
	}
	if s := v.GetString("validate.start"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return cfg, fmt.Errorf("validate.start: %w", err)
		}
		cfg.Start = t
	}
	cfg.Start = cfg.Start.Truncate(propagation.Resolution)
	if cfg.Step < propagation.Resolution || cfg.Step%propagation.Resolution != 0 {
		return cfg, fmt.Errorf("validate.step %s must be a whole number of seconds", cfg.Step)
	}

	logger.Info("validation config",
		"start", cfg.Start.Format(time.RFC3339),
		"span", cfg.Span.String(),
		"step", cfg.Step.String(),
		"dt", cfg.DT.String(),
		"workers", cfg.Workers,
	)
	return cfg, nil
}

func loadAuthConfig(v *viper.Viper, logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{
		Enabled: v.GetBool("auth.enabled"),
		Token:   v.GetString("auth.token"),
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%w (set DOPPLER_AUTH_TOKEN)", err)
	}
	if cfg.Enabled {
		logger.Info("auth enabled")
	}
	return cfg, nil
}
