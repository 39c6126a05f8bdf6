package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// app carries what every subcommand needs once flags and config are resolved.
type app struct {
	v          *viper.Viper
	configFile string
	logger     *slog.Logger
	now        func() time.Time
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New(), now: time.Now}
	setDefaults(a.v)

	root := &cobra.Command{
		Use:   "dopplertrack",
		Short: "Predict LEO satellite passes and Doppler-corrected frequencies",
		Long: `dopplertrack computes slant range, range-rate and Doppler shift between a
ground station and a low-Earth-orbit satellite, finds AOS/LOS visibility
windows, and exports validation traces comparing the analytic and
finite-difference range-rate estimates.

Configuration comes from flags, DOPPLER_* environment variables
(e.g. DOPPLER_STATION_LAT) and an optional dopplertrack.toml.

Examples:
  dopplertrack next-pass --satellite ISS
  dopplertrack track --satellite AO-91 --lat 40.4 --lon -3.7
  dopplertrack validate --span 90m --dt 10s --output doppler_output.csv
  dopplertrack dt-study --satellite 25544
  dopplertrack serve --addr :8080`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (default: ./dopplertrack.toml or $HOME/.config/dopplertrack/dopplertrack.toml)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("station-name", "Buenos Aires", "ground station name")
	pf.Float64("lat", -34.6037, "station latitude in degrees")
	pf.Float64("lon", -58.3816, "station longitude in degrees")
	pf.Float64("alt", 25, "station altitude above the WGS-84 ellipsoid in meters")
	pf.Float64("min-elevation", 10, "minimum elevation for a pass in degrees")
	pf.StringP("satellite", "s", "ISS", "satellite name, alias or NORAD id")
	pf.String("tle-file", "", "read the element set from this file instead of CelesTrak")
	pf.Bool("fetch", true, "download element sets from CelesTrak (cache is used as fallback)")
	pf.Float64("freq", 0, "downlink carrier in Hz (0: look up from SatNOGS / catalog)")
	pf.Float64("uplink", 0, "uplink frequency in Hz for pre-compensation (0: from lookup, if any)")
	pf.String("strategy", "analytic", "range-rate strategy (analytic, fd)")
	pf.Duration("dt", 10*time.Second, "finite-difference step (whole seconds)")

	a.bind(pf, map[string]string{
		"log.level":             "log-level",
		"station.name":          "station-name",
		"station.lat":           "lat",
		"station.lon":           "lon",
		"station.alt":           "alt",
		"station.min_elevation": "min-elevation",
		"satellite":             "satellite",
		"tle.file":              "tle-file",
		"tle.fetch":             "fetch",
		"frequency.carrier_hz":  "freq",
		"frequency.uplink_hz":   "uplink",
		"rangerate.strategy":    "strategy",
		"rangerate.dt":          "dt",
	})

	root.AddCommand(
		newNextPassCmd(a),
		newTrackCmd(a),
		newValidateCmd(a),
		newDtStudyCmd(a),
		newServeCmd(a),
	)
	return root
}

// bind maps viper keys to flags; a flag overrides env and file only when set.
func (a *app) bind(fs *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := a.v.BindPFlag(key, fs.Lookup(name)); err != nil {
			panic(fmt.Sprintf("binding flag %q: %v", name, err))
		}
	}
}

// init reads env and config file, then builds the JSON logger. Logs go to
// stderr so tables and CSV on stdout stay clean.
func (a *app) init() error {
	if err := configure(a.v, a.configFile); err != nil {
		return err
	}
	a.logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(a.v.GetString("log.level")),
	}))
	if f := a.v.ConfigFileUsed(); f != "" {
		a.logger.Info("config file loaded", "path", f)
	}
	return nil
}
