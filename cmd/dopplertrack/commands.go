package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/star/dopplertrack/internal/api"
	"github.com/star/dopplertrack/internal/metrics"
	"github.com/star/dopplertrack/internal/passes"
	"github.com/star/dopplertrack/internal/propagation"
	"github.com/star/dopplertrack/internal/report"
	"github.com/star/dopplertrack/internal/validation"
)

// timeFlag parses an RFC 3339 flag value; empty means now. The result is
// truncated to whole seconds, the resolution of SGP4 states.
func (a *app) timeFlag(cmd *cobra.Command, name string) (time.Time, error) {
	s, err := cmd.Flags().GetString(name)
	if err != nil {
		return time.Time{}, err
	}
	t := a.now()
	if s != "" {
		if t, err = time.Parse(time.RFC3339, s); err != nil {
			return time.Time{}, fmt.Errorf("--%s: %w", name, err)
		}
	}
	return t.UTC().Truncate(propagation.Resolution), nil
}

func newNextPassCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "next-pass",
		Short: "List the upcoming AOS/LOS windows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.bind(cmd.Flags(), map[string]string{
				"passes.step":      "step",
				"passes.horizon":   "horizon",
				"passes.precision": "precision",
				"passes.max":       "max",
			})
			from, err := a.timeFlag(cmd, "from")
			if err != nil {
				return err
			}
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			det, err := passes.NewDetector(s.est, loadPassConfig(a.v, a.logger), a.logger)
			if err != nil {
				return err
			}

			start := time.Now()
			found, err := det.All(cmd.Context(), from, a.v.GetInt("passes.max"))
			if err != nil {
				return err
			}
			metrics.ObserveSweep("passes", time.Since(start))
			metrics.RecordPasses(len(found))

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (NORAD %d) over %s\n\n", s.entry.Name, s.entry.NORADID, s.station.Name)
			if len(found) == 0 {
				fmt.Fprintln(out, "No complete pass in the search horizon.")
				return nil
			}
			return writePasses(out, found)
		},
	}
	f := cmd.Flags()
	f.String("from", "", "search start, RFC 3339 (default: now)")
	f.Int("max", 5, "maximum number of passes (0: all in horizon)")
	f.Duration("step", passes.DefaultStep, "coarse sampling step")
	f.Duration("horizon", passes.DefaultHorizon, "search horizon")
	f.Duration("precision", time.Second, "refine AOS/LOS to this precision (0: step resolution)")
	return cmd
}

func writePasses(w io.Writer, ps []passes.Pass) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tAOS (UTC)\tLOS (UTC)\tDuration\tMax El°\tAOS Az°\tLOS Az°\t")
	for i, p := range ps {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.1f min\t%.1f\t%.1f\t%.1f\t\n",
			i+1,
			p.AOS.UTC().Format(time.DateTime),
			p.LOS.UTC().Format(time.DateTime),
			p.Duration().Minutes(),
			p.MaxElevationDeg,
			p.AOSAzimuthDeg,
			p.LOSAzimuthDeg,
		)
	}
	return tw.Flush()
}

func newTrackCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "track",
		Short: "Print the pointing and Doppler table for the next pass",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.bind(cmd.Flags(), map[string]string{
				"track.step":       "step",
				"passes.horizon":   "horizon",
				"passes.precision": "precision",
			})
			from, err := a.timeFlag(cmd, "from")
			if err != nil {
				return err
			}
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			det, err := passes.NewDetector(s.est, loadPassConfig(a.v, a.logger), a.logger)
			if err != nil {
				return err
			}

			p, err := det.Next(cmd.Context(), from)
			if err != nil {
				return err
			}
			metrics.RecordPasses(1)

			rows, err := report.Track(cmd.Context(), s.est, p, report.Options{
				Step:       a.v.GetDuration("track.step"),
				Strategy:   s.strategy,
				DownlinkHz: s.freq.DownlinkHz,
				UplinkHz:   s.freq.UplinkHz,
			}, a.logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (NORAD %d) over %s, downlink %.6f MHz (%s)\n",
				s.entry.Name, s.entry.NORADID, s.station.Name, s.freq.DownlinkHz/1e6, s.strategy)
			return report.WriteTable(out, p, rows)
		},
	}
	f := cmd.Flags()
	f.String("from", "", "search start, RFC 3339 (default: now)")
	f.Duration("step", report.DefaultStep, "tracking table cadence")
	f.Duration("horizon", passes.DefaultHorizon, "pass search horizon")
	f.Duration("precision", time.Second, "AOS/LOS refinement precision")
	return cmd
}

func newValidateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Sweep a window and export range, range-rate and Doppler to CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.bind(cmd.Flags(), map[string]string{
				"validate.start":     "start",
				"validate.span":      "span",
				"validate.step":      "step",
				"validate.output":    "output",
				"validate.elevation": "elevation",
				"validate.workers":   "workers",
			})
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			cfg, err := loadValidationConfig(a.v, a.logger, a.now().UTC(), a.v.GetDuration("rangerate.dt"))
			if err != nil {
				return err
			}
			cfg.CarrierHz = s.freq.DownlinkHz

			res, err := validation.New(s.est, a.logger).Run(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			path := a.v.GetString("validate.output")
			summaryOut := cmd.OutOrStdout()
			opts := validation.CSVOptions{
				CarrierHz: cfg.CarrierHz,
				Strategy:  s.strategy.Kind,
				Elevation: a.v.GetBool("validate.elevation"),
			}
			var n int
			if path == "-" {
				summaryOut = cmd.ErrOrStderr()
				n, err = validation.WriteCSV(cmd.OutOrStdout(), res.Rows, opts)
			} else {
				n, err = writeCSVFile(path, res.Rows, opts)
			}
			if err != nil {
				return err
			}
			a.logger.Info("csv written", "path", path, "rows", n)
			return writeSummary(summaryOut, res, n)
		},
	}
	f := cmd.Flags()
	f.String("start", "", "sweep start, RFC 3339 (default: now)")
	f.Duration("span", validation.DefaultSpan, "sweep length")
	f.Duration("step", validation.DefaultStep, "sampling step")
	f.StringP("output", "o", "doppler_output.csv", "CSV path, or - for stdout")
	f.Bool("elevation", true, "append the elevation_deg column")
	f.Int("workers", 0, "parallel samplers (0: GOMAXPROCS)")
	return cmd
}

func writeCSVFile(path string, rows []validation.Row, opts validation.CSVOptions) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}
	n, err := validation.WriteCSV(f, rows, opts)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close %s: %w", path, cerr)
	}
	return n, err
}

func writeSummary(w io.Writer, res validation.Result, written int) error {
	sum := res.Summary
	fmt.Fprintf(w, "samples: %d valid, %d invalid, %d written\n", res.Valid, res.Invalid, written)
	if sum.Compared > 0 {
		fmt.Fprintf(w, "fd - analytic: mean %+.3f m/s, std %.3f m/s, rms %.3f m/s, max |%.3f| m/s over %d samples\n",
			sum.MeanDiffMS, sum.StdDiffMS, sum.RMSDiffMS, sum.MaxAbsDiffMS, sum.Compared)
	}
	if res.Valid > 0 {
		fmt.Fprintf(w, "doppler: min %+.0f Hz, max %+.0f Hz, mean %+.0f Hz, span %.0f Hz\n",
			sum.MinShiftHz, sum.MaxShiftHz, sum.MeanShiftHz, sum.SpanHz())
	}
	if sum.Implausible > 0 {
		fmt.Fprintf(w, "warning: %d shifts exceed the LEO bound\n", sum.Implausible)
	}
	return nil
}

func newDtStudyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dt-study",
		Short: "Compare finite-difference steps against the analytic range-rate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			at, err := a.timeFlag(cmd, "at")
			if err != nil {
				return err
			}
			steps, err := cmd.Flags().GetDurationSlice("steps")
			if err != nil {
				return err
			}
			for _, dt := range steps {
				if dt < time.Second || dt%time.Second != 0 {
					return fmt.Errorf("--steps: %s must be a whole number of seconds >= 1s", dt)
				}
			}
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			st, err := validation.DtStudy(s.est, at, s.freq.DownlinkHz, steps)
			if err != nil {
				return err
			}
			return writeStudy(cmd.OutOrStdout(), st)
		},
	}
	f := cmd.Flags()
	f.String("at", "", "evaluation instant, RFC 3339 (default: now)")
	f.DurationSlice("steps", validation.DefaultStudySteps, "finite-difference steps to compare")
	return cmd
}

func writeStudy(w io.Writer, st validation.Study) error {
	fmt.Fprintf(w, "t = %s, carrier %.3f MHz, elevation %.2f°\n",
		st.Time.UTC().Format(time.RFC3339), st.CarrierHz/1e6, st.ElevationDeg)
	if st.HasAnalytic {
		fmt.Fprintf(w, "analytic shift %+.2f Hz\n", st.AnalyticShiftHz)
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "dt\trange-rate (m/s)\tshift (Hz)\terror (Hz)\t")
	for _, p := range st.Points {
		errCol := "-"
		if st.HasAnalytic {
			errCol = fmt.Sprintf("%+.3f", p.ErrorHz)
		}
		fmt.Fprintf(tw, "%s\t%.3f\t%+.2f\t%s\t\n", p.DT, p.RangeRateMS, p.ShiftHz, errCol)
	}
	return tw.Flush()
}

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve observations, passes and Doppler over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.bind(cmd.Flags(), map[string]string{
				"http.addr":        "addr",
				"http.trust_proxy": "trust-proxy",
				"auth.enabled":     "auth",
				"passes.step":      "pass-step",
				"passes.horizon":   "horizon",
				"passes.precision": "precision",
			})
			authCfg, err := loadAuthConfig(a.v, a.logger)
			if err != nil {
				return err
			}

			// Graceful shutdown on SIGINT/SIGTERM.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			s, err := a.open(ctx)
			if err != nil {
				return err
			}
			svc := &api.Service{
				Estimator: s.est,
				Satellite: api.Satellite{Name: s.entry.Name, NORADID: s.entry.NORADID, Epoch: s.entry.Epoch},
				CarrierHz: s.freq.DownlinkHz,
				DefaultDT: a.v.GetDuration("rangerate.dt"),
				Passes:    loadPassConfig(a.v, a.logger),
				Catalog:   s.catalog,
				Resolver:  s.resolver,
				Logger:    a.logger,
				Validity:  s.tleConfig.Validity,
				Now:       a.now,
			}
			addr := a.v.GetString("http.addr")
			srv := api.NewServer(api.Options{
				Addr:       addr,
				Auth:       authCfg,
				TrustProxy: a.v.GetBool("http.trust_proxy"),
			}, a.logger, svc)

			go trackTLEAge(ctx, s.entry.Epoch, a.now)

			errc := make(chan error, 1)
			go func() {
				a.logger.Info("starting server", "addr", addr, "auth_enabled", authCfg.Enabled, "norad_id", s.entry.NORADID)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errc <- err
				}
			}()

			select {
			case err := <-errc:
				return fmt.Errorf("server listen: %w", err)
			case <-ctx.Done():
			}
			a.logger.Info("shutting down server...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown: %w", err)
			}
			a.logger.Info("server stopped")
			return nil
		},
	}
	f := cmd.Flags()
	f.String("addr", ":8080", "listen address")
	f.Bool("trust-proxy", false, "take the client IP from X-Forwarded-For / X-Real-IP")
	f.Bool("auth", false, "require a bearer token (DOPPLER_AUTH_TOKEN) on /api routes")
	f.Duration("pass-step", passes.DefaultStep, "pass search sampling step")
	f.Duration("horizon", passes.DefaultHorizon, "default pass search horizon")
	f.Duration("precision", time.Second, "AOS/LOS refinement precision")
	return cmd
}

// trackTLEAge keeps the element set age gauge current until ctx ends.
func trackTLEAge(ctx context.Context, epoch time.Time, now func() time.Time) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		metrics.SetTLEAge(now().Sub(epoch).Seconds())
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}
