package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/star/dopplertrack/internal/passes"
)

// WriteTable prints the pass header and the tracking rows.
func WriteTable(w io.Writer, p passes.Pass, rows []Row) error {
	fmt.Fprintf(w, "AOS: %s UTC  (az %.1f°)\n", p.AOS.UTC().Format("2006-01-02 15:04:05"), p.AOSAzimuthDeg)
	fmt.Fprintf(w, "LOS: %s UTC  (az %.1f°)\n", p.LOS.UTC().Format("2006-01-02 15:04:05"), p.LOSAzimuthDeg)
	fmt.Fprintf(w, "Max elevation: %.1f° at %s UTC\n", p.MaxElevationDeg, p.MaxElevationTime.UTC().Format("15:04:05"))
	fmt.Fprintf(w, "Duration: %.1f min\n\n", p.Duration().Minutes())

	hasTx := false
	for _, r := range rows {
		if r.TxHz > 0 {
			hasTx = true
			break
		}
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	header := []string{"Time", "Elev°", "Az°", "Doppler(Hz)", "RX(MHz)"}
	if hasTx {
		header = append(header, "TX(MHz)")
	}
	fmt.Fprintln(tw, strings.Join(header, "\t")+"\t")

	for _, r := range rows {
		ts := r.Time.UTC().Format(time.TimeOnly)
		if r.BelowHorizon {
			fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t[below horizon]\t\t", ts, r.ElevationDeg, r.AzimuthDeg)
			if hasTx {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprintln(tw)
			continue
		}
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%+.2f\t%.6f\t", ts, r.ElevationDeg, r.AzimuthDeg, r.ShiftHz, r.RxHz/1e6)
		if hasTx {
			fmt.Fprintf(tw, "%.6f\t", r.TxHz/1e6)
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}
