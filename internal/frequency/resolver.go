package frequency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/star/dopplertrack/internal/catalog"
)

// ErrNoDownlink is returned when no source knows a downlink for the satellite.
var ErrNoDownlink = errors.New("no downlink frequency")

// Sources of an Info.
const (
	SourceSatNOGS = "satnogs"
	SourceCatalog = "catalog"
)

// Info is the resolved frequency plan of one satellite.
type Info struct {
	Name       string  `json:"name"`
	NORADID    int     `json:"norad_id"`
	DownlinkHz float64 `json:"downlink_hz"`
	UplinkHz   float64 `json:"uplink_hz,omitempty"`
	Mode       string  `json:"mode"`
	Source     string  `json:"source"`
}

// Resolver combines the SatNOGS client with the catalog. A nil client
// resolves from the catalog only.
type Resolver struct {
	client  *Client
	catalog *catalog.Catalog
	logger  *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(client *Client, cat *catalog.Catalog, logger *slog.Logger) *Resolver {
	return &Resolver{client: client, catalog: cat, logger: logger}
}

// Lookup resolves nameOrID (catalog name, alias or NORAD id) to frequencies.
// A name must be in the catalog; a numeric id need not be.
func (r *Resolver) Lookup(ctx context.Context, nameOrID string) (Info, error) {
	id, err := strconv.Atoi(strings.TrimSpace(nameOrID))
	if err != nil {
		sat, err := r.catalog.Resolve(nameOrID)
		if err != nil {
			return Info{}, err
		}
		id = sat.NORADID
	}

	if r.client != nil {
		info, err := r.fromSatNOGS(ctx, id)
		if err == nil {
			return info, nil
		}
		r.logger.Warn("satnogs lookup failed, using catalog", "norad_id", id, "error", err)
	}

	sat, err := r.catalog.ByID(id)
	if err != nil {
		return Info{}, fmt.Errorf("NORAD %d: %w", id, ErrNoDownlink)
	}
	r.logger.Info("frequency resolved", "source", SourceCatalog, "norad_id", id, "downlink_hz", sat.DownlinkHz)
	return Info{
		Name:       sat.Name,
		NORADID:    sat.NORADID,
		DownlinkHz: sat.DownlinkHz,
		UplinkHz:   sat.UplinkHz,
		Mode:       sat.Mode,
		Source:     SourceCatalog,
	}, nil
}

// fromSatNOGS picks the first active transmitter with a downlink.
func (r *Resolver) fromSatNOGS(ctx context.Context, id int) (Info, error) {
	txs, err := r.client.Transmitters(ctx, id)
	if err != nil {
		return Info{}, err
	}
	for _, tx := range txs {
		if tx.DownlinkLow == nil || *tx.DownlinkLow <= 0 {
			continue
		}
		info := Info{
			Name:       tx.Description,
			NORADID:    id,
			DownlinkHz: *tx.DownlinkLow,
			Mode:       tx.Mode,
			Source:     SourceSatNOGS,
		}
		if tx.UplinkLow != nil {
			info.UplinkHz = *tx.UplinkLow
		}
		r.logger.Info("frequency resolved", "source", SourceSatNOGS, "norad_id", id, "downlink_hz", info.DownlinkHz, "description", tx.Description)
		return info, nil
	}
	return Info{}, fmt.Errorf("%d transmitters, none with a downlink: %w", len(txs), ErrNoDownlink)
}
