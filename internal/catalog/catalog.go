// Package catalog is the built-in table of tracked satellites: identifiers,
// aliases and amateur-band frequencies used when no network source answers.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrUnknownSatellite is returned when a name or id is not in the table.
var ErrUnknownSatellite = errors.New("unknown satellite")

// Satellite is one catalog entry. UplinkHz is zero when there is no uplink.
type Satellite struct {
	Name       string   `json:"name"`
	Aliases    []string `json:"aliases,omitempty"`
	NORADID    int      `json:"norad_id"`
	DownlinkHz float64  `json:"downlink_hz"`
	UplinkHz   float64  `json:"uplink_hz,omitempty"`
	Mode       string   `json:"mode"`
}

// HasUplink reports whether the satellite has a known uplink.
func (s Satellite) HasUplink() bool { return s.UplinkHz > 0 }

var builtin = []Satellite{
	{Name: "ISS", Aliases: []string{"ZARYA"}, NORADID: 25544, DownlinkHz: 145_800_000, UplinkHz: 145_200_000, Mode: "FM"},
	{Name: "AO-91", Aliases: []string{"FOX-1B", "RADFXSAT"}, NORADID: 43017, DownlinkHz: 145_960_000, UplinkHz: 435_250_000, Mode: "FM"},
	{Name: "FO-29", Aliases: []string{"JAS-2"}, NORADID: 24278, DownlinkHz: 435_850_000, UplinkHz: 145_900_000, Mode: "SSB/CW"},
	{Name: "FUNCUBE-1", Aliases: []string{"AO-73"}, NORADID: 39444, DownlinkHz: 145_935_000, Mode: "BPSK"},
	{Name: "LILACSAT-2", Aliases: []string{"CAS-3H"}, NORADID: 40069, DownlinkHz: 437_200_000, Mode: "GMSK"},
}

// Catalog indexes satellites by NORAD id and by upper-cased name or alias.
type Catalog struct {
	byID   map[int]Satellite
	byName map[string]Satellite
}

// New builds a catalog from sats. Duplicate ids or names are rejected.
func New(sats []Satellite) (*Catalog, error) {
	c := &Catalog{
		byID:   make(map[int]Satellite, len(sats)),
		byName: make(map[string]Satellite, len(sats)*2),
	}
	for _, s := range sats {
		if s.NORADID <= 0 {
			return nil, fmt.Errorf("satellite %q: invalid NORAD id %d", s.Name, s.NORADID)
		}
		if _, dup := c.byID[s.NORADID]; dup {
			return nil, fmt.Errorf("duplicate NORAD id %d", s.NORADID)
		}
		c.byID[s.NORADID] = s
		for _, n := range append([]string{s.Name}, s.Aliases...) {
			key := normalize(n)
			if _, dup := c.byName[key]; dup {
				return nil, fmt.Errorf("duplicate satellite name %q", n)
			}
			c.byName[key] = s
		}
	}
	return c, nil
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := New(builtin)
	if err != nil {
		panic(err)
	}
	return c
}

func normalize(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// Resolve finds a satellite by name, alias or NORAD id (as text).
func (c *Catalog) Resolve(nameOrID string) (Satellite, error) {
	if id, err := strconv.Atoi(strings.TrimSpace(nameOrID)); err == nil {
		return c.ByID(id)
	}
	if s, ok := c.byName[normalize(nameOrID)]; ok {
		return s, nil
	}
	return Satellite{}, fmt.Errorf("%q: %w", nameOrID, ErrUnknownSatellite)
}

// ByID finds a satellite by NORAD id.
func (c *Catalog) ByID(id int) (Satellite, error) {
	if s, ok := c.byID[id]; ok {
		return s, nil
	}
	return Satellite{}, fmt.Errorf("NORAD %d: %w", id, ErrUnknownSatellite)
}

// All returns every satellite ordered by NORAD id.
func (c *Catalog) All() []Satellite {
	out := make([]Satellite, 0, len(c.byID))
	for _, s := range c.byID {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NORADID < out[j].NORADID })
	return out
}
