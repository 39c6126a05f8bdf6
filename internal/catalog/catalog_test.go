package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	c := Default()

	tests := []struct {
		query string
		want  int
	}{
		{"ISS", 25544},
		{"iss", 25544},
		{" zarya ", 25544},
		{"25544", 25544},
		{"AO-91", 43017},
		{"FOX-1B", 43017},
		{"radfxsat", 43017},
		{"FO-29", 24278},
		{"JAS-2", 24278},
		{"AO-73", 39444},
		{"FUNCUBE-1", 39444},
		{"CAS-3H", 40069},
		{"40069", 40069},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			s, err := c.Resolve(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.NORADID)
		})
	}
}

func TestResolveUnknown(t *testing.T) {
	c := Default()
	for _, q := range []string{"HUBBLE", "", "99999"} {
		_, err := c.Resolve(q)
		assert.ErrorIs(t, err, ErrUnknownSatellite, q)
	}
}

func TestFrequencies(t *testing.T) {
	c := Default()

	iss, err := c.ByID(25544)
	require.NoError(t, err)
	assert.Equal(t, 145_800_000.0, iss.DownlinkHz)
	assert.Equal(t, 145_200_000.0, iss.UplinkHz)
	assert.Equal(t, "FM", iss.Mode)
	assert.True(t, iss.HasUplink())

	lilac, err := c.Resolve("LILACSAT-2")
	require.NoError(t, err)
	assert.Equal(t, 437_200_000.0, lilac.DownlinkHz)
	assert.False(t, lilac.HasUplink())
}

func TestAllSorted(t *testing.T) {
	all := Default().All()
	require.Len(t, all, 5)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].NORADID, all[i].NORADID)
	}
}

func TestNewRejectsDuplicates(t *testing.T) {
	_, err := New([]Satellite{
		{Name: "A", NORADID: 1, DownlinkHz: 1},
		{Name: "B", NORADID: 1, DownlinkHz: 1},
	})
	assert.Error(t, err)

	_, err = New([]Satellite{
		{Name: "A", NORADID: 1, DownlinkHz: 1},
		{Name: "B", Aliases: []string{"a"}, NORADID: 2, DownlinkHz: 1},
	})
	assert.Error(t, err)

	_, err = New([]Satellite{{Name: "A", NORADID: 0}})
	assert.Error(t, err)
}
