package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	mumbai    = Coordinate{Lat: 19.0760, Lon: 72.8777}
	pune      = Coordinate{Lat: 18.5204, Lon: 73.8567}
	delhi     = Coordinate{Lat: 28.7041, Lon: 77.1025}
	bengaluru = Coordinate{Lat: 12.9716, Lon: 77.5946}
)

func TestDistanceKmKnownPair(t *testing.T) {
	d, err := DistanceKm(mumbai, pune)
	require.NoError(t, err)
	assert.InDelta(t, 120.15, d, 0.05)
}

func TestDistanceKmSymmetric(t *testing.T) {
	points := []Coordinate{mumbai, pune, delhi, bengaluru, {Lat: -33.86, Lon: 151.2}, {Lat: 90, Lon: 180}, {Lat: -90, Lon: -180}}
	for _, a := range points {
		for _, b := range points {
			ab, err := DistanceKm(a, b)
			require.NoError(t, err)
			ba, err := DistanceKm(b, a)
			require.NoError(t, err)
			assert.InDelta(t, ab, ba, 1e-6, "%v <-> %v", a, b)
		}
	}
}

func TestDistanceKmSamePointIsZero(t *testing.T) {
	for _, p := range []Coordinate{mumbai, delhi, {Lat: 0, Lon: 0}} {
		d, err := DistanceKm(p, p)
		require.NoError(t, err)
		assert.Equal(t, 0.0, d)
	}
}

func TestDistanceKmRejectsInvalidCoordinates(t *testing.T) {
	cases := []Coordinate{
		{Lat: 90.0001, Lon: 0},
		{Lat: -91, Lon: 0},
		{Lat: 0, Lon: 180.5},
		{Lat: 0, Lon: -181},
		{Lat: math.NaN(), Lon: 0},
	}
	for _, c := range cases {
		_, err := DistanceKm(mumbai, c)
		assert.ErrorIs(t, err, ErrInvalidCoordinate)
		_, err = DistanceKm(c, mumbai)
		assert.ErrorIs(t, err, ErrInvalidCoordinate)
	}
}

func TestRoundKm(t *testing.T) {
	assert.Equal(t, 12.35, RoundKm(12.345678))
	assert.Equal(t, 5.0, RoundKm(4.999))
	assert.Equal(t, 0.0, RoundKm(0))
}
