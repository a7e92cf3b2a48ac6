package ingest

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"waypoint-optimizer/internal/geocoding"
	"waypoint-optimizer/internal/models"
)

func workbook(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

type stubGeocoder struct {
	places map[string]models.Coordinates
	calls  []string
}

func (s *stubGeocoder) Geocode(ctx context.Context, query string) (*geocoding.Place, error) {
	s.calls = append(s.calls, query)
	c, ok := s.places[query]
	if !ok {
		return nil, &geocoding.ErrGeocodingFailed{Query: query, Reason: "no results found"}
	}
	return &geocoding.Place{Coords: c, DisplayName: query}, nil
}

func (s *stubGeocoder) GeocodeWithRetry(ctx context.Context, query string, maxRetries int) (*geocoding.Place, error) {
	return s.Geocode(ctx, query)
}

func (s *stubGeocoder) Search(ctx context.Context, query string, limit int) ([]geocoding.Place, error) {
	p, err := s.Geocode(ctx, query)
	if err != nil {
		return nil, err
	}
	return []geocoding.Place{*p}, nil
}

func TestReadXLSXWithIndonesianHeaders(t *testing.T) {
	buf := workbook(t, [][]any{
		{"Kota", "Kelurahan", "Nama Toko", "Latitude", "Longitude"},
		{"Jakarta Pusat", "Menteng", "Toko Maju", -6.1951, 106.8305},
		{"Jakarta Selatan", "Kebayoran", "Toko Jaya", -6.2441, 106.8003},
	})

	res, err := Read(context.Background(), "stores.xlsx", buf, Options{})

	require.NoError(t, err)
	require.Len(t, res.Waypoints, 2)
	assert.Empty(t, res.Skipped)

	first := res.Waypoints[0]
	assert.Equal(t, 0, first.ID)
	assert.Equal(t, "Toko Maju", first.Name)
	assert.Equal(t, "Jakarta Pusat", first.City)
	assert.Equal(t, "Menteng", first.District)
	assert.InDelta(t, -6.1951, first.Coords.Lat, 1e-9)
	assert.InDelta(t, 106.8305, first.Coords.Lng, 1e-9)
	assert.Equal(t, 1, res.Waypoints[1].ID)
}

func TestReadXLSXHeaderBelowTitleRows(t *testing.T) {
	buf := workbook(t, [][]any{
		{"Store survey 2024"},
		{},
		{"Name", "City", "Lat", "Lng"},
		{"A", "Bandung", "-6.9", "107.6"},
	})

	res, err := ReadXLSX(context.Background(), buf, Options{})

	require.NoError(t, err)
	require.Len(t, res.Waypoints, 1)
	assert.Equal(t, "A", res.Waypoints[0].Name)
	assert.Equal(t, "Bandung", res.Waypoints[0].City)
}

func TestReadSkipsInvalidRows(t *testing.T) {
	buf := workbook(t, [][]any{
		{"Nama Toko", "Latitude", "Longitude"},
		{"ok", -6.2, 106.8},
		{"missing", "", 106.8},
		{"garbage", "north", 106.8},
		{"out of range", 95, 106.8},
		{},
		{"also ok", -6.3, 106.9},
	})

	res, err := ReadXLSX(context.Background(), buf, Options{})

	require.NoError(t, err)
	require.Len(t, res.Waypoints, 2)
	assert.Equal(t, "also ok", res.Waypoints[1].Name)
	assert.Equal(t, 1, res.Waypoints[1].ID)

	require.Len(t, res.Skipped, 3)
	assert.Equal(t, 3, res.Skipped[0].Row)
	assert.Contains(t, res.Skipped[0].Reason, "missing")
	assert.Contains(t, res.Skipped[1].Reason, "invalid latitude")
	assert.Contains(t, res.Skipped[2].Reason, "out of range")
}

func TestReadMaxRowsAppliesBeforeFiltering(t *testing.T) {
	buf := workbook(t, [][]any{
		{"Name", "Latitude", "Longitude"},
		{"a", -6.1, 106.1},
		{"b", "", ""},
		{"c", -6.3, 106.3},
		{"d", -6.4, 106.4},
	})

	res, err := ReadXLSX(context.Background(), buf, Options{MaxRows: 3})

	require.NoError(t, err)
	names := []string{}
	for _, w := range res.Waypoints {
		names = append(names, w.Name)
	}
	assert.Equal(t, []string{"a", "c"}, names)
	assert.Len(t, res.Skipped, 1)
}

func TestReadCSVWithSemicolonsAndDecimalComma(t *testing.T) {
	data := "Nama Toko;Kota;Latitude;Longitude\n" +
		"Toko A;Bogor;-6,5950;106,8166\n" +
		"Toko B;Depok;-6.4025;106.7942\n"

	res, err := Read(context.Background(), "stores.CSV", strings.NewReader(data), Options{})

	require.NoError(t, err)
	require.Len(t, res.Waypoints, 2)
	assert.InDelta(t, -6.5950, res.Waypoints[0].Coords.Lat, 1e-9)
	assert.InDelta(t, 106.8166, res.Waypoints[0].Coords.Lng, 1e-9)
	assert.Equal(t, "Depok", res.Waypoints[1].City)
}

func TestReadCSVWithCommas(t *testing.T) {
	data := "name,lat,lon\nx,1.5,2.5\n"

	res, err := ReadCSV(context.Background(), strings.NewReader(data), Options{})

	require.NoError(t, err)
	require.Len(t, res.Waypoints, 1)
	assert.Equal(t, models.Coordinates{Lat: 1.5, Lng: 2.5}, res.Waypoints[0].Coords)
}

func TestReadGeocodesMissingCoordinates(t *testing.T) {
	geo := &stubGeocoder{places: map[string]models.Coordinates{
		"Toko Baru, Menteng, Jakarta": {Lat: -6.19, Lng: 106.83},
	}}
	buf := workbook(t, [][]any{
		{"Kota", "Kelurahan", "Nama Toko", "Latitude", "Longitude"},
		{"Jakarta", "Menteng", "Toko Baru", "", ""},
		{"Jakarta", "Gambir", "Toko Hilang", "", ""},
	})

	res, err := ReadXLSX(context.Background(), buf, Options{Geocoder: geo})

	require.NoError(t, err)
	require.Len(t, res.Waypoints, 1)
	assert.Equal(t, 1, res.Geocoded)
	assert.Equal(t, models.Coordinates{Lat: -6.19, Lng: 106.83}, res.Waypoints[0].Coords)
	require.Len(t, res.Skipped, 1)
	assert.Contains(t, res.Skipped[0].Reason, "Toko Hilang")
	assert.Equal(t, []string{"Toko Baru, Menteng, Jakarta", "Toko Hilang, Gambir, Jakarta"}, geo.calls)
}

func TestReadErrors(t *testing.T) {
	t.Run("unsupported extension", func(t *testing.T) {
		_, err := Read(context.Background(), "stores.txt", strings.NewReader(""), Options{})
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("not a workbook", func(t *testing.T) {
		_, err := Read(context.Background(), "stores.xlsx", strings.NewReader("plain text"), Options{})
		var parseErr *ErrParseFailed
		assert.True(t, errors.As(err, &parseErr))
	})

	t.Run("no coordinate header", func(t *testing.T) {
		buf := workbook(t, [][]any{{"Name", "Address"}, {"a", "somewhere"}})
		_, err := ReadXLSX(context.Background(), buf, Options{})
		var parseErr *ErrParseFailed
		require.True(t, errors.As(err, &parseErr))
		assert.Contains(t, parseErr.Error(), "Latitude/Longitude")
	})

	t.Run("no usable rows", func(t *testing.T) {
		buf := workbook(t, [][]any{{"Latitude", "Longitude"}, {"", ""}, {"x", "y"}})
		res, err := ReadXLSX(context.Background(), buf, Options{})
		assert.ErrorIs(t, err, ErrNoWaypoints)
		require.NotNil(t, res)
		assert.Len(t, res.Skipped, 1)
	})

	t.Run("missing sheet", func(t *testing.T) {
		buf := workbook(t, [][]any{{"Latitude", "Longitude"}})
		_, err := ReadXLSX(context.Background(), buf, Options{Sheet: "Stores"})
		var parseErr *ErrParseFailed
		assert.True(t, errors.As(err, &parseErr))
	})
}

func TestReadHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ReadCSV(ctx, strings.NewReader("lat,lng\n1,2\n"), Options{})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteRunXLSXRoundTripsStops(t *testing.T) {
	run := &models.Run{
		ID:          "run-1",
		DatasetName: "stores.xlsx",
		Algorithm:   "ga",
		Route:       []int{2, 0, 1},
		StopNames:   []string{"C", "A", "B"},
		DistanceKm:  12.5,
		BaselineKm:  14,
		Seed:        42,
		Start:       models.Coordinates{Lat: -6.1, Lng: 106.7},
		End:         models.Coordinates{Lat: -6.3, Lng: 106.9},
		Path: []models.Coordinates{
			{Lat: -6.1, Lng: 106.7}, {Lat: -6.25, Lng: 106.75}, {Lat: -6.15, Lng: 106.85},
			{Lat: -6.2, Lng: 106.8}, {Lat: -6.3, Lng: 106.9},
		},
		CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}

	buf, err := WriteRunXLSX(run)
	require.NoError(t, err)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(routeSheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"Stop", "Waypoint", "Name", "Latitude", "Longitude"}, rows[0])
	assert.Equal(t, "Start", rows[1][2])
	assert.Equal(t, []string{"1", "2", "C", "-6.25", "106.75"}, rows[2])
	assert.Equal(t, []string{"2", "0", "A", "-6.15", "106.85"}, rows[3])
	assert.Equal(t, []string{"3", "1", "B", "-6.2", "106.8"}, rows[4])
	assert.Equal(t, "End", rows[5][2])
	assert.Equal(t, []string{"Algorithm", "ga"}, rows[7])
	assert.Equal(t, []string{"Distance (km)", "12.5"}, rows[9])
}

func TestWriteRunXLSXWithoutPathLeavesCoordinatesBlank(t *testing.T) {
	run := &models.Run{Algorithm: "nn", Route: []int{0}, StopNames: []string{"A"}}

	buf, err := WriteRunXLSX(run)
	require.NoError(t, err)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(routeSheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "0", "A"}, rows[2])
}
