package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/xuri/excelize/v2"

	"waypoint-optimizer/internal/geocoding"
	"waypoint-optimizer/internal/models"
)

// headerSearchRows is how far down a sheet the header row may appear
const headerSearchRows = 10

var (
	// ErrUnsupportedFormat is returned for files that are neither xlsx nor csv
	ErrUnsupportedFormat = errors.New("unsupported file format: expected .xlsx or .csv")
	// ErrNoWaypoints is returned when no row yields usable coordinates
	ErrNoWaypoints = errors.New("no rows with usable coordinates")
)

// ErrParseFailed is returned when a file is readable but its layout is not
type ErrParseFailed struct {
	Row    int
	Reason string
}

func (e *ErrParseFailed) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("parse failed at row %d: %s", e.Row, e.Reason)
	}
	return "parse failed: " + e.Reason
}

// column aliases, compared after lower-casing and trimming
var (
	nameHeaders     = []string{"nama toko", "name", "nama", "store", "store name", "toko"}
	cityHeaders     = []string{"kota", "city"}
	districtHeaders = []string{"kelurahan", "district", "kecamatan"}
	latHeaders      = []string{"latitude", "lat"}
	lngHeaders      = []string{"longitude", "lng", "lon", "long"}
)

// Options controls how rows become waypoints
type Options struct {
	// Sheet to read from a workbook; empty reads the first sheet
	Sheet string
	// MaxRows caps the number of data rows considered; zero reads all
	MaxRows int
	// Geocoder, when set, resolves rows that have a name but no coordinates
	Geocoder geocoding.Geocoder
}

// SkippedRow records a data row that did not become a waypoint
type SkippedRow struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// Result is the outcome of reading one file
type Result struct {
	Waypoints []models.Waypoint `json:"waypoints"`
	Skipped   []SkippedRow      `json:"skipped"`
	Geocoded  int               `json:"geocoded"`
}

// Read parses a spreadsheet by file extension
func Read(ctx context.Context, filename string, r io.Reader, opts Options) (*Result, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return ReadXLSX(ctx, r, opts)
	case ".csv":
		return ReadCSV(ctx, r, opts)
	}
	return nil, ErrUnsupportedFormat
}

// ReadXLSX parses a workbook
func ReadXLSX(ctx context.Context, r io.Reader, opts Options) (*Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &ErrParseFailed{Reason: fmt.Sprintf("not a readable workbook: %v", err)}
	}
	defer f.Close()

	sheet := opts.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, &ErrParseFailed{Reason: "workbook has no sheets"}
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, &ErrParseFailed{Reason: fmt.Sprintf("cannot read sheet %q: %v", sheet, err)}
	}
	log.Printf("[INGEST] Workbook sheet=%s rows=%d", sheet, len(rows))
	return parseRows(ctx, rows, opts)
}

// ReadCSV parses comma or semicolon separated text
func ReadCSV(ctx context.Context, r io.Reader, opts Options) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}

	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	if firstLine, _, _ := strings.Cut(string(data), "\n"); strings.Count(firstLine, ";") > strings.Count(firstLine, ",") {
		reader.Comma = ';'
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, &ErrParseFailed{Reason: fmt.Sprintf("invalid csv: %v", err)}
	}
	log.Printf("[INGEST] CSV rows=%d", len(rows))
	return parseRows(ctx, rows, opts)
}

type columns struct {
	name, city, district, lat, lng int
}

func findHeader(rows [][]string) (int, columns, bool) {
	limit := min(len(rows), headerSearchRows)
	for i := 0; i < limit; i++ {
		cols := columns{name: -1, city: -1, district: -1, lat: -1, lng: -1}
		for j, cell := range rows[i] {
			h := strings.ToLower(strings.TrimSpace(cell))
			switch {
			case lo.Contains(nameHeaders, h):
				cols.name = j
			case lo.Contains(cityHeaders, h):
				cols.city = j
			case lo.Contains(districtHeaders, h):
				cols.district = j
			case lo.Contains(latHeaders, h):
				cols.lat = j
			case lo.Contains(lngHeaders, h):
				cols.lng = j
			}
		}
		if cols.lat >= 0 && cols.lng >= 0 {
			return i, cols, true
		}
	}
	return 0, columns{}, false
}

func parseRows(ctx context.Context, rows [][]string, opts Options) (*Result, error) {
	headerRow, cols, ok := findHeader(rows)
	if !ok {
		return nil, &ErrParseFailed{Reason: "no Latitude/Longitude header row found"}
	}

	data := rows[headerRow+1:]
	if opts.MaxRows > 0 && len(data) > opts.MaxRows {
		data = data[:opts.MaxRows]
	}

	result := &Result{}
	for i, row := range data {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rowNum := headerRow + i + 2 // 1-based, after the header

		cell := func(idx int) string {
			if idx < 0 || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		if lo.EveryBy(row, func(c string) bool { return strings.TrimSpace(c) == "" }) {
			continue
		}

		w := models.Waypoint{
			Name:     cell(cols.name),
			City:     cell(cols.city),
			District: cell(cols.district),
		}

		coords, err := parseCoordinates(cell(cols.lat), cell(cols.lng))
		if err != nil {
			if opts.Geocoder == nil || w.Label() == "" {
				result.Skipped = append(result.Skipped, SkippedRow{Row: rowNum, Reason: err.Error()})
				continue
			}
			place, gerr := opts.Geocoder.GeocodeWithRetry(ctx, addressOf(w), 2)
			if gerr != nil {
				result.Skipped = append(result.Skipped, SkippedRow{Row: rowNum, Reason: gerr.Error()})
				continue
			}
			coords = place.Coords
			result.Geocoded++
		}

		w.ID = len(result.Waypoints)
		w.Coords = coords
		result.Waypoints = append(result.Waypoints, w)
	}

	log.Printf("[INGEST] Parsed: waypoints=%d skipped=%d geocoded=%d", len(result.Waypoints), len(result.Skipped), result.Geocoded)
	if len(result.Waypoints) == 0 {
		return result, ErrNoWaypoints
	}
	return result, nil
}

func parseCoordinates(latText, lngText string) (models.Coordinates, error) {
	if latText == "" || lngText == "" {
		return models.Coordinates{}, errors.New("missing coordinates")
	}
	lat, err := parseNumber(latText)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("invalid latitude %q", latText)
	}
	lng, err := parseNumber(lngText)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("invalid longitude %q", lngText)
	}
	c := models.Coordinates{Lat: lat, Lng: lng}
	if !c.IsValid() {
		return models.Coordinates{}, fmt.Errorf("coordinates out of range (%s, %s)", latText, lngText)
	}
	return c, nil
}

// parseNumber accepts a decimal comma when the text has no decimal point
func parseNumber(s string) (float64, error) {
	if !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	return strconv.ParseFloat(s, 64)
}

func addressOf(w models.Waypoint) string {
	parts := lo.Filter([]string{w.Name, w.District, w.City}, func(s string, _ int) bool { return s != "" })
	return strings.Join(parts, ", ")
}
