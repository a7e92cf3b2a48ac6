package ingest

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"waypoint-optimizer/internal/models"
)

const routeSheet = "Route"

// WriteRunXLSX renders a stored run as a workbook: one row per stop in visiting
// order, framed by the start and end anchors, followed by a summary block.
func WriteRunXLSX(run *models.Run) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", routeSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"2F5597"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	rows := [][]any{
		{"Stop", "Waypoint", "Name", "Latitude", "Longitude"},
		{0, "", "Start", run.Start.Lat, run.Start.Lng},
	}
	for i, idx := range run.Route {
		name := ""
		if i < len(run.StopNames) {
			name = run.StopNames[i]
		}
		var lat, lng any = "", ""
		// Path is start, stops..., end
		if i+1 < len(run.Path)-1 {
			lat, lng = run.Path[i+1].Lat, run.Path[i+1].Lng
		}
		rows = append(rows, []any{i + 1, idx, name, lat, lng})
	}
	rows = append(rows,
		[]any{len(run.Route) + 1, "", "End", run.End.Lat, run.End.Lng},
		[]any{},
		[]any{"Algorithm", run.Algorithm},
		[]any{"Dataset", run.DatasetName},
		[]any{"Distance (km)", run.DistanceKm},
		[]any{"Nearest neighbour (km)", run.BaselineKm},
		[]any{"Seed", run.Seed},
		[]any{"Elapsed (ms)", run.ElapsedMs},
		[]any{"Created", run.CreatedAt.Format("2006-01-02 15:04:05")},
	)

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(routeSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}
	if err := f.SetRowStyle(routeSheet, 1, 1, headerStyle); err != nil {
		return nil, fmt.Errorf("failed to style header: %w", err)
	}
	if err := f.SetColWidth(routeSheet, "A", "A", 22); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(routeSheet, "C", "C", 32); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf, nil
}
