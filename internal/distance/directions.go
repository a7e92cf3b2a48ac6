package distance

import (
	"fmt"
	"net/url"
	"strings"

	"waypoint-optimizer/internal/models"
)

// maxMapsWaypoints is the number of intermediate stops Google Maps accepts in a
// directions URL.
const maxMapsWaypoints = 9

// GoogleMapsURL builds a driving directions link for a path whose first and
// last entries are the anchors. Paths with more intermediate stops than Google
// Maps accepts are truncated to the first stops.
func GoogleMapsURL(path []models.Coordinates) string {
	if len(path) < 2 {
		return ""
	}

	format := func(c models.Coordinates) string {
		return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng)
	}

	params := url.Values{}
	params.Add("api", "1")
	params.Add("origin", format(path[0]))
	params.Add("destination", format(path[len(path)-1]))
	params.Add("travelmode", "driving")

	stops := path[1 : len(path)-1]
	if len(stops) > maxMapsWaypoints {
		stops = stops[:maxMapsWaypoints]
	}
	if len(stops) > 0 {
		formatted := make([]string, len(stops))
		for i, s := range stops {
			formatted[i] = format(s)
		}
		params.Add("waypoints", strings.Join(formatted, "|"))
	}

	return "https://www.google.com/maps/dir/?" + params.Encode()
}
