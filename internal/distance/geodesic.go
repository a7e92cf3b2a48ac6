package distance

import (
	"fmt"
	"math"
	"strings"

	"waypoint-optimizer/internal/models"
)

// EarthRadiusKm is the mean Earth radius used by Haversine
const EarthRadiusKm = 6371.0

// WGS-84 ellipsoid
const (
	wgs84A = 6378137.0
	wgs84F = 1 / 298.257223563
	wgs84B = (1 - wgs84F) * wgs84A
)

const vincentyMaxIterations = 200

// Func returns the distance in kilometres between two points. Implementations
// must be symmetric and non-negative.
type Func func(a, b models.Coordinates) float64

// Haversine returns the great-circle distance in kilometres
func Haversine(a, b models.Coordinates) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c
}

// Vincenty returns the ellipsoidal (WGS-84) distance in kilometres using
// Vincenty's inverse formula. Nearly antipodal points where the iteration does
// not converge fall back to Haversine.
func Vincenty(a, b models.Coordinates) float64 {
	if a == b {
		return 0
	}

	L := (b.Lng - a.Lng) * math.Pi / 180
	U1 := math.Atan((1 - wgs84F) * math.Tan(a.Lat*math.Pi/180))
	U2 := math.Atan((1 - wgs84F) * math.Tan(b.Lat*math.Pi/180))
	sinU1, cosU1 := math.Sincos(U1)
	sinU2, cosU2 := math.Sincos(U2)

	lambda := L
	var sinSigma, cosSigma, sigma, cos2Alpha, cos2SigmaM float64
	converged := false

	for i := 0; i < vincentyMaxIterations; i++ {
		sinLambda, cosLambda := math.Sincos(lambda)
		x := cosU2 * sinLambda
		y := cosU1*sinU2 - sinU1*cosU2*cosLambda
		sinSigma = math.Sqrt(x*x + y*y)
		if sinSigma == 0 {
			return 0
		}
		cosSigma = sinU1*sinU2 + cosU1*cosU2*cosLambda
		sigma = math.Atan2(sinSigma, cosSigma)
		sinAlpha := cosU1 * cosU2 * sinLambda / sinSigma
		cos2Alpha = 1 - sinAlpha*sinAlpha
		if cos2Alpha != 0 {
			cos2SigmaM = cosSigma - 2*sinU1*sinU2/cos2Alpha
		} else {
			// equatorial line
			cos2SigmaM = 0
		}
		C := wgs84F / 16 * cos2Alpha * (4 + wgs84F*(4-3*cos2Alpha))
		prev := lambda
		lambda = L + (1-C)*wgs84F*sinAlpha*
			(sigma+C*sinSigma*(cos2SigmaM+C*cosSigma*(-1+2*cos2SigmaM*cos2SigmaM)))
		if math.Abs(lambda-prev) < 1e-12 {
			converged = true
			break
		}
	}

	if !converged {
		return Haversine(a, b)
	}

	u2 := cos2Alpha * (wgs84A*wgs84A - wgs84B*wgs84B) / (wgs84B * wgs84B)
	A := 1 + u2/16384*(4096+u2*(-768+u2*(320-175*u2)))
	B := u2 / 1024 * (256 + u2*(-128+u2*(74-47*u2)))
	deltaSigma := B * sinSigma * (cos2SigmaM + B/4*(cosSigma*(-1+2*cos2SigmaM*cos2SigmaM)-
		B/6*cos2SigmaM*(-3+4*sinSigma*sinSigma)*(-3+4*cos2SigmaM*cos2SigmaM)))

	return wgs84B * A * (sigma - deltaSigma) / 1000
}

// Canonical provider names, also used to tag cached distances
const (
	ProviderVincenty  = "vincenty"
	ProviderHaversine = "haversine"
)

// ProviderName resolves an alias ("geodesic", "great-circle", blank) to its
// canonical provider name
func ProviderName(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ProviderVincenty, "geodesic":
		return ProviderVincenty, nil
	case ProviderHaversine, "great-circle":
		return ProviderHaversine, nil
	default:
		return "", fmt.Errorf("unknown geodesic provider %q", name)
	}
}

// ByName resolves a provider name ("vincenty", "geodesic" or "haversine")
func ByName(name string) (Func, error) {
	canonical, err := ProviderName(name)
	if err != nil {
		return nil, err
	}
	if canonical == ProviderHaversine {
		return Haversine, nil
	}
	return Vincenty, nil
}
