package geo

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/s1"
	"github.com/umahmood/haversine"
)

// EarthRadiusKm is the mean Earth radius used for every camera-space conversion.
const EarthRadiusKm = 6371.0

// Point is a geographic position. Latitude and Longitude are in degrees,
// Altitude is metres above the reference sphere.
type Point struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
	Altitude  float64 `json:"alt"`
}

// DegreesToRadians converts an angle in degrees to radians
func DegreesToRadians(value float64) float64 {
	return (s1.Angle(value) * s1.Degree).Radians()
}

// RadiansToDegrees converts an angle in radians to degrees
func RadiansToDegrees(value float64) float64 {
	return s1.Angle(value).Degrees()
}

// Cartesian maps latitude/longitude in degrees and altitude in metres to a
// y-up camera-space position in kilometres:
//
//	x = rho·cos(lat)·cos(lng), y = rho·sin(lat), z = rho·cos(lat)·sin(lng)
func Cartesian(lat, lng, alt float64) mgl64.Vec3 {
	phi := DegreesToRadians(lat)
	theta := DegreesToRadians(lng)
	rho := EarthRadiusKm + alt/1000

	return mgl64.Vec3{
		rho * math.Cos(phi) * math.Cos(theta),
		rho * math.Sin(phi),
		rho * math.Cos(phi) * math.Sin(theta),
	}
}

// ToCartesian converts p to camera space
func ToCartesian(p Point) mgl64.Vec3 {
	return Cartesian(p.Latitude, p.Longitude, p.Altitude)
}

// FromCartesian is the inverse of ToCartesian. Longitude is undefined at the
// poles and is reported as 0 there.
func FromCartesian(v mgl64.Vec3) Point {
	rho := v.Len()
	if rho == 0 {
		return Point{Altitude: -EarthRadiusKm * 1000}
	}

	lat := math.Asin(mgl64.Clamp(v.Y()/rho, -1, 1))
	lng := 0.0
	if math.Hypot(v.X(), v.Z()) > 0 {
		lng = math.Atan2(v.Z(), v.X())
	}

	return Point{
		Latitude:  RadiansToDegrees(lat),
		Longitude: RadiansToDegrees(lng),
		Altitude:  (rho - EarthRadiusKm) * 1000,
	}
}

// DistanceKm returns the great-circle distance between a and b, ignoring altitude
func DistanceKm(a, b Point) float64 {
	_, km := haversine.Distance(
		haversine.Coord{Lat: a.Latitude, Lon: a.Longitude},
		haversine.Coord{Lat: b.Latitude, Lon: b.Longitude},
	)
	return km
}

// PathLengthKm sums the great-circle distance along points
func PathLengthKm(points []Point) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += DistanceKm(points[i-1], points[i])
	}
	return total
}

// Lerp interpolates linearly between a and b, t in [0, 1]
func Lerp(a, b Point, t float64) Point {
	return Point{
		Latitude:  a.Latitude + (b.Latitude-a.Latitude)*t,
		Longitude: a.Longitude + (b.Longitude-a.Longitude)*t,
		Altitude:  a.Altitude + (b.Altitude-a.Altitude)*t,
	}
}
