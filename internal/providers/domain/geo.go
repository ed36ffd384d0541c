package domain

import (
	"math"
	"strings"
	"time"
)

// GeoPoint is a WGS84 coordinate.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

const earthRadiusKm = 6371.0

// DistanceKm is the great-circle distance between two points.
func (p GeoPoint) DistanceKm(o GeoPoint) float64 {
	lat1 := p.Lat * math.Pi / 180
	lat2 := o.Lat * math.Pi / 180
	dLat := (o.Lat - p.Lat) * math.Pi / 180
	dLon := (o.Lon - p.Lon) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// DayHours is one weekday's availability window in HH:MM.
type DayHours struct {
	Available bool   `json:"available"`
	Start     string `json:"start,omitempty"`
	End       string `json:"end,omitempty"`
}

// WorkingHours is keyed by lowercase English weekday name.
type WorkingHours map[string]DayHours

// WeekdayKey returns the WorkingHours key for a weekday.
func WeekdayKey(d time.Weekday) string {
	return strings.ToLower(d.String())
}
