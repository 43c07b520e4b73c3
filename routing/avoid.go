package routing

import (
	"math"
	"strconv"
	"strings"
)

// metersPerDegree approximates the length of one degree of latitude.
const metersPerDegree = 111111.0

// AvoidZone is a circular area, in meters, that routes should stay out of.
type AvoidZone struct {
	Lat    float64 `json:"lat" validate:"latitude"`
	Lng    float64 `json:"lng" validate:"longitude"`
	Radius float64 `json:"radius" validate:"required,gt=0"`
}

// BoundingBox is an axis-aligned box in degrees.
type BoundingBox struct {
	North float64 `json:"north"`
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
}

// BoundingBox returns the box enclosing the zone. The longitude span widens
// with latitude.
func (z AvoidZone) BoundingBox() BoundingBox {
	dLat := z.Radius / metersPerDegree
	dLng := z.Radius / (metersPerDegree * math.Cos(z.Lat*math.Pi/180))
	return BoundingBox{
		North: z.Lat + dLat,
		West:  z.Lng - dLng,
		South: z.Lat - dLat,
		East:  z.Lng + dLng,
	}
}

func (b BoundingBox) String() string {
	return strings.Join([]string{
		formatDegrees(b.North),
		formatDegrees(b.West),
		formatDegrees(b.South),
		formatDegrees(b.East),
	}, ",")
}

// AvoidAreas renders zones as the value of the router's avoid[areas] parameter.
func AvoidAreas(zones []AvoidZone) string {
	if len(zones) == 0 {
		return ""
	}
	boxes := make([]string, 0, len(zones))
	for _, z := range zones {
		boxes = append(boxes, z.BoundingBox().String())
	}
	return "bbox:" + strings.Join(boxes, ";")
}

func formatDegrees(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
