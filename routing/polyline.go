package routing

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// precision is the fixed-point scale of encoded coordinates.
const precision = 1e5

var ErrTruncatedPolyline = errors.New("polyline is truncated")

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DecodePolyline decodes an encoded polyline into points. Each point is a
// latitude delta followed by a longitude delta, both zig-zag encoded in
// 5-bit chunks offset by 63.
func DecodePolyline(encoded string) ([]LatLng, error) {
	points := make([]LatLng, 0, len(encoded)/4)

	var lat, lng int64
	for i := 0; i < len(encoded); {
		dlat, next, err := decodeValue(encoded, i)
		if err != nil {
			return nil, err
		}
		dlng, next, err := decodeValue(encoded, next)
		if err != nil {
			return nil, err
		}
		i = next

		lat += dlat
		lng += dlng
		points = append(points, LatLng{
			Lat: float64(lat) / precision,
			Lng: float64(lng) / precision,
		})
	}
	return points, nil
}

func decodeValue(encoded string, i int) (int64, int, error) {
	var result int64
	var shift uint
	for {
		if i >= len(encoded) {
			return 0, i, ErrTruncatedPolyline
		}
		b := int64(encoded[i]) - 63
		i++
		if b < 0 || b > 0x3f {
			return 0, i, fmt.Errorf("invalid polyline character %q at %d", encoded[i-1], i-1)
		}
		if shift > 60 {
			return 0, i, fmt.Errorf("polyline value overflows at %d", i-1)
		}
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}
	if result&1 != 0 {
		return ^(result >> 1), i, nil
	}
	return result >> 1, i, nil
}

// EncodePolyline is the inverse of DecodePolyline.
func EncodePolyline(points []LatLng) string {
	var sb strings.Builder
	var prevLat, prevLng int64
	for _, p := range points {
		lat := int64(math.Round(p.Lat * precision))
		lng := int64(math.Round(p.Lng * precision))
		encodeValue(&sb, lat-prevLat)
		encodeValue(&sb, lng-prevLng)
		prevLat, prevLng = lat, lng
	}
	return sb.String()
}

func encodeValue(sb *strings.Builder, v int64) {
	u := v << 1
	if v < 0 {
		u = ^u
	}
	for u >= 0x20 {
		sb.WriteByte(byte((0x20 | (u & 0x1f)) + 63))
		u >>= 5
	}
	sb.WriteByte(byte(u + 63))
}
