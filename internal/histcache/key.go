package histcache

import (
	"fmt"
	"math"
	"strings"

	"fishcast/internal/models"
)

// KeyPrecision is the quantization tolerance for cache keys: coordinates are
// rounded to this many decimal degrees, so requests within ~11m of latitude
// of each other reuse the same cached series.
const KeyPrecision = 4

// Quantize rounds a coordinate to the cache precision. Quantization is
// idempotent: quantizing an already-quantized coordinate is a no-op.
func Quantize(c models.Coordinate) models.Coordinate {
	scale := math.Pow(10, KeyPrecision)
	return models.Coordinate{
		Latitude:  math.Round(c.Latitude*scale) / scale,
		Longitude: math.Round(c.Longitude*scale) / scale,
	}
}

// Key derives the stable cache key for a coordinate, e.g.
// "latn50_4501_lone30_5234" for (50.4501, 30.5234). The token is also safe
// for use in file and directory names.
func Key(c models.Coordinate) string {
	q := Quantize(c)
	return fmt.Sprintf("lat%s_lon%s",
		axisToken(q.Latitude, "n", "s"),
		axisToken(q.Longitude, "e", "w"))
}

func axisToken(v float64, pos, neg string) string {
	sign := pos
	if v < 0 {
		sign = neg
		v = -v
	}
	return sign + strings.ReplaceAll(fmt.Sprintf("%.*f", KeyPrecision, v), ".", "_")
}
