package projection

import (
	"fmt"
	"math"

	"github.com/wroge/wgs84"
)

// Point is a single coordinate pair, X first (longitude or easting).
type Point struct {
	X float64
	Y float64
}

// TransformError reports a coordinate that could not be reprojected, either
// because it lies outside the valid domain of the source CRS or because the
// projection produced a non-finite result.
type TransformError struct {
	X      float64
	Y      float64
	Reason string
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("cannot transform coordinate (%g, %g): %s", e.X, e.Y, e.Reason)
}

// Transformer converts coordinate pairs between two EPSG coordinate reference
// systems. The projection func is built once per CRS pair; Transform itself is
// pure and safe for concurrent use.
type Transformer struct {
	sourceEPSG int
	targetEPSG int
	transform  wgs84.Func
}

// EPSG:2320 (ED50 / 3-degree Gauss-Kruger zone, central meridian 36E) is not
// in the library's built-in table, so it is registered from its datum
// parameters: International 1924 spheroid with the standard ED50 shift.
func epsgRepository() *wgs84.Repository {
	epsg := wgs84.EPSG()
	ed50 := wgs84.Helmert(6378388, 297, -87, -98, -121, 0, 0, 0, 0)
	epsg.Add(2320, ed50.TransverseMercator(36, 0, 1, 500000, 0))
	return epsg
}

// NewTransformer builds a transformer from sourceEPSG to targetEPSG. Equal
// codes yield an identity transformer that returns coordinates unchanged.
func NewTransformer(sourceEPSG, targetEPSG int) (*Transformer, error) {
	t := &Transformer{sourceEPSG: sourceEPSG, targetEPSG: targetEPSG}
	if sourceEPSG == targetEPSG {
		return t, nil
	}

	epsg := epsgRepository()
	from := epsg.Code(sourceEPSG)
	if from == nil {
		return nil, fmt.Errorf("unsupported source CRS EPSG:%d", sourceEPSG)
	}
	to := epsg.Code(targetEPSG)
	if to == nil {
		return nil, fmt.Errorf("unsupported target CRS EPSG:%d", targetEPSG)
	}

	t.transform = wgs84.Transform(from, to)
	return t, nil
}

// Transform reprojects every point into the target CRS. A single point
// outside the source domain fails the whole call; callers treat that as a
// per-geometry failure.
func (t *Transformer) Transform(points []Point) ([]Point, error) {
	out := make([]Point, len(points))
	for i, p := range points {
		if t.sourceEPSG == 4326 && (math.Abs(p.X) > 180 || math.Abs(p.Y) > 90) {
			return nil, &TransformError{X: p.X, Y: p.Y, Reason: "outside source CRS domain"}
		}

		if t.transform == nil {
			out[i] = p
			continue
		}

		x, y, _ := t.transform(p.X, p.Y, 0)
		if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
			return nil, &TransformError{X: p.X, Y: p.Y, Reason: "projection produced a non-finite result"}
		}
		out[i] = Point{X: x, Y: y}
	}
	return out, nil
}
