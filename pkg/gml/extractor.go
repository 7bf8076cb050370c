package gml

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"

	"tkgm-sync-service/pkg/projection"
)

// ErrNoGeometry is returned when a feature carries no supported geometry
// element at all. The caller skips the feature.
var ErrNoGeometry = errors.New("no supported geometry found")

// GeometryError reports a geometry element that was present but unusable,
// e.g. a polygon without a single ring of three or more points. The caller
// skips the feature.
type GeometryError struct {
	Kind   string
	Reason string
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("unusable %s geometry: %s", e.Kind, e.Reason)
}

// Geometry kinds in lookup priority order. When a feature carries more than
// one kind, the first kind found wins and the rest are ignored.
var geometryPriority = []string{"MultiPolygon", "Polygon", "Point", "LineString", "MultiPoint", "MultiLineString"}

func isPolygonKind(kind string) bool {
	return kind == "MultiPolygon" || kind == "Polygon"
}

func isLineKind(kind string) bool {
	return kind == "LineString" || kind == "MultiLineString"
}

// findDescendants collects all descendant elements with the given local tag
// name, ignoring namespace prefixes.
func findDescendants(el *etree.Element, tag string) []*etree.Element {
	var out []*etree.Element
	for _, child := range el.ChildElements() {
		if child.Tag == tag {
			out = append(out, child)
		}
		out = append(out, findDescendants(child, tag)...)
	}
	return out
}

// parseCoordinates parses a whitespace-separated list of "lon,lat" pairs from
// a gml:coordinates text node.
func parseCoordinates(text string) ([]projection.Point, error) {
	var points []projection.Point
	for _, pair := range strings.Fields(text) {
		if !strings.Contains(pair, ",") {
			continue
		}
		parts := strings.SplitN(pair, ",", 2)
		x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid coordinate pair %q: %w", pair, err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid coordinate pair %q: %w", pair, err)
		}
		points = append(points, projection.Point{X: x, Y: y})
	}
	return points, nil
}

// extractWKT locates the highest-priority geometry element under el, parses
// its coordinate rings, force-closes polygon rings, reprojects every ring and
// builds the WKT string in the target CRS.
//
// Returns ErrNoGeometry or *GeometryError for skippable features; any other
// error (malformed coordinates, transform out of domain) marks the feature
// failed.
func (p *Processor) extractWKT(el *etree.Element) (string, error) {
	for _, kind := range geometryPriority {
		elems := findDescendants(el, kind)
		if len(elems) == 0 {
			continue
		}

		// Only the first element of the first kind found is processed.
		geomEl := elems[0]

		var rings [][]projection.Point
		for _, coordEl := range findDescendants(geomEl, "coordinates") {
			text := strings.TrimSpace(coordEl.Text())
			if text == "" {
				continue
			}
			ring, err := parseCoordinates(text)
			if err != nil {
				return "", err
			}
			if isPolygonKind(kind) && len(ring) >= 3 && ring[0] != ring[len(ring)-1] {
				ring = append(ring, ring[0])
			}
			transformed, err := p.transformer.Transform(ring)
			if err != nil {
				return "", err
			}
			rings = append(rings, transformed)
		}

		return buildWKT(kind, rings)
	}
	return "", ErrNoGeometry
}

// buildWKT renders rings as WKT according to the geometry kind. For polygon
// kinds every ring becomes an independent shell; holes are not modeled.
func buildWKT(kind string, rings [][]projection.Point) (string, error) {
	switch {
	case isPolygonKind(kind):
		var polygons orb.MultiPolygon
		for _, ring := range rings {
			if len(ring) < 4 {
				// A closed ring needs at least 4 points.
				continue
			}
			polygons = append(polygons, orb.Polygon{toOrbRing(ring)})
		}
		if len(polygons) == 0 {
			return "", &GeometryError{Kind: kind, Reason: "no ring with at least 3 points"}
		}
		if len(polygons) == 1 {
			return wkt.MarshalString(polygons[0]), nil
		}
		return wkt.MarshalString(polygons), nil

	case isLineKind(kind):
		if len(rings) == 0 || len(rings[0]) == 0 {
			return "", &GeometryError{Kind: kind, Reason: "no coordinates"}
		}
		if len(rings) == 1 {
			return wkt.MarshalString(toOrbLine(rings[0])), nil
		}
		var lines orb.MultiLineString
		for _, ring := range rings {
			lines = append(lines, toOrbLine(ring))
		}
		return wkt.MarshalString(lines), nil

	case kind == "Point" || kind == "MultiPoint":
		if len(rings) == 0 || len(rings[0]) == 0 {
			return "", &GeometryError{Kind: kind, Reason: "no coordinates"}
		}
		first := rings[0][0]
		return wkt.MarshalString(orb.Point{first.X, first.Y}), nil
	}

	return "", &GeometryError{Kind: kind, Reason: "unrecognized geometry kind"}
}

func toOrbRing(points []projection.Point) orb.Ring {
	ring := make(orb.Ring, len(points))
	for i, p := range points {
		ring[i] = orb.Point{p.X, p.Y}
	}
	return ring
}

func toOrbLine(points []projection.Point) orb.LineString {
	line := make(orb.LineString, len(points))
	for i, p := range points {
		line[i] = orb.Point{p.X, p.Y}
	}
	return line
}
