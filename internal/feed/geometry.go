package feed

import (
	"encoding/json"
	"fmt"
)

// GeometryType identifies the shape an alert geometry carries.
type GeometryType string

const (
	GeometryPoint   GeometryType = "Point"
	GeometryLine    GeometryType = "LineString"
	GeometryPolygon GeometryType = "Polygon"
)

// Position is a WGS84 coordinate pair.
type Position struct {
	Lon float64
	Lat float64
}

// Valid reports whether the position is inside WGS84 bounds.
func (p Position) Valid() bool {
	return p.Lon >= -180 && p.Lon <= 180 && p.Lat >= -90 && p.Lat <= 90
}

// Geometry is an alert's location in WGS84. Exactly one of Point, Line or
// Rings is populated, matching Type.
type Geometry struct {
	Type  GeometryType
	Point Position
	Line  []Position
	// Rings holds polygon rings, outer ring first.
	Rings [][]Position
}

// NewPoint builds a point geometry.
func NewPoint(lon, lat float64) *Geometry {
	return &Geometry{Type: GeometryPoint, Point: Position{Lon: lon, Lat: lat}}
}

// Centroid returns a representative position for the geometry: the point
// itself, or the arithmetic mean of line vertices / outer ring vertices.
func (g *Geometry) Centroid() Position {
	switch g.Type {
	case GeometryPoint:
		return g.Point
	case GeometryLine:
		return meanPosition(g.Line)
	case GeometryPolygon:
		if len(g.Rings) > 0 {
			return meanPosition(g.Rings[0])
		}
	}
	return Position{}
}

func meanPosition(ps []Position) Position {
	if len(ps) == 0 {
		return Position{}
	}
	var lon, lat float64
	for _, p := range ps {
		lon += p.Lon
		lat += p.Lat
	}
	n := float64(len(ps))
	return Position{Lon: lon / n, Lat: lat / n}
}

// Valid reports whether every coordinate is inside WGS84 bounds and the
// shape has enough vertices to be meaningful.
func (g *Geometry) Valid() bool {
	switch g.Type {
	case GeometryPoint:
		return g.Point.Valid()
	case GeometryLine:
		if len(g.Line) < 2 {
			return false
		}
		for _, p := range g.Line {
			if !p.Valid() {
				return false
			}
		}
		return true
	case GeometryPolygon:
		if len(g.Rings) == 0 {
			return false
		}
		for _, ring := range g.Rings {
			if len(ring) < 3 {
				return false
			}
			for _, p := range ring {
				if !p.Valid() {
					return false
				}
			}
		}
		return true
	}
	return false
}

type geoJSONGeometry struct {
	Type        GeometryType    `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// MarshalJSON emits the geometry as a GeoJSON geometry object.
func (g *Geometry) MarshalJSON() ([]byte, error) {
	var coords interface{}
	switch g.Type {
	case GeometryPoint:
		coords = positionCoords(g.Point)
	case GeometryLine:
		coords = lineCoords(g.Line)
	case GeometryPolygon:
		rings := make([][][2]float64, len(g.Rings))
		for i, ring := range g.Rings {
			rings[i] = lineCoords(ring)
		}
		coords = rings
	default:
		return nil, fmt.Errorf("unknown geometry type %q", g.Type)
	}
	return json.Marshal(struct {
		Type        GeometryType `json:"type"`
		Coordinates interface{}  `json:"coordinates"`
	}{Type: g.Type, Coordinates: coords})
}

// UnmarshalJSON parses a GeoJSON geometry object.
func (g *Geometry) UnmarshalJSON(data []byte) error {
	var raw geoJSONGeometry
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Type {
	case GeometryPoint:
		var c [2]float64
		if err := json.Unmarshal(raw.Coordinates, &c); err != nil {
			return fmt.Errorf("invalid point coordinates: %w", err)
		}
		g.Type = GeometryPoint
		g.Point = Position{Lon: c[0], Lat: c[1]}
	case GeometryLine:
		var cs [][2]float64
		if err := json.Unmarshal(raw.Coordinates, &cs); err != nil {
			return fmt.Errorf("invalid line coordinates: %w", err)
		}
		g.Type = GeometryLine
		g.Line = positionsFromCoords(cs)
	case GeometryPolygon:
		var rings [][][2]float64
		if err := json.Unmarshal(raw.Coordinates, &rings); err != nil {
			return fmt.Errorf("invalid polygon coordinates: %w", err)
		}
		g.Type = GeometryPolygon
		g.Rings = make([][]Position, len(rings))
		for i, ring := range rings {
			g.Rings[i] = positionsFromCoords(ring)
		}
	default:
		return fmt.Errorf("unsupported geometry type %q", raw.Type)
	}
	return nil
}

func positionCoords(p Position) [2]float64 {
	return [2]float64{p.Lon, p.Lat}
}

func lineCoords(ps []Position) [][2]float64 {
	out := make([][2]float64, len(ps))
	for i, p := range ps {
		out[i] = positionCoords(p)
	}
	return out
}

func positionsFromCoords(cs [][2]float64) []Position {
	out := make([]Position, len(cs))
	for i, c := range cs {
		out[i] = Position{Lon: c[0], Lat: c[1]}
	}
	return out
}
