package plot

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"landscape-planner/internal/planner/models"
)

// ============================================================
// Outline Parser
// ============================================================

var pathCommand = regexp.MustCompile(`([MmLlHhVvZz])([^MmLlHhVvZz]*)`)

// ParseOutline превращает SVG path (команды M, L, H, V, Z) в вершины полигона
// участка. Замыкающая точка не дублируется.
func ParseOutline(d string) ([]models.Point, error) {
	d = strings.TrimSpace(d)
	if d == "" {
		return nil, fmt.Errorf("empty path")
	}

	var points []models.Point
	var x, y float64

	for _, match := range pathCommand.FindAllStringSubmatch(d, -1) {
		cmd := match[1]
		coords := parseCoords(match[2])

		switch cmd {
		case "M", "L":
			for i := 0; i+1 < len(coords); i += 2 {
				x, y = coords[i], coords[i+1]
				points = append(points, models.Point{X: x, Y: y})
			}
		case "m", "l":
			for i := 0; i+1 < len(coords); i += 2 {
				x += coords[i]
				y += coords[i+1]
				points = append(points, models.Point{X: x, Y: y})
			}
		case "H", "h":
			for _, c := range coords {
				if cmd == "H" {
					x = c
				} else {
					x += c
				}
				points = append(points, models.Point{X: x, Y: y})
			}
		case "V", "v":
			for _, c := range coords {
				if cmd == "V" {
					y = c
				} else {
					y += c
				}
				points = append(points, models.Point{X: x, Y: y})
			}
		case "Z", "z":
			// closing segment is implicit for polygons
		}
	}

	if len(points) > 1 && points[0] == points[len(points)-1] {
		points = points[:len(points)-1]
	}
	if len(points) < 3 {
		return nil, fmt.Errorf("outline needs at least 3 points, got %d", len(points))
	}
	return points, nil
}

// Bounds returns the size of the bounding box of points.
func Bounds(points []models.Point) (float64, float64) {
	if len(points) == 0 {
		return 0, 0
	}
	minX, maxX := points[0].X, points[0].X
	minY, maxY := points[0].Y, points[0].Y
	for _, p := range points[1:] {
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
	}
	return maxX - minX, maxY - minY
}

func parseCoords(s string) []float64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", " "))
	if s == "" {
		return nil
	}

	var coords []float64
	for _, part := range strings.Fields(s) {
		if val, err := strconv.ParseFloat(part, 64); err == nil {
			coords = append(coords, val)
		}
	}
	return coords
}
