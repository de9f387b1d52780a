// Package canvas defines the pixel canvas domain model.
package canvas

import (
	"regexp"
	"strings"
	"time"
)

// Canvas dimensions are fixed for the lifetime of the deployment.
const (
	Width  = 128
	Height = 64
)

// DefaultColor is the color of a coordinate no event has touched.
const DefaultColor = "#FFFFFF"

// PixelEvent records a single committed placement. Events are immutable and
// append-only; the current canvas is derived from them.
type PixelEvent struct {
	ID       string
	X        int
	Y        int
	Color    string
	AuthorID string
	// Seq is assigned by the event store and strictly increases with
	// insertion order. It breaks ties between events that share PlacedAt.
	Seq      int64
	PlacedAt time.Time
}

// Cell is one colored coordinate, used for snapshots and broadcast deltas.
type Cell struct {
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Color string `json:"color"`
}

var hexColorPattern = regexp.MustCompile(`^#([A-Fa-f0-9]{6}|[A-Fa-f0-9]{3})$`)

// ValidCoordinate reports whether (x, y) lies on the canvas.
func ValidCoordinate(x, y int) bool {
	return x >= 0 && x < Width && y >= 0 && y < Height
}

// ValidColor reports whether color is a 3- or 6-digit hex color.
func ValidColor(color string) bool {
	return hexColorPattern.MatchString(color)
}

// NormalizeColor expands 3-digit hex to 6 digits and uppercases the result.
// The input must already be a valid hex color.
func NormalizeColor(color string) string {
	color = strings.ToUpper(color)
	if len(color) == 4 { // #RGB
		return "#" + strings.Repeat(string(color[1]), 2) +
			strings.Repeat(string(color[2]), 2) +
			strings.Repeat(string(color[3]), 2)
	}
	return color
}

// SameColor compares two hex colors ignoring case and short/long form.
func SameColor(a, b string) bool {
	return strings.EqualFold(NormalizeColor(a), NormalizeColor(b))
}
