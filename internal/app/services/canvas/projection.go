package canvas

import (
	"sync"

	domain "github.com/yorktechapps/pixelplace/internal/app/domain/canvas"
)

type cell struct {
	color    string
	seq      int64
	occupied bool
}

// projection is the materialized current-state view over the event log. It is
// derived data: Rebuild reconstructs it from scratch at any time. Applies are
// keyed by the event ordering so replaying events out of order converges to
// the same grid.
type projection struct {
	mu   sync.RWMutex
	grid [domain.Height][domain.Width]cell
}

func newProjection() *projection {
	return &projection{}
}

// Apply folds one committed event into the view. An event older than the one
// already at the coordinate is ignored.
func (p *projection) Apply(ev domain.PixelEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	current := &p.grid[ev.Y][ev.X]
	if current.occupied && ev.Seq < current.seq {
		return
	}
	current.color = domain.NormalizeColor(ev.Color)
	current.seq = ev.Seq
	current.occupied = true
}

// ColorAt returns the current color at (x, y), white when untouched.
func (p *projection) ColorAt(x, y int) string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if c := p.grid[y][x]; c.occupied {
		return c.color
	}
	return domain.DefaultColor
}

// Snapshot returns the full grid as rows of hex colors.
func (p *projection) Snapshot() [][]string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	rows := make([][]string, domain.Height)
	for y := 0; y < domain.Height; y++ {
		row := make([]string, domain.Width)
		for x := 0; x < domain.Width; x++ {
			if c := p.grid[y][x]; c.occupied {
				row[x] = c.color
			} else {
				row[x] = domain.DefaultColor
			}
		}
		rows[y] = row
	}
	return rows
}

// Cells returns the occupied coordinates in row-major order. The result is
// never nil so an empty canvas serializes as an empty list.
func (p *projection) Cells() []domain.Cell {
	p.mu.RLock()
	defer p.mu.RUnlock()

	cells := []domain.Cell{}
	for y := 0; y < domain.Height; y++ {
		for x := 0; x < domain.Width; x++ {
			if c := p.grid[y][x]; c.occupied {
				cells = append(cells, domain.Cell{X: x, Y: y, Color: c.color})
			}
		}
	}
	return cells
}

// Reset clears the view so it can be rebuilt from the log.
func (p *projection) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.grid = [domain.Height][domain.Width]cell{}
}
