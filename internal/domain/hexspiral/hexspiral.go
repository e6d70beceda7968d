// Package hexspiral assigns board positions on an infinite hexagonal grid.
//
// Cells are visited ring by ring outward from the origin, which is reserved
// for the board's anchor and never handed out. Ring k starts at axial (0, -k)
// and walks six runs of k steps, so index i always maps to the same cell no
// matter how many cells are requested.
package hexspiral

import "sync"

// Axial is a hex cell in axial coordinates.
type Axial struct {
	Q int `json:"q"`
	R int `json:"r"`
}

// Point is a position on the board plane.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// directions form the closed hexagon path walked by every ring.
var directions = [6]Axial{{1, 0}, {0, 1}, {-1, 1}, {-1, 0}, {0, -1}, {1, -1}}

// Origin is the anchor cell.
var Origin = Axial{}

// Distance is the hex distance from the origin.
func Distance(a Axial) int {
	return max(abs(a.Q), abs(a.R), abs(a.Q+a.R))
}

// CellsWithin is the number of cells in rings 1..k.
func CellsWithin(k int) int {
	if k <= 0 {
		return 0
	}
	return 3 * k * (k + 1)
}

// RingsFor is the smallest k whose rings 1..k hold at least count cells.
func RingsFor(count int) int {
	k := 0
	for CellsWithin(k) < count {
		k++
	}
	return k
}

// Ring returns the 6k cells at distance k in walk order.
func Ring(k int) []Axial {
	if k <= 0 {
		return nil
	}
	cells := make([]Axial, 0, 6*k)
	cur := Axial{Q: 0, R: -k}
	for _, d := range directions {
		for step := 0; step < k; step++ {
			cells = append(cells, cur)
			cur = Axial{Q: cur.Q + d.Q, R: cur.R + d.R}
		}
	}
	return cells
}

// Layout converts cells to plane coordinates using the tile pitch.
type Layout struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DefaultLayout is the pitch at which tiles abut on the board.
var DefaultLayout = Layout{Width: defaultTileWidth, Height: defaultTileHeight}

// ToPoint maps a cell onto the plane.
func (l Layout) ToPoint(a Axial) Point {
	return Point{
		X: l.Width * (float64(a.Q) + float64(a.R)/2),
		Y: l.Height * float64(a.R),
	}
}

// Allocator hands out board positions and caches the ring walk between calls.
// It is safe for concurrent use.
type Allocator struct {
	layout Layout
	margin int

	mu    sync.Mutex
	walk  []Axial
	rings int
}

// New creates an Allocator.
func New(opts ...Option) *Allocator {
	a := &Allocator{
		layout: DefaultLayout,
		margin: defaultMarginRings,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Layout returns the tile pitch in use.
func (a *Allocator) Layout() Layout { return a.layout }

// Cells returns the first count cells of the walk.
func (a *Allocator) Cells(count int) []Axial {
	if count <= 0 {
		return []Axial{}
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.walk) < count {
		a.extend(RingsFor(count) + a.margin)
	}
	out := make([]Axial, count)
	copy(out, a.walk[:count])
	return out
}

// Allocate returns the plane positions of the first count cells.
func (a *Allocator) Allocate(count int) []Point {
	cells := a.Cells(count)
	points := make([]Point, len(cells))
	for i, c := range cells {
		points[i] = a.layout.ToPoint(c)
	}
	return points
}

// Capacity reports how many cells are already precomputed.
func (a *Allocator) Capacity() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.walk)
}

// extend grows the cached walk to cover the given number of rings.
// Callers hold a.mu.
func (a *Allocator) extend(rings int) {
	if rings <= a.rings {
		return
	}
	walk := make([]Axial, len(a.walk), CellsWithin(rings))
	copy(walk, a.walk)
	for k := a.rings + 1; k <= rings; k++ {
		walk = append(walk, Ring(k)...)
	}
	a.walk = walk
	a.rings = rings
}

// Allocate is the stateless form of Allocator.Allocate with the default layout.
func Allocate(count int) []Point {
	return New(WithMarginRings(0)).Allocate(count)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
