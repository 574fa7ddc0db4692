// Package maze implements the maze data model: a W×H×L grid of cells, a
// coin pool, and the generator that produces both. The generator is
// treated as an opaque producer by the rest of the server: any
// implementation satisfying the shapes below can be substituted.
package maze

import "fmt"

// CellType is the closed set of cell kinds.
type CellType int

const (
	Wall CellType = iota
	Path
	StairUp
	StairDown
	Start
	End
	Coin
)

func (c CellType) String() string {
	switch c {
	case Wall:
		return "WALL"
	case Path:
		return "PATH"
	case StairUp:
		return "STAIR_UP"
	case StairDown:
		return "STAIR_DOWN"
	case Start:
		return "START"
	case End:
		return "END"
	case Coin:
		return "COIN"
	default:
		return "UNKNOWN"
	}
}

// Coord is an integer cell coordinate; Z is the layer.
type Coord struct {
	X, Y, Z int
}

// Maze is a three-dimensional grid of cells.
type Maze struct {
	Width, Height, Layers int
	cells                 [][][]CellType // [z][y][x]
	StartPos              Coord
	EndPos                Coord
}

// New allocates an all-wall maze of the given dimensions.
func New(width, height, layers int) *Maze {
	m := &Maze{Width: width, Height: height, Layers: layers}
	m.cells = make([][][]CellType, layers)
	for z := range m.cells {
		m.cells[z] = make([][]CellType, height)
		for y := range m.cells[z] {
			m.cells[z][y] = make([]CellType, width)
			for x := range m.cells[z][y] {
				m.cells[z][y][x] = Wall
			}
		}
	}
	return m
}

// InBounds reports whether c is within the grid.
func (m *Maze) InBounds(c Coord) bool {
	return c.X >= 0 && c.X < m.Width &&
		c.Y >= 0 && c.Y < m.Height &&
		c.Z >= 0 && c.Z < m.Layers
}

// At returns the cell type at c. Panics if out of bounds; callers must
// check InBounds first.
func (m *Maze) At(c Coord) CellType {
	return m.cells[c.Z][c.Y][c.X]
}

// Set assigns the cell type at c.
func (m *Maze) Set(c Coord, t CellType) {
	m.cells[c.Z][c.Y][c.X] = t
}

// Blocking is the derived boolean view: WALL blocks, everything else
// (including a cell additionally holding a coin) does not.
func (m *Maze) Blocking(c Coord) bool {
	if !m.InBounds(c) {
		return true
	}
	return m.At(c) == Wall
}

// IsStairPair reports whether (below, above) form a valid STAIR_UP/
// STAIR_DOWN pair: below is STAIR_UP at (x,y,z) and above is STAIR_DOWN at
// (x,y,z+1).
func (m *Maze) IsStairPair(below, above Coord) bool {
	if below.X != above.X || below.Y != above.Y || above.Z != below.Z+1 {
		return false
	}
	if !m.InBounds(below) || !m.InBounds(above) {
		return false
	}
	return m.At(below) == StairUp && m.At(above) == StairDown
}

// CoinPool is the ordered sequence of coin positions and their collected
// bits.
type CoinPool struct {
	Positions []Coord
	collected []bool
}

// NewCoinPool builds a pool over the given positions, all uncollected.
func NewCoinPool(positions []Coord) *CoinPool {
	return &CoinPool{
		Positions: positions,
		collected: make([]bool, len(positions)),
	}
}

// Remaining returns the count of non-collected coins.
func (cp *CoinPool) Remaining() int {
	n := 0
	for _, c := range cp.collected {
		if !c {
			n++
		}
	}
	return n
}

// Collected reports whether coinIndex has already been collected.
func (cp *CoinPool) Collected(index int) bool {
	if index < 0 || index >= len(cp.collected) {
		return true
	}
	return cp.collected[index]
}

// Collect flips the collected bit for index. It is idempotent: collecting
// an already-collected or invalid index fails and returns false.
func (cp *CoinPool) Collect(index int) bool {
	if index < 0 || index >= len(cp.collected) || cp.collected[index] {
		return false
	}
	cp.collected[index] = true
	return true
}

// Reset clears all collected bits.
func (cp *CoinPool) Reset() {
	for i := range cp.collected {
		cp.collected[i] = false
	}
}

// CollectedSnapshot returns a copy of the collected bitset, for persistence.
func (cp *CoinPool) CollectedSnapshot() []bool {
	out := make([]bool, len(cp.collected))
	copy(out, cp.collected)
	return out
}

// RestoreCollected overwrites the collected bitset (used when loading a
// persisted snapshot). Lengths must match.
func (cp *CoinPool) RestoreCollected(collected []bool) error {
	if len(collected) != len(cp.Positions) {
		return fmt.Errorf("collected length %d does not match %d coin positions", len(collected), len(cp.Positions))
	}
	copy(cp.collected, collected)
	return nil
}
