package maze

import "math/rand"

// GenConfig parameterizes maze generation.
type GenConfig struct {
	Width, Height, Layers int
	CoinMin, CoinMax      int
	Rand                  *rand.Rand
}

// Generate builds a maze and its coin pool per cfg. Each layer is an
// independent recursive-backtracker (randomized DFS) perfect maze over the
// odd-coordinate sub-grid [1, W-2] x [1, H-2], which leaves the outer shell
// untouched (WALL) and yields a single spanning tree per layer. Adjacent
// layers z and z+1 are joined by a STAIR_UP/STAIR_DOWN pair at (1,1) for
// even z and at (1, last odd row) for odd z, so a middle layer's STAIR_DOWN
// and STAIR_UP never share a cell. Both are odd cells, which the walk
// always visits, guaranteeing every layer, and therefore START and END,
// stay connected.
func Generate(cfg GenConfig) (*Maze, *CoinPool) {
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(1))
	}
	m := New(cfg.Width, cfg.Height, cfg.Layers)

	for z := 0; z < cfg.Layers; z++ {
		carveLayer(m, z, cfg.Rand)
	}

	for z := 0; z < cfg.Layers-1; z++ {
		y := 1
		if z%2 == 1 {
			y = lastOdd(cfg.Height - 2)
		}
		below := Coord{X: 1, Y: y, Z: z}
		above := Coord{X: 1, Y: y, Z: z + 1}
		m.Set(below, StairUp)
		m.Set(above, StairDown)
	}

	startX, startY := lastOdd(cfg.Width-2), 1
	m.StartPos = Coord{X: startX, Y: startY, Z: 0}
	m.Set(m.StartPos, Start)

	endX, endY := lastOdd(cfg.Width-2), lastOdd(cfg.Height-2)
	m.EndPos = Coord{X: endX, Y: endY, Z: cfg.Layers - 1}
	m.Set(m.EndPos, End)

	pool := placeCoins(m, cfg)
	return m, pool
}

func lastOdd(max int) int {
	if max%2 == 0 {
		max--
	}
	if max < 1 {
		max = 1
	}
	return max
}

// carveLayer runs the randomized DFS over a single layer's cells, leaving
// the outer ring (x==0, x==W-1, y==0, y==H-1) as WALL.
func carveLayer(m *Maze, z int, rng *rand.Rand) {
	w, h := m.Width, m.Height
	type stackFrame struct{ x, y int }
	visited := make([][]bool, h)
	for y := range visited {
		visited[y] = make([]bool, w)
	}

	var stack []stackFrame
	start := stackFrame{1, 1}
	visited[start.y][start.x] = true
	m.Set(Coord{X: start.x, Y: start.y, Z: z}, Path)
	stack = append(stack, start)

	dirs := [][2]int{{0, 2}, {0, -2}, {2, 0}, {-2, 0}}

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		order := rng.Perm(len(dirs))
		advanced := false
		for _, oi := range order {
			d := dirs[oi]
			nx, ny := cur.x+d[0], cur.y+d[1]
			if nx <= 0 || nx >= w-1 || ny <= 0 || ny >= h-1 {
				continue
			}
			if visited[ny][nx] {
				continue
			}
			mx, my := cur.x+d[0]/2, cur.y+d[1]/2
			visited[ny][nx] = true
			m.Set(Coord{X: mx, Y: my, Z: z}, Path)
			m.Set(Coord{X: nx, Y: ny, Z: z}, Path)
			stack = append(stack, stackFrame{nx, ny})
			advanced = true
			break
		}
		if !advanced {
			stack = stack[:len(stack)-1]
		}
	}
}

// placeCoins scatters CoinMin..CoinMax coins on non-blocking cells distinct
// from START, END, and stair cells, across all layers.
func placeCoins(m *Maze, cfg GenConfig) *CoinPool {
	var candidates []Coord
	for z := 0; z < m.Layers; z++ {
		for y := 0; y < m.Height; y++ {
			for x := 0; x < m.Width; x++ {
				c := Coord{X: x, Y: y, Z: z}
				t := m.At(c)
				if t == Path {
					if c == m.StartPos || c == m.EndPos {
						continue
					}
					candidates = append(candidates, c)
				}
			}
		}
	}
	cfg.Rand.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	count := cfg.CoinMin
	if cfg.CoinMax > cfg.CoinMin {
		count += cfg.Rand.Intn(cfg.CoinMax - cfg.CoinMin + 1)
	}
	if count > len(candidates) {
		count = len(candidates)
	}

	positions := make([]Coord, count)
	copy(positions, candidates[:count])
	for _, c := range positions {
		m.Set(c, Coin)
	}
	return NewCoinPool(positions)
}
