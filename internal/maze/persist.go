package maze

import (
	"encoding/json"
	"fmt"
	"os"
)

// Snapshot is the JSON shape persisted to maze_data.json: the full cell
// grid plus coin positions and their collected bits, so a restart resumes
// with the same layout and collection state rather than regenerating.
type Snapshot struct {
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Layers    int       `json:"layers"`
	Cells     [][][]int `json:"cells"`
	StartPos  Coord     `json:"startPos"`
	EndPos    Coord     `json:"endPos"`
	Coins     []Coord   `json:"coins"`
	Collected []bool    `json:"collected"`
}

// ToSnapshot renders m and pool into their persisted form.
func ToSnapshot(m *Maze, pool *CoinPool) Snapshot {
	cells := make([][][]int, m.Layers)
	for z := 0; z < m.Layers; z++ {
		cells[z] = make([][]int, m.Height)
		for y := 0; y < m.Height; y++ {
			cells[z][y] = make([]int, m.Width)
			for x := 0; x < m.Width; x++ {
				cells[z][y][x] = int(m.At(Coord{X: x, Y: y, Z: z}))
			}
		}
	}
	return Snapshot{
		Width:     m.Width,
		Height:    m.Height,
		Layers:    m.Layers,
		Cells:     cells,
		StartPos:  m.StartPos,
		EndPos:    m.EndPos,
		Coins:     pool.Positions,
		Collected: pool.CollectedSnapshot(),
	}
}

// FromSnapshot reconstructs a Maze and CoinPool from a persisted snapshot.
func FromSnapshot(s Snapshot) (*Maze, *CoinPool, error) {
	m := New(s.Width, s.Height, s.Layers)
	if len(s.Cells) != s.Layers {
		return nil, nil, fmt.Errorf("maze snapshot: expected %d layers, got %d", s.Layers, len(s.Cells))
	}
	for z := 0; z < s.Layers; z++ {
		if len(s.Cells[z]) != s.Height {
			return nil, nil, fmt.Errorf("maze snapshot: layer %d expected %d rows, got %d", z, s.Height, len(s.Cells[z]))
		}
		for y := 0; y < s.Height; y++ {
			if len(s.Cells[z][y]) != s.Width {
				return nil, nil, fmt.Errorf("maze snapshot: layer %d row %d expected %d cols, got %d", z, y, s.Width, len(s.Cells[z][y]))
			}
			for x := 0; x < s.Width; x++ {
				m.Set(Coord{X: x, Y: y, Z: z}, CellType(s.Cells[z][y][x]))
			}
		}
	}
	m.StartPos = s.StartPos
	m.EndPos = s.EndPos

	pool := NewCoinPool(s.Coins)
	if err := pool.RestoreCollected(s.Collected); err != nil {
		return nil, nil, err
	}
	return m, pool, nil
}

// Save writes m and pool to path as JSON.
func Save(path string, m *Maze, pool *CoinPool) error {
	data, err := json.MarshalIndent(ToSnapshot(m, pool), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Load reads a maze and coin pool previously written by Save.
func Load(path string) (*Maze, *CoinPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return FromSnapshot(s)
}
