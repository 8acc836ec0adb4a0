package model

// TerrainType classifies a coarse navigation zone.
type TerrainType byte

const (
	Open       TerrainType = 0 // walkable
	Hazard     TerrainType = 1 // walkable but lethal or slow (pits, water)
	Blocked    TerrainType = 2 // no walkable surface
	Chokepoint TerrainType = 3 // narrow walkable corridor
)

// TerrainGrid is a coarse row-major grid sent once in the hello handshake.
// Each zone covers CellW x CellH world units and stores a single TerrainType.
type TerrainGrid struct {
	Cols  int
	Rows  int
	CellW float64
	CellH float64
	Grid  []TerrainType // row-major: Grid[row*Cols + col]
}

// At returns the terrain type at grid coordinates (col, row).
// Returns Open for out-of-bounds coordinates.
func (g *TerrainGrid) At(col, row int) TerrainType {
	if col < 0 || col >= g.Cols || row < 0 || row >= g.Rows {
		return Open
	}
	idx := row*g.Cols + col
	if idx >= len(g.Grid) {
		return Open
	}
	return g.Grid[idx]
}

// AtPos converts world coordinates to grid coordinates and returns the
// terrain type. Returns Open for out-of-bounds or zero-sized cells.
func (g *TerrainGrid) AtPos(p Vec3) TerrainType {
	if g.CellW <= 0 || g.CellH <= 0 || p.X < 0 || p.Y < 0 {
		return Open
	}
	return g.At(int(p.X/g.CellW), int(p.Y/g.CellH))
}

// Passable reports whether a bot can stand at p. A nil grid knows nothing
// and treats everything as passable.
func (g *TerrainGrid) Passable(p Vec3) bool {
	if g == nil {
		return true
	}
	return g.AtPos(p) != Blocked
}

// ZoneCenter returns the world coordinates of the center of zone (col, row).
func (g *TerrainGrid) ZoneCenter(col, row int) Vec3 {
	return Vec3{
		X: float64(col)*g.CellW + g.CellW/2,
		Y: float64(row)*g.CellH + g.CellH/2,
	}
}

// Chokepoints returns the centers of all chokepoint zones, row-major.
// A grid without columns has none.
func (g *TerrainGrid) Chokepoints() []Vec3 {
	if g == nil || g.Cols <= 0 {
		return nil
	}
	var out []Vec3
	for i, t := range g.Grid {
		if t == Chokepoint {
			out = append(out, g.ZoneCenter(i%g.Cols, i/g.Cols))
		}
	}
	return out
}
