package maze

// Vision computes the set of tiles visible from (x, y) under cardinal
// line-of-sight out to visionRange steps. Each ray adds tiles at
// increasing distance until it hits a wall or the goal (added, then the
// ray stops) or leaves the grid (ray stops, nothing added). The
// observer's own tile is always included; diagonals never are. The
// result depends only on the grid and the arguments.
func (m *Maze) Vision(x, y, visionRange int) map[Coord]TileType {
	visible := make(map[Coord]TileType)
	visible[Coord{X: x, Y: y}] = m.ClassifyTile(x, y)
	for _, d := range []Direction{North, South, East, West} {
		dx, dy := d.Delta()
		for dist := 1; dist <= visionRange; dist++ {
			cx, cy := x+dx*dist, y+dy*dist
			tile := m.ClassifyTile(cx, cy)
			if tile == TileOutOfBounds {
				break
			}
			visible[Coord{X: cx, Y: cy}] = tile
			if tile == TileWall || tile == TileGoal {
				break
			}
		}
	}
	return visible
}
