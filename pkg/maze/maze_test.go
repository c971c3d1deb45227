package maze

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTileTypeString(t *testing.T) {
	tests := []struct {
		name string
		tile TileType
		want string
	}{
		{"empty", TileEmpty, "EMPTY"},
		{"wall", TileWall, "WALL"},
		{"goal", TileGoal, "GOAL"},
		{"out of bounds", TileOutOfBounds, "OUT_OF_BOUNDS"},
		{"unknown", TileType(7), "TileType(7)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.tile.String())
		})
	}
}

func TestTileTypeCanEnter(t *testing.T) {
	assert.True(t, TileEmpty.CanEnter())
	assert.True(t, TileGoal.CanEnter())
	assert.False(t, TileWall.CanEnter())
	assert.False(t, TileOutOfBounds.CanEnter())
}

func TestDirectionDelta(t *testing.T) {
	tests := []struct {
		name   string
		dir    Direction
		dx, dy int
	}{
		{"north", North, 0, -1},
		{"south", South, 0, 1},
		{"east", East, 1, 0},
		{"west", West, -1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dx, dy := tt.dir.Delta()
			assert.Equal(t, tt.dx, dx)
			assert.Equal(t, tt.dy, dy)
		})
	}
}

func TestClassifyTile(t *testing.T) {
	m, err := ParseRows("test", []string{
		"S.#",
		".#G",
		"...",
	})
	require.NoError(t, err)

	assert.Equal(t, TileEmpty, m.ClassifyTile(0, 0))
	assert.Equal(t, TileWall, m.ClassifyTile(2, 0))
	assert.Equal(t, TileGoal, m.ClassifyTile(2, 1))
	assert.Equal(t, TileOutOfBounds, m.ClassifyTile(-1, 0))
	assert.Equal(t, TileOutOfBounds, m.ClassifyTile(0, -1))
	assert.Equal(t, TileOutOfBounds, m.ClassifyTile(3, 0))
	assert.Equal(t, TileOutOfBounds, m.ClassifyTile(0, 3))
}

func TestParseRows(t *testing.T) {
	t.Run("valid maze", func(t *testing.T) {
		m, err := ParseRows("corridor", []string{"S#G"})
		require.NoError(t, err)
		assert.Equal(t, 3, m.Width)
		assert.Equal(t, 1, m.Height)
		assert.Equal(t, 0, m.StartX)
		assert.Equal(t, 0, m.StartY)
		goal, ok := m.GoalPosition()
		require.True(t, ok)
		assert.Equal(t, Coord{X: 2, Y: 0}, goal)
	})

	t.Run("no rows", func(t *testing.T) {
		_, err := ParseRows("empty", nil)
		assert.Error(t, err)
	})

	t.Run("ragged rows", func(t *testing.T) {
		_, err := ParseRows("ragged", []string{"S.G", ".."})
		assert.Error(t, err)
	})

	t.Run("missing start", func(t *testing.T) {
		_, err := ParseRows("nostart", []string{"..G"})
		assert.Error(t, err)
	})

	t.Run("two starts", func(t *testing.T) {
		_, err := ParseRows("twostarts", []string{"SSG"})
		assert.Error(t, err)
	})

	t.Run("missing goal", func(t *testing.T) {
		_, err := ParseRows("nogoal", []string{"S.."})
		assert.Error(t, err)
	})

	t.Run("two goals", func(t *testing.T) {
		_, err := ParseRows("twogoals", []string{"SGG"})
		assert.Error(t, err)
	})

	t.Run("unknown rune", func(t *testing.T) {
		_, err := ParseRows("bad", []string{"S?G"})
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	t.Run("negative dimensions", func(t *testing.T) {
		m := &Maze{Width: -1, Height: 2}
		assert.Error(t, m.Validate())
	})

	t.Run("row count mismatch", func(t *testing.T) {
		m := &Maze{Width: 2, Height: 2, Grid: [][]TileType{{TileEmpty, TileGoal}}}
		assert.Error(t, m.Validate())
	})

	t.Run("unknown tile value", func(t *testing.T) {
		m := &Maze{Width: 2, Height: 1, Grid: [][]TileType{{TileEmpty, TileType(9)}}}
		assert.Error(t, m.Validate())
	})

	t.Run("start on wall", func(t *testing.T) {
		m := &Maze{
			Width: 3, Height: 1,
			Grid:   [][]TileType{{TileWall, TileEmpty, TileGoal}},
			StartX: 0, StartY: 0,
		}
		assert.Error(t, m.Validate())
	})

	t.Run("start out of bounds", func(t *testing.T) {
		m := &Maze{
			Width: 3, Height: 1,
			Grid:   [][]TileType{{TileEmpty, TileEmpty, TileGoal}},
			StartX: 5, StartY: 0,
		}
		assert.Error(t, m.Validate())
	})
}
