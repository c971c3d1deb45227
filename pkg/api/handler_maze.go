package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mazebench/mazebench/pkg/maze"
	"github.com/mazebench/mazebench/pkg/models"
)

// createMazeHandler handles POST /api/v1/mazes.
// Accepts either a row-per-string picture ('.', '#', 'G', 'S') or an
// explicit numeric grid with start coordinates.
func (s *Server) createMazeHandler(c *gin.Context) {
	var req models.CreateMazeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	if len(req.Rows) > 0 && len(req.Grid) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "provide either rows or grid, not both"})
		return
	}

	var (
		m   *maze.Maze
		err error
	)
	switch {
	case len(req.Rows) > 0:
		m, err = maze.ParseRows(req.Name, req.Rows)
	case len(req.Grid) > 0:
		m, err = mazeFromGrid(&req)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "either rows or grid is required"})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := s.store.CreateMaze(c.Request.Context(), m)
	if err != nil {
		writeStoreError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newMazeResponse(created))
}

// mazeFromGrid builds a maze from an explicit numeric grid. Validation
// (rectangularity, tile values, single goal, walkable start) happens in
// Maze.Validate.
func mazeFromGrid(req *models.CreateMazeRequest) (*maze.Maze, error) {
	grid := make([][]maze.TileType, len(req.Grid))
	for y, row := range req.Grid {
		grid[y] = make([]maze.TileType, len(row))
		for x, tile := range row {
			grid[y][x] = maze.TileType(tile)
		}
	}
	m := &maze.Maze{
		Name:   req.Name,
		Width:  len(req.Grid[0]),
		Height: len(req.Grid),
		Grid:   grid,
		StartX: req.StartX,
		StartY: req.StartY,
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// getMazeHandler handles GET /api/v1/mazes/:id.
func (s *Server) getMazeHandler(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	m, err := s.store.GetMaze(c.Request.Context(), id)
	if err != nil {
		writeStoreError(c, err)
		return
	}

	c.JSON(http.StatusOK, newMazeResponse(m))
}
