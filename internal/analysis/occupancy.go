package analysis

import (
	"math"
	"strings"

	"github.com/san-kum/gassim/internal/dynamo"
	"gonum.org/v1/gonum/floats"
)

// Occupancy counts particle visits per cell of a cells×cells grid over the
// box, pooled across every snapshot. Row 0 is the bottom of the box.
// Positions outside [0, box] are clamped to the border cells.
func Occupancy(traj *dynamo.Trajectory, box float64, cells int) [][]float64 {
	if cells < 1 {
		cells = 1
	}
	grid := make([][]float64, cells)
	for i := range grid {
		grid[i] = make([]float64, cells)
	}
	if box <= 0 {
		return grid
	}

	cell := func(x float64) int {
		c := int(x / box * float64(cells))
		if c < 0 {
			return 0
		}
		if c >= cells {
			return cells - 1
		}
		return c
	}

	for _, snap := range traj.Positions {
		for _, p := range snap {
			if math.IsNaN(p.X) || math.IsNaN(p.Y) {
				continue
			}
			grid[cell(p.Y)][cell(p.X)]++
		}
	}
	return grid
}

// occupancyShades goes from empty to most visited.
var occupancyShades = []rune(" ░▒▓█")

// OccupancyToASCII renders an occupancy grid with block shades, top row
// first, scaled to the busiest cell.
func OccupancyToASCII(grid [][]float64) string {
	if len(grid) == 0 {
		return ""
	}

	peak := 0.0
	for _, row := range grid {
		if len(row) > 0 {
			peak = max(peak, floats.Max(row))
		}
	}

	var sb strings.Builder
	for r := len(grid) - 1; r >= 0; r-- {
		for _, v := range grid[r] {
			idx := 0
			if peak > 0 {
				idx = int(v / peak * float64(len(occupancyShades)-1))
			}
			// two columns per cell keeps the box roughly square in a terminal
			sb.WriteRune(occupancyShades[idx])
			sb.WriteRune(occupancyShades[idx])
		}
		sb.WriteRune('\n')
	}
	return sb.String()
}
